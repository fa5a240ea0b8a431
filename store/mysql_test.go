package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitamrita/chatd/chat"
)

// Needs a local mysql with the chatd schema loaded. Skipped unless
// CHATD_MYSQL_DSN is set, e.g.
// CHATD_MYSQL_DSN="root:@tcp(127.0.0.1:3306)/chitamrita?parseTime=true" go test ./store
func openTestMysql(t *testing.T) *MysqlStore {
	t.Helper()
	dsn := os.Getenv("CHATD_MYSQL_DSN")
	if dsn == "" {
		t.Skip("CHATD_MYSQL_DSN not set")
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("DELETE FROM messages")
	require.NoError(t, err)

	return NewMysqlStore(db)
}

func TestMysqlInsertMarkReadRoundTrip(t *testing.T) {
	s := openTestMysql(t)
	ctx := context.Background()

	m, err := s.Insert(ctx, &chat.Message{
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    "hello",
		Kind:       chat.KindText,
		CreateTime: time.Now().Truncate(time.Second),
	})
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)

	got, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, got.Read)

	firstAt := time.Now().Truncate(time.Second)
	updated, changed, err := s.MarkRead(ctx, m.ID, firstAt)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, updated.ReadTime)

	again, changed, err := s.MarkRead(ctx, m.ID, firstAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, again.ReadTime.Equal(*updated.ReadTime))

	pair, err := s.QueryByPair(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, pair, 1)
	assert.Equal(t, m.ID, pair[0].ID)
}

func TestMysqlMarkReadNotFound(t *testing.T) {
	s := openTestMysql(t)
	_, _, err := s.MarkRead(context.Background(), "nope", time.Now())
	assert.ErrorIs(t, err, chat.ErrNotFound)
}
