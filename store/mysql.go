package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/chitamrita/chatd/chat"
)

const (
	insertMessageSQL = "INSERT INTO messages (id,sender_id,receiver_id,content,kind,create_time,read_state) " +
		"VALUES (?,?,?,?,?,?,0)"
	getMessageSQL = "SELECT id,sender_id,receiver_id,content,kind,create_time,read_state,read_time " +
		"FROM messages WHERE id=?"
	queryByPairSQL = "SELECT id,sender_id,receiver_id,content,kind,create_time,read_state,read_time " +
		"FROM messages WHERE (sender_id=? AND receiver_id=?) OR (sender_id=? AND receiver_id=?) " +
		"ORDER BY create_time ASC, id ASC"
	queryAllForUserSQL = "SELECT id,sender_id,receiver_id,content,kind,create_time,read_state,read_time " +
		"FROM messages WHERE sender_id=? OR receiver_id=? " +
		"ORDER BY create_time DESC, id DESC"
	markReadSQL = "UPDATE messages SET read_state=1, read_time=? WHERE id=? AND read_state=0"
	getUserSQL  = "SELECT id,username,full_name,profile_pic FROM users WHERE id=?"
)

// MysqlStore implements chat.MessageStore and chat.UserDirectory on MySQL.
type MysqlStore struct {
	*sql.DB
}

func NewMysqlStore(db *sql.DB) *MysqlStore {
	return &MysqlStore{db}
}

func (s *MysqlStore) withTx(ctx context.Context, exec func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}

	if err := exec(ctx, tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			glog.Errorf("failed to rollback: %v", err2)
		}
		return err
	}

	return tx.Commit()
}

func (s *MysqlStore) Insert(ctx context.Context, m *chat.Message) (*chat.Message, error) {
	saved := *m
	saved.ID = newID()

	_, err := s.ExecContext(ctx, insertMessageSQL,
		saved.ID, saved.SenderID, saved.ReceiverID, saved.Content, string(saved.Kind), saved.CreateTime)
	if err != nil && s.IsDupKeyError(err) {
		// id collision, retry once with a fresh id.
		saved.ID = newID()
		_, err = s.ExecContext(ctx, insertMessageSQL,
			saved.ID, saved.SenderID, saved.ReceiverID, saved.Content, string(saved.Kind), saved.CreateTime)
	}
	if err != nil {
		glog.Errorf("insert message exec err: %v", err)
		return nil, storeErr(err)
	}
	return &saved, nil
}

func (s *MysqlStore) Get(ctx context.Context, id string) (*chat.Message, error) {
	row := s.QueryRowContext(ctx, getMessageSQL, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		glog.Errorf("get message scan err: %v", err)
		return nil, storeErr(err)
	}
	return m, nil
}

func (s *MysqlStore) QueryByPair(ctx context.Context, userA, userB string) ([]*chat.Message, error) {
	return s.queryMessages(ctx, queryByPairSQL, userA, userB, userB, userA)
}

func (s *MysqlStore) QueryAllForUser(ctx context.Context, userID string) ([]*chat.Message, error) {
	return s.queryMessages(ctx, queryAllForUserSQL, userID, userID)
}

func (s *MysqlStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*chat.Message, error) {
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		glog.Errorf("query messages err: %v", err)
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []*chat.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			glog.Errorf("query messages scan err: %v", err)
			return nil, storeErr(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *MysqlStore) MarkRead(ctx context.Context, id string, readAt time.Time) (*chat.Message, bool, error) {
	var m *chat.Message
	var changed bool

	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, markReadSQL, readAt, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		changed = n == 1

		row := tx.QueryRowContext(ctx, getMessageSQL, id)
		m, err = scanMessage(row)
		return err
	})
	if err == sql.ErrNoRows {
		return nil, false, chat.ErrNotFound
	}
	if err != nil {
		glog.Errorf("mark read err: %v", err)
		return nil, false, storeErr(err)
	}
	return m, changed, nil
}

func (s *MysqlStore) GetUser(ctx context.Context, id string) (*chat.User, error) {
	var u chat.User
	var pic sql.NullString
	row := s.QueryRowContext(ctx, getUserSQL, id)
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &pic); err != nil {
		if err == sql.ErrNoRows {
			return nil, chat.ErrNotFound
		}
		glog.Errorf("get user scan err: %v", err)
		return nil, storeErr(err)
	}
	u.ProfilePic = pic.String
	return &u, nil
}

func (s *MysqlStore) IsDupKeyError(err error) bool {
	if val, ok := err.(*mysql.MySQLError); ok {
		return val.Number == 1062
	}
	return false
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*chat.Message, error) {
	var m chat.Message
	var kind string
	var readState byte
	var readTime sql.NullTime

	if err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &kind,
		&m.CreateTime, &readState, &readTime); err != nil {
		return nil, err
	}
	m.Kind = chat.Kind(kind)
	m.Read = readState > 0
	if readTime.Valid {
		t := readTime.Time
		m.ReadTime = &t
	}
	return &m, nil
}

func newID() string {
	return strings.ReplaceAll(uuid.New(), "-", "")
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", chat.ErrStoreUnavailable, err)
}
