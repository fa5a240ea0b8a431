package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitamrita/chatd/chat"
	"github.com/chitamrita/chatd/store/storemock"
)

func msgAt(id, sender, receiver, content string, at time.Time, read bool) *chat.Message {
	m := &chat.Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Kind:       chat.KindText,
		CreateTime: at,
		Read:       read,
	}
	if read {
		m.ReadTime = &at
	}
	return m
}

func TestListConversationsUnreadAccounting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Descending by create time, as the store contract promises.
	// p1 sent 3 (1 read), p2 sent 2 (0 read); p2's latest is newest overall.
	history := []*chat.Message{
		msgAt("m6", "p2", "u", "p2 second", base.Add(5*time.Minute), false),
		msgAt("m5", "p1", "u", "p1 third", base.Add(4*time.Minute), false),
		msgAt("m4", "p2", "u", "p2 first", base.Add(3*time.Minute), false),
		msgAt("m3", "p1", "u", "p1 second", base.Add(2*time.Minute), false),
		msgAt("m2", "u", "p1", "my reply", base.Add(time.Minute), false),
		msgAt("m1", "p1", "u", "p1 first", base, true),
	}

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().QueryAllForUser(gomock.Any(), "u").Return(history, nil)

	a := chat.NewAggregator(ms, nil)
	out, err := a.ListConversations(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "p2", out[0].PartnerID)
	assert.Equal(t, "p2 second", out[0].LastMessage)
	assert.True(t, out[0].LastMessageTime.Equal(base.Add(5*time.Minute)))
	assert.Equal(t, 2, out[0].UnreadCount)

	assert.Equal(t, "p1", out[1].PartnerID)
	assert.Equal(t, "p1 third", out[1].LastMessage)
	assert.Equal(t, 2, out[1].UnreadCount)
}

func TestListConversationsOwnSendsNeverUnread(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now()
	history := []*chat.Message{
		msgAt("m2", "u", "p1", "unanswered", base, false),
		msgAt("m1", "u", "p1", "older", base.Add(-time.Minute), false),
	}

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().QueryAllForUser(gomock.Any(), "u").Return(history, nil)

	a := chat.NewAggregator(ms, nil)
	out, err := a.ListConversations(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].UnreadCount)
	assert.Equal(t, "unanswered", out[0].LastMessage)
}

func TestListConversationsEmptyHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().QueryAllForUser(gomock.Any(), "u").Return([]*chat.Message{}, nil)

	a := chat.NewAggregator(ms, nil)
	out, err := a.ListConversations(context.Background(), "u")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListConversationsFillsPartnerProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	history := []*chat.Message{
		msgAt("m1", "p1", "u", "hi", time.Now(), false),
	}

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().QueryAllForUser(gomock.Any(), "u").Return(history, nil)

	users := storemock.NewMockUserDirectory(ctrl)
	users.EXPECT().GetUser(gomock.Any(), "p1").
		Return(&chat.User{ID: "p1", Username: "pat", FullName: "Pat One"}, nil)

	a := chat.NewAggregator(ms, users)
	out, err := a.ListConversations(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "pat", out[0].Username)
	assert.Equal(t, "Pat One", out[0].FullName)
}

func TestListConversationsSkipsDeletedPartner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now()
	history := []*chat.Message{
		msgAt("m2", "ghost", "u", "boo", base, false),
		msgAt("m1", "p1", "u", "hi", base.Add(-time.Minute), false),
	}

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().QueryAllForUser(gomock.Any(), "u").Return(history, nil)

	users := storemock.NewMockUserDirectory(ctrl)
	users.EXPECT().GetUser(gomock.Any(), "ghost").Return(nil, chat.ErrNotFound)
	users.EXPECT().GetUser(gomock.Any(), "p1").
		Return(&chat.User{ID: "p1", Username: "pat"}, nil)

	a := chat.NewAggregator(ms, users)
	out, err := a.ListConversations(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p1", out[0].PartnerID)
}

func TestListConversationsStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().QueryAllForUser(gomock.Any(), "u").Return(nil, chat.ErrStoreUnavailable)

	a := chat.NewAggregator(ms, nil)
	_, err := a.ListConversations(context.Background(), "u")
	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
}

func TestGetConversation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Now()
	history := []*chat.Message{
		msgAt("m1", "u", "p1", "first", base.Add(-time.Minute), true),
		msgAt("m2", "p1", "u", "second", base, false),
	}

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().QueryByPair(gomock.Any(), "u", "p1").Return(history, nil)

	a := chat.NewAggregator(ms, nil)
	out, err := a.GetConversation(context.Background(), "u", "p1")
	require.NoError(t, err)
	assert.Equal(t, history, out)
}
