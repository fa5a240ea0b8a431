package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitamrita/chatd/chat"
	"github.com/chitamrita/chatd/store/storemock"
)

type fakeHandle string

func (f fakeHandle) SessionID() string { return string(f) }

type fakePublisher struct {
	published []*chat.Message
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, m *chat.Message) error {
	p.published = append(p.published, m)
	return p.err
}

func insertAssigningID(id string) func(ctx context.Context, m *chat.Message) (*chat.Message, error) {
	return func(ctx context.Context, m *chat.Message) (*chat.Message, error) {
		saved := *m
		saved.ID = id
		return &saved, nil
	}
}

func TestSendPersistsAndFansOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(insertAssigningID("m1"))

	presence := chat.NewRegistry()
	presence.Register("bob", fakeHandle("hb"))

	d := chat.NewDeliverer(ms, presence, nil)
	m, pushes, err := d.Send(context.Background(), "alice", "bob", "hello", chat.KindText)
	require.NoError(t, err)

	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "alice", m.SenderID)
	assert.Equal(t, "bob", m.ReceiverID)
	assert.Equal(t, "hello", m.Content)
	assert.Equal(t, chat.KindText, m.Kind)
	assert.False(t, m.Read)
	assert.Nil(t, m.ReadTime)
	assert.False(t, m.CreateTime.IsZero())

	// sender echo + stale, receiver copy + stale.
	require.Len(t, pushes, 4)
	assert.Equal(t, chat.Push{To: "alice", Msg: m}, pushes[0])
	assert.Equal(t, chat.Push{To: "alice", Stale: true}, pushes[1])
	assert.Equal(t, chat.Push{To: "bob", Msg: m}, pushes[2])
	assert.Equal(t, chat.Push{To: "bob", Stale: true}, pushes[3])
}

func TestSendOfflineReceiverSkipsDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(insertAssigningID("m1"))

	d := chat.NewDeliverer(ms, chat.NewRegistry(), nil)
	m, pushes, err := d.Send(context.Background(), "alice", "bob", "hi", chat.KindText)
	require.NoError(t, err)
	require.NotNil(t, m)

	// sender still gets the persisted message; no push targets bob.
	require.Len(t, pushes, 2)
	for _, p := range pushes {
		assert.Equal(t, "alice", p.To)
	}
}

func TestSendValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No store calls at all for rejected sends.
	ms := storemock.NewMockMessageStore(ctrl)
	d := chat.NewDeliverer(ms, chat.NewRegistry(), nil)

	_, _, err := d.Send(context.Background(), "alice", "alice", "hi", chat.KindText)
	assert.ErrorIs(t, err, chat.ErrInvalidRecipient)

	_, _, err = d.Send(context.Background(), "alice", "", "hi", chat.KindText)
	assert.ErrorIs(t, err, chat.ErrInvalidRecipient)

	_, _, err = d.Send(context.Background(), "alice", "bob", "hi", chat.Kind("video"))
	assert.ErrorIs(t, err, chat.ErrInvalidKind)

	_, _, err = d.Send(context.Background(), "alice", "bob", "", chat.KindText)
	assert.ErrorIs(t, err, chat.ErrEmptyContent)
}

func TestSendStoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil, chat.ErrStoreUnavailable)

	presence := chat.NewRegistry()
	presence.Register("bob", fakeHandle("hb"))

	d := chat.NewDeliverer(ms, presence, nil)
	m, pushes, err := d.Send(context.Background(), "alice", "bob", "hi", chat.KindText)
	assert.ErrorIs(t, err, chat.ErrStoreUnavailable)
	assert.Nil(t, m)
	assert.Empty(t, pushes)
}

func TestSendPublishesToFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(insertAssigningID("m1"))

	pub := &fakePublisher{}
	d := chat.NewDeliverer(ms, chat.NewRegistry(), pub)
	m, _, err := d.Send(context.Background(), "alice", "bob", "hi", chat.KindText)
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Equal(t, m, pub.published[0])
}

func TestSendFeedFailureIsBestEffort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(insertAssigningID("m1"))

	pub := &fakePublisher{err: errors.New("broker down")}
	d := chat.NewDeliverer(ms, chat.NewRegistry(), pub)
	m, pushes, err := d.Send(context.Background(), "alice", "bob", "hi", chat.KindText)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Len(t, pushes, 2)
}
