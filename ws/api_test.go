package ws

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

func newTestApi(t *testing.T, ms *storemock.MockMessageStore) (*Api, *chat.Registry) {
	presence := chat.NewRegistry()
	return NewApi(
		chat.NewDeliverer(ms, presence, nil),
		chat.NewReceipts(ms, presence),
	), presence
}

func TestSendMessageDefaultsToText(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, m *chat.Message) (*chat.Message, error) {
			assert.Equal(t, chat.KindText, m.Kind)
			saved := *m
			saved.ID = "m1"
			return &saved, nil
		})

	api, _ := newTestApi(t, ms)
	pushes, werr := api.SendMessage(context.Background(), "alice", &SendMessageReq{
		ReceiverID: "bob",
		Content:    "hello",
	})
	require.Nil(t, werr)
	// receiver offline: echo and stale for the sender only.
	require.Len(t, pushes, 2)
	assert.Equal(t, "alice", pushes[0].To)
}

func TestSendMessageInvalidRecipient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	api, _ := newTestApi(t, storemock.NewMockMessageStore(ctrl))
	_, werr := api.SendMessage(context.Background(), "alice", &SendMessageReq{
		ReceiverID: "alice",
		Content:    "hi",
	})
	require.NotNil(t, werr)
	assert.Equal(t, ErrorCodeInvalidArguments, werr.Code)
}

func TestSendMessageStoreErrorIsScrubbed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil, chat.ErrStoreUnavailable)

	api, _ := newTestApi(t, ms)
	_, werr := api.SendMessage(context.Background(), "alice", &SendMessageReq{
		ReceiverID: "bob",
		Content:    "hi",
	})
	require.NotNil(t, werr)
	assert.Equal(t, ErrorCodeInternal, werr.Code)
	assert.Equal(t, []string{"temporary storage error"}, werr.Params)
}

func TestMessageReadNotAuthorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Get(gomock.Any(), "m1").Return(&chat.Message{
		ID:         "m1",
		SenderID:   "alice",
		ReceiverID: "bob",
		CreateTime: time.Now(),
	}, nil)

	api, _ := newTestApi(t, ms)
	_, werr := api.MessageRead(context.Background(), "carol", &MessageReadReq{MessageID: "m1"})
	require.NotNil(t, werr)
	assert.Equal(t, ErrorCodePermissionDenied, werr.Code)
}

func TestMessageReadNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ms := storemock.NewMockMessageStore(ctrl)
	ms.EXPECT().Get(gomock.Any(), "nope").Return(nil, chat.ErrNotFound)

	api, _ := newTestApi(t, ms)
	_, werr := api.MessageRead(context.Background(), "bob", &MessageReadReq{MessageID: "nope"})
	require.NotNil(t, werr)
	assert.Equal(t, ErrorCodeNotFound, werr.Code)
}

func TestMessageReadMissingID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	api, _ := newTestApi(t, storemock.NewMockMessageStore(ctrl))
	_, werr := api.MessageRead(context.Background(), "bob", &MessageReadReq{})
	require.NotNil(t, werr)
	assert.Equal(t, ErrorCodeInvalidArguments, werr.Code)
}
