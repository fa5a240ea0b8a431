package ws

import "github.com/chitamrita/chatd/chat"

// Wire error codes, a small subset of the usual RPC code space.
const (
	ErrorCodeInvalidArguments = 3
	ErrorCodeNotFound         = 5
	ErrorCodePermissionDenied = 7
	ErrorCodeInternal         = 13
)

// Error is the wire form of a failed operation.
type Error struct {
	Code   int      `json:"code"`
	Params []string `json:"params,omitempty"`
}

// SendMessageReq asks the server to persist and deliver one message.
// An empty type defaults to text.
type SendMessageReq struct {
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Kind       chat.Kind `json:"type"`
}

// MessageReadReq marks one message, addressed to the caller, as read.
type MessageReadReq struct {
	MessageID string `json:"messageId"`
}

// ClientMsg is the inbound envelope; exactly one field is set per frame.
type ClientMsg struct {
	SendMessage *SendMessageReq `json:"send_message,omitempty"`
	MessageRead *MessageReadReq `json:"message_read,omitempty"`
}

// ServerMsg is the outbound envelope.
//
// ConversationsStale is an advisory signal that the chat-list view may have
// changed; clients re-request the aggregation on demand regardless.
// Superseded tells a connection that a newer connection for the same user
// replaced it; the server closes the connection after sending it.
type ServerMsg struct {
	ReceiveMessage     *chat.Message     `json:"receive_message,omitempty"`
	MessageRead        *chat.ReadReceipt `json:"message_read,omitempty"`
	ConversationsStale bool              `json:"conversations_stale,omitempty"`
	Superseded         bool              `json:"superseded,omitempty"`
	Error              *Error            `json:"error,omitempty"`
}

func pushServerMsg(p chat.Push) *ServerMsg {
	switch {
	case p.Msg != nil:
		return &ServerMsg{ReceiveMessage: p.Msg}
	case p.Receipt != nil:
		return &ServerMsg{MessageRead: p.Receipt}
	default:
		return &ServerMsg{ConversationsStale: true}
	}
}
