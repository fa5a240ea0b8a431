package chat

import "time"

// Kind is the content kind of a message. The content field is an opaque
// string for every kind; audio and image messages carry a media URL.
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindAudio, KindImage:
		return true
	}
	return false
}

// Message is the atomic unit of a 1:1 conversation. Sender, receiver,
// content, kind and create time are immutable after insert; the read flag
// transitions false to true exactly once and ReadTime is set at that
// transition.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Content    string     `json:"content"`
	Kind       Kind       `json:"type"`
	CreateTime time.Time  `json:"createdAt"`
	Read       bool       `json:"read"`
	ReadTime   *time.Time `json:"readAt,omitempty"`
}

// ReadReceipt notifies a sender that one of their messages was read.
type ReadReceipt struct {
	MessageID string    `json:"messageId"`
	ReaderID  string    `json:"readerId"`
	ReadTime  time.Time `json:"readAt"`
}

// User is the partner profile attached to a conversation summary.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Summary is one chat-list row: the most recent message exchanged with a
// partner plus the viewer's unread count for that partner. It is derived
// from message history on every request, never stored.
type Summary struct {
	PartnerID       string    `json:"userId"`
	Username        string    `json:"username,omitempty"`
	FullName        string    `json:"fullName,omitempty"`
	ProfilePic      string    `json:"profilePic,omitempty"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}

// Push describes one unit of live delivery to a user. Components return
// pushes instead of writing to sockets; the session layer resolves the
// target connection and performs the actual write.
//
// Exactly one of Msg, Receipt or Stale is set.
type Push struct {
	To      string
	Msg     *Message
	Receipt *ReadReceipt
	Stale   bool
}
