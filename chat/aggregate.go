package chat

import (
	"context"
	"errors"
	"sort"

	"github.com/golang/glog"
)

// Aggregator derives the chat-list view from raw message history. It is a
// pure read-side computation: no caching, no side effects, fresh from the
// store on every call.
type Aggregator struct {
	store MessageStore
	users UserDirectory // optional, may be nil
}

func NewAggregator(store MessageStore, users UserDirectory) *Aggregator {
	return &Aggregator{
		store: store,
		users: users,
	}
}

// ListConversations returns one summary per conversation partner, sorted
// descending by last-message time. A partner with no message history never
// appears. When a user directory is configured, a partner whose user record
// is missing (deleted user) is skipped, not an error.
func (a *Aggregator) ListConversations(ctx context.Context, userID string) ([]*Summary, error) {
	msgs, err := a.store.QueryAllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// msgs is descending by create time, so the first message seen for a
	// partner is the most recent one.
	byPartner := make(map[string]*Summary)
	var order []string
	for _, m := range msgs {
		partnerID := m.SenderID
		if partnerID == userID {
			partnerID = m.ReceiverID
		}

		s, ok := byPartner[partnerID]
		if !ok {
			s = &Summary{
				PartnerID:       partnerID,
				LastMessage:     m.Content,
				LastMessageTime: m.CreateTime,
			}
			byPartner[partnerID] = s
			order = append(order, partnerID)
		}
		if m.ReceiverID == userID && !m.Read {
			s.UnreadCount++
		}
	}

	out := make([]*Summary, 0, len(order))
	for _, partnerID := range order {
		s := byPartner[partnerID]
		if a.users != nil {
			u, err := a.users.GetUser(ctx, partnerID)
			if errors.Is(err, ErrNotFound) {
				glog.Warningf("ListConversations(): partner %s has no user record, skipped", partnerID)
				continue
			}
			if err != nil {
				return nil, err
			}
			s.Username = u.Username
			s.FullName = u.FullName
			s.ProfilePic = u.ProfilePic
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

// GetConversation returns the full pair history, ascending by create time.
// Fetching never marks anything read; clients mark explicitly.
func (a *Aggregator) GetConversation(ctx context.Context, userA, userB string) ([]*Message, error) {
	return a.store.QueryByPair(ctx, userA, userB)
}
