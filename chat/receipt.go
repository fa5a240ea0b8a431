package chat

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Receipts marks messages read and propagates read receipts to online
// senders. An offline sender gets no push; they see the read flag on their
// next fetch of the conversation.
type Receipts struct {
	store    MessageStore
	presence *Registry
}

func NewReceipts(store MessageStore, presence *Registry) *Receipts {
	return &Receipts{
		store:    store,
		presence: presence,
	}
}

// MarkRead marks a single message read on behalf of readerID. Only the
// message's receiver may mark it. The store update is idempotent; a receipt
// push to the sender happens only on the genuine unread-to-read transition.
func (rc *Receipts) MarkRead(ctx context.Context, messageID, readerID string) (*Message, []Push, error) {
	m, err := rc.store.Get(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if m.ReceiverID != readerID {
		return nil, nil, ErrNotAuthorized
	}

	updated, changed, err := rc.store.MarkRead(ctx, messageID, time.Now())
	if err != nil {
		return nil, nil, err
	}
	if !changed {
		return updated, nil, nil
	}

	var pushes []Push
	if _, online := rc.presence.Lookup(m.SenderID); online {
		pushes = append(pushes, Push{
			To: m.SenderID,
			Receipt: &ReadReceipt{
				MessageID: updated.ID,
				ReaderID:  readerID,
				ReadTime:  *updated.ReadTime,
			},
		})
	} else {
		glog.V(5).Infof("MarkRead(): sender %s offline, receipt push skipped, message: %s", m.SenderID, m.ID)
	}
	return updated, pushes, nil
}

// MarkReadFrom marks every unread message from senderID addressed to
// forUser as read, returning the number of messages that transitioned and
// one receipt push per transition when the sender is online.
func (rc *Receipts) MarkReadFrom(ctx context.Context, senderID, forUser string) (int, []Push, error) {
	msgs, err := rc.store.QueryByPair(ctx, senderID, forUser)
	if err != nil {
		return 0, nil, err
	}

	_, senderOnline := rc.presence.Lookup(senderID)

	var count int
	var pushes []Push
	for _, m := range msgs {
		if m.SenderID != senderID || m.ReceiverID != forUser || m.Read {
			continue
		}
		updated, changed, err := rc.store.MarkRead(ctx, m.ID, time.Now())
		if err != nil {
			return count, pushes, err
		}
		if !changed {
			continue
		}
		count++
		if senderOnline {
			pushes = append(pushes, Push{
				To: senderID,
				Receipt: &ReadReceipt{
					MessageID: updated.ID,
					ReaderID:  forUser,
					ReadTime:  *updated.ReadTime,
				},
			})
		}
	}
	return count, pushes, nil
}
