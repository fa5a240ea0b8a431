package chat

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Deliverer orchestrates persist-then-fan-out for message sends.
// Persistence is the source of truth; live delivery is a best-effort
// notification layered on top.
type Deliverer struct {
	store    MessageStore
	presence *Registry
	feed     Publisher // optional firehose, may be nil
}

func NewDeliverer(store MessageStore, presence *Registry, feed Publisher) *Deliverer {
	return &Deliverer{
		store:    store,
		presence: presence,
		feed:     feed,
	}
}

// Send validates and persists a message, then returns the pushes to perform:
// always an echo plus a stale signal to the sender, and the same pair to the
// receiver when they are online. An offline receiver is skipped silently;
// the durable record stays visible to their next query.
func (d *Deliverer) Send(ctx context.Context, senderID, receiverID, content string, kind Kind) (*Message, []Push, error) {
	if receiverID == "" || receiverID == senderID {
		return nil, nil, ErrInvalidRecipient
	}
	if !kind.Valid() {
		return nil, nil, ErrInvalidKind
	}
	if content == "" {
		return nil, nil, ErrEmptyContent
	}

	m := &Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Kind:       kind,
		CreateTime: time.Now(),
		Read:       false,
	}

	saved, err := d.store.Insert(ctx, m)
	if err != nil {
		return nil, nil, err
	}

	if d.feed != nil {
		if err := d.feed.Publish(ctx, saved); err != nil {
			glog.Errorf("Send(): feed publish error, message: %s, err: %v", saved.ID, err)
		}
	}

	pushes := []Push{
		{To: senderID, Msg: saved},
		{To: senderID, Stale: true},
	}

	if _, online := d.presence.Lookup(receiverID); online {
		pushes = append(pushes,
			Push{To: receiverID, Msg: saved},
			Push{To: receiverID, Stale: true},
		)
	} else {
		glog.V(5).Infof("Send(): receiver %s offline, live delivery skipped, message: %s", receiverID, saved.ID)
	}

	return saved, pushes, nil
}
