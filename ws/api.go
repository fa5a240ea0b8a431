package ws

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"github.com/chitamrita/chatd/chat"
)

// Api serves the two live-connection operations. It validates requests,
// invokes the core components and maps their errors to wire codes. Internal
// detail never leaks to the peer.
type Api struct {
	deliverer *chat.Deliverer
	receipts  *chat.Receipts
}

func NewApi(deliverer *chat.Deliverer, receipts *chat.Receipts) *Api {
	return &Api{
		deliverer: deliverer,
		receipts:  receipts,
	}
}

// SendMessage persists and fans out one message on behalf of uid. The
// returned pushes include the sender echo.
func (a *Api) SendMessage(ctx context.Context, uid string, req *SendMessageReq) ([]chat.Push, *Error) {
	kind := req.Kind
	if kind == "" {
		kind = chat.KindText
	}

	_, pushes, err := a.deliverer.Send(ctx, uid, req.ReceiverID, req.Content, kind)
	if err != nil {
		glog.Errorf("SendMessage(): uid: %s, receiver: %s, err: %v", uid, req.ReceiverID, err)
		return nil, toWireError(err)
	}
	messagesSent.Inc()
	return pushes, nil
}

// MessageRead marks one message read on behalf of uid. The returned pushes
// carry the receipt for the original sender, when online.
func (a *Api) MessageRead(ctx context.Context, uid string, req *MessageReadReq) ([]chat.Push, *Error) {
	if req.MessageID == "" {
		return nil, &Error{Code: ErrorCodeInvalidArguments, Params: []string{"messageId: required"}}
	}

	_, pushes, err := a.receipts.MarkRead(ctx, req.MessageID, uid)
	if err != nil {
		glog.Errorf("MessageRead(): uid: %s, message: %s, err: %v", uid, req.MessageID, err)
		return nil, toWireError(err)
	}
	return pushes, nil
}

func toWireError(err error) *Error {
	switch {
	case errors.Is(err, chat.ErrInvalidRecipient),
		errors.Is(err, chat.ErrInvalidKind),
		errors.Is(err, chat.ErrEmptyContent):
		return &Error{Code: ErrorCodeInvalidArguments, Params: []string{err.Error()}}
	case errors.Is(err, chat.ErrNotFound):
		return &Error{Code: ErrorCodeNotFound, Params: []string{"message not found"}}
	case errors.Is(err, chat.ErrNotAuthorized):
		return &Error{Code: ErrorCodePermissionDenied, Params: []string{"not your message"}}
	default:
		// Storage detail stays in the log.
		return &Error{Code: ErrorCodeInternal, Params: []string{"temporary storage error"}}
	}
}
