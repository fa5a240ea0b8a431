package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/chitamrita/chatd/chat"
)

type sessionError int

const (
	readError  sessionError = 1
	writeError sessionError = 2
	pingError  sessionError = 3
	badRequest sessionError = 4
	serverStop sessionError = 5
	superseded sessionError = 6
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	// websocket max message size to read.
	readLimit = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Deployed behind a reverse proxy; the proxy enforces origins.
		return true
	},
}

// Handler manages one active connection. Every websocket connection is a
// new session, even for an already-connected user.
type Handler struct {
	sync.Mutex

	api *Api
	hub *Hub

	session *session
	conn    *websocket.Conn

	dataChan chan *sessionData

	closing bool
}

// sessionData is the data structure for `dataChan`.
type sessionData struct {
	Error     sessionError `json:"error,omitempty"`
	ServerMsg *ServerMsg   `json:"resp,omitempty"`
}

// SessionID makes Handler a chat.Handle.
func (h *Handler) SessionID() string {
	return h.session.SID
}

func (h *Handler) String() string {
	return h.session.String()
}

func (h *Handler) close(cause sessionError) {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return
	}

	h.closing = true

	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = h.conn.WriteMessage(websocket.CloseMessage, []byte{})
	h.conn.Close()

	close(h.dataChan)

	if cause != serverStop {
		glog.V(5).Infof("session closed, cause: %d, %s", cause, h)
		// The one and only unregister for this connection.
		h.hub.removeHandler(h)
	}
}

func (h *Handler) appendDataChan(v *sessionData) {
	h.Lock()
	defer h.Unlock()
	if !h.closing {
		h.dataChan <- v
	}
}

// deliver performs the pushes an operation produced. Pushes addressed to
// this session's own user go out on this connection, so the sender's echo is
// written to the connection that sent, not whichever handle is currently
// registered. Everything else routes through the hub.
func (h *Handler) deliver(pushes []chat.Push) {
	for _, p := range pushes {
		if p.To == h.session.UID {
			h.appendDataChan(&sessionData{ServerMsg: pushServerMsg(p)})
		} else {
			h.hub.Push(p)
		}
	}
}

func sendServerMsg(conn *websocket.Conn, msg *ServerMsg) error {
	out, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, out)
}

func (h *Handler) recvLoop() {
	defer func() { glog.V(5).Infof("recvLoop(): exited, session: %s", h.String()) }()

	h.conn.SetReadLimit(readLimit)
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(s string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for !h.closing {
		msgType, msg, err := h.conn.ReadMessage()
		if err != nil {
			glog.V(5).Infof("recvLoop(): read error: %v", err)
			h.appendDataChan(&sessionData{Error: readError})
			return
		}

		glog.V(5).Infof("recvLoop(): incoming client message: %v", string(msg))

		if msgType != websocket.TextMessage {
			glog.Errorf("recvLoop(): unexpected message type: %d", msgType)
			h.appendDataChan(&sessionData{ServerMsg: &ServerMsg{
				Error: &Error{Code: ErrorCodeInvalidArguments, Params: []string{"websocket only supports TextMessage"}},
			}})
			h.appendDataChan(&sessionData{Error: badRequest})
			return
		}

		req := ClientMsg{}
		if err := json.Unmarshal(msg, &req); err != nil {
			glog.Errorf("recvLoop(): message error: msg: %s, err: %v", string(msg), err)
			h.appendDataChan(&sessionData{ServerMsg: &ServerMsg{
				Error: &Error{Code: ErrorCodeInvalidArguments, Params: []string{fmt.Sprintf("unmarshal error: %v", err)}},
			}})
			h.appendDataChan(&sessionData{Error: badRequest})
			return
		}

		uid := h.session.UID

		// A failed operation answers this connection and nothing else; only
		// authentication failure and transport close end a session.
		if v := req.SendMessage; v != nil {
			pushes, werr := h.api.SendMessage(context.Background(), uid, v)
			if werr != nil {
				h.appendDataChan(&sessionData{ServerMsg: &ServerMsg{Error: werr}})
				continue
			}
			h.deliver(pushes)
		} else if v := req.MessageRead; v != nil {
			pushes, werr := h.api.MessageRead(context.Background(), uid, v)
			if werr != nil {
				h.appendDataChan(&sessionData{ServerMsg: &ServerMsg{Error: werr}})
				continue
			}
			h.deliver(pushes)
		} else {
			glog.Errorf("recvLoop(): unsupported request: %s", string(msg))
			h.appendDataChan(&sessionData{ServerMsg: &ServerMsg{
				Error: &Error{Code: ErrorCodeInvalidArguments, Params: []string{"unsupported request"}},
			}})
			h.appendDataChan(&sessionData{Error: badRequest})
			return
		}
	}
}

func (h *Handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("sendLoop(): exited, session: %s", h.String())
	}()

	for {
		select {
		case v, ok := <-h.dataChan:
			if !ok { // chan was closed
				h.conn.Close()
				glog.V(5).Infof("sendLoop(): data chan closed, session: %s", h.String())
				return
			}

			if v.Error > 0 {
				h.close(v.Error)
				return
			} else if v.ServerMsg == nil {
				// should not happen.
				panic(fmt.Sprintf("sendLoop(), unknown data from dataChan: %#+v", v))
			}

			if err := sendServerMsg(h.conn, v.ServerMsg); err != nil {
				glog.Errorf("sendLoop(), error write message. session: %s, err: %v", h.String(), err)
				h.close(writeError)
				return
			}
			if v.ServerMsg.Superseded {
				h.close(superseded)
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("sendLoop(), error write ping message. session: %s, err: %v", h, err)
				h.close(pingError)
				return
			}
		}
	}
}
