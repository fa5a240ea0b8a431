package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/chitamrita/chatd/auth"
	"github.com/chitamrita/chatd/chat"
)

// session is the authenticated identity of one connection.
type session struct {
	UID        string `json:"uid"`
	SID        string `json:"sid"`
	CreateTime int64  `json:"create_time"`
	IP         string `json:"ip"`
}

func (s *session) String() string {
	out, _ := json.Marshal(s)
	return string(out)
}

// Hub manages connection sessions: it authenticates inbound websocket
// upgrades, registers presence, routes pushes to online users and closes
// everything down on shutdown.
type Hub struct {
	api        *Api
	authClient auth.Client
	presence   *chat.Registry
	hstore     *handlerStore
}

func NewHub(authClient auth.Client, presence *chat.Registry, api *Api) *Hub {
	return &Hub{
		api:        api,
		authClient: authClient,
		presence:   presence,
		hstore: &handlerStore{
			handlers: make(map[string]*Handler),
		},
	}
}

// Run blocks until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context, stopDoneNotifyC chan<- struct{}) {
	<-ctx.Done()
	glog.Infof("close connections ...")
	h.hstore.close()
	glog.Infof("close connections done")
	stopDoneNotifyC <- struct{}{}
}

// ServeHTTP handles websocket upgrade requests. Authentication failure
// rejects the connection with no presence side effects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uid, err := h.authClient.Auth(r)
	if err != nil {
		glog.Errorf("ServeHTTP(): authenticate error: %v", err)
		http.Error(w, "Authenticate error", http.StatusForbidden)
		return
	}

	sess := &session{
		UID:        uid,
		SID:        strings.ReplaceAll(uuid.New(), "-", ""),
		CreateTime: time.Now().Unix(),
		IP:         getRemoteIP(r),
	}

	// If the upgrade fails, Upgrade replies to the client with an HTTP error
	// response itself.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ServeHTTP(): upgrader.Upgrade error, uid: %s, err: %v", uid, err)
		return
	}

	handler := &Handler{
		dataChan: make(chan *sessionData, 16),
		session:  sess,
		conn:     conn,
		api:      h.api,
		hub:      h,
	}

	conn.SetCloseHandler(func(code int, text string) error {
		glog.Infof("session closed by peer, session: %s, code: %d, text: %s", handler, code, text)
		return nil
	})

	h.addHandler(handler)

	go handler.recvLoop()
	go handler.sendLoop()
}

// addHandler stores the handler and registers presence. Last registration
// wins: a previous connection for the same user is told it was superseded
// and closed.
func (h *Hub) addHandler(handler *Handler) {
	h.hstore.add(handler)
	prev := h.presence.Register(handler.session.UID, handler)
	activeConnections.Inc()

	if prev != nil {
		if ph, ok := prev.(*Handler); ok {
			glog.V(5).Infof("addHandler(): superseding session: %s", ph)
			ph.appendDataChan(&sessionData{ServerMsg: &ServerMsg{Superseded: true}})
		}
	}
}

// removeHandler drops the handler and unregisters presence with the
// handler's own handle, so a stale disconnect cannot evict a newer entry.
func (h *Hub) removeHandler(handler *Handler) {
	if h.hstore.del(handler.session.SID) {
		h.presence.Unregister(handler.session.UID, handler)
		activeConnections.Dec()
	}
}

// Push delivers one push to the target user's connection, if any. An
// offline target is dropped silently; the durable record is authoritative.
func (h *Hub) Push(p chat.Push) {
	handle, ok := h.presence.Lookup(p.To)
	if !ok {
		glog.V(5).Infof("Push(): user %s offline, dropped", p.To)
		pushesDropped.Inc()
		return
	}
	handler, ok := handle.(*Handler)
	if !ok {
		return
	}
	handler.appendDataChan(&sessionData{ServerMsg: pushServerMsg(p)})
	if p.Receipt != nil {
		receiptsPushed.Inc()
	}
}

func getRemoteIP(r *http.Request) string {
	ip := r.Header.Get("X-REAL-IP")
	if ip == "" {
		if ips := r.Header.Get("X-FORWARDED-FOR"); ips != "" {
			slice := strings.Split(ips, ",")
			for _, x := range slice {
				if x != "" {
					ip = x
				}
			}
		}
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	return ip
}
