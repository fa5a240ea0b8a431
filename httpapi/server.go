package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/chitamrita/chatd/auth"
	"github.com/chitamrita/chatd/chat"
)

// Pusher forwards live pushes produced by REST-triggered operations, e.g.
// read receipts from a bulk mark-read. The websocket hub implements it.
type Pusher interface {
	Push(p chat.Push)
}

// Server is the query-style HTTP surface: chat list, pair history, bulk
// mark-read and media upload. Every route requires authentication.
type Server struct {
	router *mux.Router

	authClient auth.Client
	aggregator *chat.Aggregator
	receipts   *chat.Receipts
	pusher     Pusher
	uploadsDir string
}

func NewServer(authClient auth.Client, aggregator *chat.Aggregator, receipts *chat.Receipts,
	pusher Pusher, uploadsDir string) *Server {

	s := &Server{
		router:     mux.NewRouter(),
		authClient: authClient,
		aggregator: aggregator,
		receipts:   receipts,
		pusher:     pusher,
		uploadsDir: uploadsDir,
	}

	s.router.HandleFunc("/api/chats", s.withAuth(s.listChats)).Methods(http.MethodGet)
	s.router.HandleFunc("/api/messages/{userId}", s.withAuth(s.getMessages)).Methods(http.MethodGet)
	s.router.HandleFunc("/api/messages/{userId}/read", s.withAuth(s.markReadFrom)).Methods(http.MethodPost)
	s.router.HandleFunc("/api/upload", s.withAuth(s.upload)).Methods(http.MethodPost)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) withAuth(next func(w http.ResponseWriter, r *http.Request, uid string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.authClient.Auth(r)
		if err != nil {
			glog.Errorf("withAuth(): authenticate error: %v", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, uid)
	}
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request, uid string) {
	summaries, err := s.aggregator.ListConversations(r.Context(), uid)
	if err != nil {
		glog.Errorf("listChats(): uid: %s, err: %v", uid, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request, uid string) {
	partnerID := mux.Vars(r)["userId"]
	msgs, err := s.aggregator.GetConversation(r.Context(), uid, partnerID)
	if err != nil {
		glog.Errorf("getMessages(): uid: %s, partner: %s, err: %v", uid, partnerID, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// markReadFrom marks every unread message from {userId} to the caller as
// read, and forwards the resulting receipt pushes to the hub.
func (s *Server) markReadFrom(w http.ResponseWriter, r *http.Request, uid string) {
	senderID := mux.Vars(r)["userId"]
	count, pushes, err := s.receipts.MarkReadFrom(r.Context(), senderID, uid)
	if err != nil {
		glog.Errorf("markReadFrom(): uid: %s, sender: %s, err: %v", uid, senderID, err)
		writeDomainError(w, err)
		return
	}
	for _, p := range pushes {
		s.pusher.Push(p)
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": count})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("writeJSON(): encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, chat.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, chat.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporary storage error")
	default:
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
