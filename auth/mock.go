package auth

import (
	"fmt"
	"net/http"

	"github.com/chitamrita/chatd/chat"
)

// MockClient is the dev-mode client: the user id comes straight from an
// `x-uid` cookie or query parameter, no identity provider involved.
type MockClient struct{}

func (c *MockClient) Auth(r *http.Request) (string, error) {
	var uid string

	if c, err := r.Cookie("x-uid"); err == nil {
		uid = c.Value
	}
	if uid == "" {
		uid = r.URL.Query().Get("x-uid")
	}

	if uid == "" {
		return "", fmt.Errorf("%w: empty x-uid cookie", chat.ErrAuthenticationFailed)
	}
	return uid, nil
}
