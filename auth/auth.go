package auth

import (
	"net/http"
	"strings"
)

// Client exchanges the opaque credential carried by an inbound request for a
// stable user id. The core never issues or validates credentials itself.
type Client interface {
	// Auth authenticates the request, returning the user id. Failure is
	// chat.ErrAuthenticationFailed, possibly wrapped.
	Auth(r *http.Request) (string, error)
}

// Credential extracts the bearer credential from a request: the
// Authorization header, falling back to a `token` query parameter for
// browser websocket handshakes that cannot set headers.
func Credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
