package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chitamrita/chatd/chat"
)

const verifyTimeout = 5 * time.Second

// HTTPClient verifies credentials against the identity provider's verify
// endpoint.
type HTTPClient struct {
	verifyURL string
	hc        *http.Client
}

func NewHTTPClient(verifyURL string) *HTTPClient {
	return &HTTPClient{
		verifyURL: verifyURL,
		hc:        &http.Client{Timeout: verifyTimeout},
	}
}

func (c *HTTPClient) Auth(r *http.Request) (string, error) {
	cred := Credential(r)
	if cred == "" {
		return "", fmt.Errorf("%w: no credential", chat.ErrAuthenticationFailed)
	}

	body, err := json.Marshal(map[string]string{"token": cred})
	if err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrAuthenticationFailed, err)
	}

	resp, err := c.hc.Post(c.verifyURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: verify call: %v", chat.ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: verify status %d", chat.ErrAuthenticationFailed, resp.StatusCode)
	}

	var out struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode verify response: %v", chat.ErrAuthenticationFailed, err)
	}
	if out.UserID == "" {
		return "", fmt.Errorf("%w: empty userId in verify response", chat.ErrAuthenticationFailed)
	}
	return out.UserID, nil
}
