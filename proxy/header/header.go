// Package header sets the headers on each leg of a proxied chat request.
//
// This proxy sits between a browser or CLI client and an upstream chat
// completions provider like so:
//
//	Client <--> Proxy <--> Upstream LLM Provider
//
// The client never sees provider credentials: the proxy builds the upstream
// request itself and streams the raw reply back as plain text.
package header

import (
	"net/http"
	"os"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between proxy connections.
type Handler struct {
	getenv func(string) string
}

// Option configures a Handler.
type Option func(*Handler)

// WithGetenv replaces the environment lookup used to resolve API keys.
func WithGetenv(fn func(string) string) Option {
	return func(h *Handler) {
		if fn != nil {
			h.getenv = fn
		}
	}
}

// NewHandler creates a new header Handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{getenv: os.Getenv}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// streamHeaders are set on every streamed reply to the client. The body is
// the upstream event stream passed through untouched, so the client parses
// it as plain text.
var streamHeaders = map[string]string{
	fiber.HeaderContentType:  "text/plain; charset=utf-8",
	fiber.HeaderCacheControl: "no-cache",
	fiber.HeaderConnection:   "keep-alive",
}

// SetUpstreamRequestHeaders sets the JSON content type and, when apiKeyEnv
// names a non-empty environment variable, a bearer Authorization header.
func (h *Handler) SetUpstreamRequestHeaders(req *http.Request, apiKeyEnv string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	if apiKeyEnv == "" {
		return
	}
	if key := h.getenv(apiKeyEnv); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// SetClientStreamHeaders sets the headers for a streamed reply.
func (h *Handler) SetClientStreamHeaders(c *fiber.Ctx) {
	for k, v := range streamHeaders {
		c.Set(k, v)
	}
}

// SetClientErrorHeaders copies the upstream content type onto a passed
// through error reply.
func (h *Handler) SetClientErrorHeaders(c *fiber.Ctx, resp *http.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}
}
