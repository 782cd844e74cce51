package llm

// ErrorResponse is the JSON error body returned by the proxy and API servers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
