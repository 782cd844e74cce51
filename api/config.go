// Package api provides an HTTP API server for inspecting recorded chat
// sessions and the diagrams they produced.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3001")
	ListenAddr string
}
