package proxy

import (
	"net/http"

	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/eventstream"
	"github.com/papercomputeco/bpmnchat/pkg/prompt"
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3000")
	ListenAddr string

	// PublicDir is an optional directory of static files served at "/".
	PublicDir string

	// DefaultModel is the route used when a request names no model.
	DefaultModel string

	// Providers maps the model names accepted by /api/process to upstream
	// chat completion endpoints.
	Providers map[string]config.ProviderConfig

	// MaxRequeues bounds how many times a partial data line is carried
	// forward while reading the upstream stream.
	MaxRequeues int

	// RootElements overrides the payload root elements searched for in replies.
	RootElements []string

	// Prompts supplies the system prompt. If nil, the embedded default is used.
	Prompts *prompt.Loader

	// Publisher announces stored sessions. If nil, events are not published.
	Publisher eventstream.Publisher

	// Getenv resolves the API key variable each route names. If nil,
	// os.Getenv is used.
	Getenv func(string) string

	// HTTPClient is used for upstream requests. If nil, a client with a
	// five minute timeout is used.
	HTTPClient *http.Client
}
