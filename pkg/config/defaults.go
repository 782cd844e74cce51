package config

const (
	defaultProxyListen = ":3000"
	defaultAPIListen   = ":3001"

	defaultClientProxyTarget = "http://localhost:3000"
	defaultClientAPITarget   = "http://localhost:3001"
	defaultClientModel       = "chatgpt"
	defaultDiagramOut        = "diagram.bpmn"

	defaultMaxRequeues = 4
	defaultKafkaTopic  = "bpmnchat.sessions"
)

// defaultProviders are the routes the proxy accepts out of the box.
func defaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"chatgpt": {
			Upstream:            "https://api.openai.com/v1/chat/completions",
			APIKeyEnv:           "OPENAI_API_KEY",
			Model:               "gpt-4o",
			ReasonerModel:       "o3-2025-04-16",
			NoTemperatureModels: []string{"o3-2025-04-16"},
		},
		"deepseek": {
			Upstream:      "https://api.deepseek.com/v1/chat/completions",
			APIKeyEnv:     "DEEPSEEK_API_KEY",
			Model:         "deepseek-chat",
			ReasonerModel: "deepseek-reasoner",
		},
	}
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Listen: defaultProxyListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
			Model:       defaultClientModel,
			DiagramOut:  defaultDiagramOut,
		},
		Stream: StreamConfig{
			MaxRequeues: defaultMaxRequeues,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Providers: defaultProviders(),
	}
}
