package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent bpmnchat configuration stored as
// config.toml in the .bpmnchat/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int                       `toml:"version"`
	Storage     StorageConfig             `toml:"storage"`
	Proxy       ProxyConfig               `toml:"proxy"`
	API         APIConfig                 `toml:"api"`
	Client      ClientConfig              `toml:"client"`
	Stream      StreamConfig              `toml:"stream"`
	Payload     PayloadConfig             `toml:"payload"`
	EventStream EventStreamConfig         `toml:"eventstream"`
	Log         LogConfig                 `toml:"log"`
	Providers   map[string]ProviderConfig `toml:"providers,omitempty"`
}

// StorageConfig holds shared storage settings used by both proxy and API.
// PostgresDSN wins over SQLitePath; with neither set records stay in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ProxyConfig holds proxy-specific settings.
type ProxyConfig struct {
	Listen           string `toml:"listen,omitempty"`
	PublicDir        string `toml:"public_dir,omitempty"`
	SystemPromptPath string `toml:"system_prompt_path,omitempty"`
	DefaultModel     string `toml:"default_model,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// proxy and API servers. Targets are full URLs (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
	Model       string `toml:"model,omitempty"`
	Reasoner    bool   `toml:"reasoner,omitempty"`
	DiagramOut  string `toml:"diagram_out,omitempty"`
}

// StreamConfig tunes the stream reader.
type StreamConfig struct {
	MaxRequeues int `toml:"max_requeues"`
}

// PayloadConfig tunes payload classification.
type PayloadConfig struct {
	RootElements []string `toml:"root_elements,omitempty"`
}

// EventStreamConfig enables publishing session events to Kafka when brokers
// are set.
type EventStreamConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// LogConfig holds logging settings shared by every command.
type LogConfig struct {
	// File receives JSON records at debug level in addition to the
	// terminal output when set.
	File string `toml:"file,omitempty"`
}

// ProviderConfig routes a model name accepted by the proxy to an upstream
// chat-completions endpoint.
type ProviderConfig struct {
	Upstream            string   `toml:"upstream" mapstructure:"upstream"`
	APIKeyEnv           string   `toml:"api_key_env" mapstructure:"api_key_env"`
	Model               string   `toml:"model" mapstructure:"model"`
	ReasonerModel       string   `toml:"reasoner_model,omitempty" mapstructure:"reasoner_model"`
	NoTemperatureModels []string `toml:"no_temperature_models,omitempty" mapstructure:"no_temperature_models"`
}

// ModelFor returns the upstream model for the reasoner toggle.
func (p ProviderConfig) ModelFor(reasoner bool) string {
	if reasoner && p.ReasonerModel != "" {
		return p.ReasonerModel
	}
	return p.Model
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// list keys hold comma-separated values.
	list bool
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"proxy.listen": {
		get: func(c *Config) string { return c.Proxy.Listen },
		set: func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	"proxy.public_dir": {
		get: func(c *Config) string { return c.Proxy.PublicDir },
		set: func(c *Config, v string) error { c.Proxy.PublicDir = v; return nil },
	},
	"proxy.system_prompt_path": {
		get: func(c *Config) string { return c.Proxy.SystemPromptPath },
		set: func(c *Config, v string) error { c.Proxy.SystemPromptPath = v; return nil },
	},
	"proxy.default_model": {
		get: func(c *Config) string { return c.Proxy.DefaultModel },
		set: func(c *Config, v string) error { c.Proxy.DefaultModel = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.proxy_target": {
		get: func(c *Config) string { return c.Client.ProxyTarget },
		set: func(c *Config, v string) error { c.Client.ProxyTarget = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"client.model": {
		get: func(c *Config) string { return c.Client.Model },
		set: func(c *Config, v string) error { c.Client.Model = v; return nil },
	},
	"client.reasoner": {
		get: func(c *Config) string { return strconv.FormatBool(c.Client.Reasoner) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for client.reasoner: %w", err)
			}
			c.Client.Reasoner = b
			return nil
		},
	},
	"client.diagram_out": {
		get: func(c *Config) string { return c.Client.DiagramOut },
		set: func(c *Config, v string) error { c.Client.DiagramOut = v; return nil },
	},
	"stream.max_requeues": {
		get: func(c *Config) string { return strconv.Itoa(c.Stream.MaxRequeues) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream.max_requeues: %w", err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for stream.max_requeues: %d is negative", n)
			}
			c.Stream.MaxRequeues = n
			return nil
		},
	},
	"payload.root_elements": {
		get:  func(c *Config) string { return strings.Join(c.Payload.RootElements, ",") },
		set:  func(c *Config, v string) error { c.Payload.RootElements = splitList(v); return nil },
		list: true,
	},
	"eventstream.kafka_brokers": {
		get:  func(c *Config) string { return strings.Join(c.EventStream.KafkaBrokers, ",") },
		set:  func(c *Config, v string) error { c.EventStream.KafkaBrokers = splitList(v); return nil },
		list: true,
	},
	"eventstream.kafka_topic": {
		get: func(c *Config) string { return c.EventStream.KafkaTopic },
		set: func(c *Config, v string) error { c.EventStream.KafkaTopic = v; return nil },
	},
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
}

// orderedKeys matches the TOML section layout.
var orderedKeys = []string{
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"proxy.listen",
	"proxy.public_dir",
	"proxy.system_prompt_path",
	"proxy.default_model",
	"api.listen",
	"client.proxy_target",
	"client.api_target",
	"client.model",
	"client.reasoner",
	"client.diagram_out",
	"stream.max_requeues",
	"payload.root_elements",
	"eventstream.kafka_brokers",
	"eventstream.kafka_topic",
	"log.file",
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
