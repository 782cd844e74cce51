package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on both "bpmnchat serve" and "bpmnchat serve api").
type Flag struct {
	// Name is the long flag name (e.g. "sqlite").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.sqlite_path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag, AddBoolFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagProxyListen  = "proxy-listen"
	FlagAPIListen    = "api-listen"
	FlagSQLite       = "sqlite"
	FlagPostgres     = "postgres"
	FlagPublicDir    = "public-dir"
	FlagSystemPrompt = "system-prompt"
	FlagDefaultModel = "default-model"
	FlagMaxRequeues  = "max-requeues"
	FlagKafkaTopic   = "kafka-topic"
	FlagAPITarget    = "api-target"
	FlagProxyTarget  = "proxy-target"
	FlagModel        = "model"
	FlagReasoner     = "reasoner"
	FlagDiagramOut   = "out"
	FlagLogFile      = "log-file"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagProxyListen:           {Name: "proxy-listen", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListen:             {Name: "api-listen", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for the proxy to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagSQLite:                {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: in-memory)"},
	FlagPostgres:              {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string (overrides --sqlite)"},
	FlagPublicDir:             {Name: "public-dir", ViperKey: "proxy.public_dir", Description: "Directory of static files to serve"},
	FlagSystemPrompt:          {Name: "system-prompt", ViperKey: "proxy.system_prompt_path", Description: "System prompt file, reloaded on change (default: built-in)"},
	FlagDefaultModel:          {Name: "default-model", ViperKey: "proxy.default_model", Description: "Model used when a request names none"},
	FlagMaxRequeues:           {Name: "max-requeues", ViperKey: "stream.max_requeues", Description: "Attempts to complete a malformed stream event before dropping it"},
	FlagKafkaTopic:            {Name: "kafka-topic", ViperKey: "eventstream.kafka_topic", Description: "Kafka topic for session events"},
	FlagAPITarget:             {Name: "api-target", ViperKey: "client.api_target", Description: "bpmnchat API server URL"},
	FlagProxyTarget:           {Name: "proxy-target", ViperKey: "client.proxy_target", Description: "bpmnchat proxy URL"},
	FlagModel:                 {Name: "model", Shorthand: "m", ViperKey: "client.model", Description: "Model route (chatgpt, deepseek)"},
	FlagReasoner:              {Name: "reasoner", Shorthand: "r", ViperKey: "client.reasoner", Description: "Use the reasoning model of the route"},
	FlagDiagramOut:            {Name: "out", Shorthand: "o", ViperKey: "client.diagram_out", Description: "File the current diagram is saved to"},
	FlagLogFile:               {Name: "log-file", ViperKey: "log.file", Description: "Also write JSON debug logs to this file"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
