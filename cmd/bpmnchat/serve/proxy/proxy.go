// Package proxycmder provides the proxy server command.
package proxycmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/credentials"
	eventstreamutils "github.com/papercomputeco/bpmnchat/pkg/eventstream/utils"
	"github.com/papercomputeco/bpmnchat/pkg/logger"
	"github.com/papercomputeco/bpmnchat/pkg/prompt"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
	storageutils "github.com/papercomputeco/bpmnchat/pkg/storage/utils"
	"github.com/papercomputeco/bpmnchat/proxy"
)

type proxyCommander struct {
	flags     proxyFlags
	cfg       *config.Config
	configDir string
	debug     bool

	logger *slog.Logger
}

// proxyFlags hold flag targets; values reach the command through viper.
type proxyFlags struct {
	listen       string
	sqlitePath   string
	postgresDSN  string
	publicDir    string
	systemPrompt string
	defaultModel string
	maxRequeues  uint
	kafkaTopic   string
	logFile      string
}

var proxyFlagKeys = []string{
	config.FlagProxyListenStandalone,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagPublicDir,
	config.FlagSystemPrompt,
	config.FlagDefaultModel,
	config.FlagMaxRequeues,
	config.FlagKafkaTopic,
	config.FlagLogFile,
}

const proxyLongDesc string = `Run the proxy server.

The proxy accepts prompts on POST /api/process, forwards them with the system
prompt to the selected provider route and streams the reply back as plain
text. Every finished session is recorded to storage and, when Kafka brokers
are configured, announced on the session event topic.

Provider routes are configured in [providers.<name>] tables of config.toml;
"chatgpt" and "deepseek" are available by default. API keys are read from the
environment variable each route names (OPENAI_API_KEY, DEEPSEEK_API_KEY).`

const proxyShortDesc string = "Run the bpmnchat proxy server"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, proxyFlagKeys)

			cmder.cfg, err = config.Resolve(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublicDir, &f.publicDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &f.systemPrompt)
	config.AddStringFlag(cmd, config.Flags, config.FlagDefaultModel, &f.defaultModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxRequeues, &f.maxRequeues)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &f.logFile)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log, closeLog, err := logger.ForCommand(os.Stdout, c.debug, c.cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		SQLitePath:  c.cfg.Storage.SQLitePath,
		PostgresDSN: c.cfg.Storage.PostgresDSN,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	p, closeProxy, err := NewFromConfig(ctx, c.cfg, c.configDir, driver, c.logger)
	if err != nil {
		return err
	}
	defer closeProxy()

	errChan := make(chan error, 1)
	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}

// NewFromConfig wires a proxy from resolved configuration: the system prompt
// loader (watched for changes while ctx lives), stored provider credentials
// from configDir and the session event publisher. The returned func closes
// the proxy and publisher.
func NewFromConfig(ctx context.Context, cfg *config.Config, configDir string, driver storage.Driver, log *slog.Logger) (*proxy.Proxy, func() error, error) {
	credsMgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading credentials: %w", err)
	}
	creds, err := credsMgr.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading credentials: %w", err)
	}

	prompts, err := prompt.NewLoader(cfg.Proxy.SystemPromptPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("loading system prompt: %w", err)
	}
	if prompts.Path() != "" {
		go func() {
			if err := prompts.Watch(ctx); err != nil {
				log.Warn("system prompt watch stopped", "path", prompts.Path(), "error", err)
			}
		}()
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		KafkaBrokers: cfg.EventStream.KafkaBrokers,
		KafkaTopic:   cfg.EventStream.KafkaTopic,
		Logger:       log,
	})
	if err != nil {
		return nil, nil, err
	}

	p, err := proxy.New(proxy.Config{
		ListenAddr:   cfg.Proxy.Listen,
		PublicDir:    cfg.Proxy.PublicDir,
		DefaultModel: cfg.Proxy.DefaultModel,
		Providers:    cfg.Providers,
		MaxRequeues:  cfg.Stream.MaxRequeues,
		RootElements: cfg.Payload.RootElements,
		Prompts:      prompts,
		Publisher:    publisher,
		Getenv:       creds.Getenv(cfg.Providers, os.Getenv),
	}, driver, log)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, fmt.Errorf("creating proxy: %w", err)
	}

	closeAll := func() error {
		// The proxy drains its worker pool before the publisher goes away.
		return errors.Join(p.Close(), publisher.Close())
	}
	return p, closeAll, nil
}
