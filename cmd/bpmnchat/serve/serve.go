// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/api"
	apicmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/serve/api"
	proxycmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/serve/proxy"
	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/logger"
	storageutils "github.com/papercomputeco/bpmnchat/pkg/storage/utils"
)

type ServeCommander struct {
	flags     serveFlags
	cfg       *config.Config
	configDir string
	debug     bool

	logger *slog.Logger
}

type serveFlags struct {
	proxyListen  string
	apiListen    string
	sqlitePath   string
	postgresDSN  string
	publicDir    string
	systemPrompt string
	defaultModel string
	maxRequeues  uint
	kafkaTopic   string
	logFile      string
}

var serveFlagKeys = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagPublicDir,
	config.FlagSystemPrompt,
	config.FlagDefaultModel,
	config.FlagMaxRequeues,
	config.FlagKafkaTopic,
	config.FlagLogFile,
}

const serveLongDesc string = `Run bpmnchat services.

Use subcommands to run individual services or all services together:
  bpmnchat serve          Run both proxy and API server together
  bpmnchat serve api      Run just the API server
  bpmnchat serve proxy    Run just the proxy server`

const serveShortDesc string = "Run bpmnchat services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlagKeys)

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
	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &f.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublicDir, &f.publicDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &f.systemPrompt)
	config.AddStringFlag(cmd, config.Flags, config.FlagDefaultModel, &f.defaultModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxRequeues, &f.maxRequeues)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &f.logFile)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
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

	// Create shared driver
	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		SQLitePath:  c.cfg.Storage.SQLitePath,
		PostgresDSN: c.cfg.Storage.PostgresDSN,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	p, closeProxy, err := proxycmder.NewFromConfig(ctx, c.cfg, c.configDir, driver, c.logger)
	if err != nil {
		return err
	}
	defer closeProxy()

	apiServer := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	defer apiServer.Shutdown()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
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
