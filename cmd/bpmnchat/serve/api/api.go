// Package apicmder provides the API bpmnchat server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/api"
	"github.com/papercomputeco/bpmnchat/pkg/config"
	"github.com/papercomputeco/bpmnchat/pkg/logger"
	storageutils "github.com/papercomputeco/bpmnchat/pkg/storage/utils"
)

type apiCommander struct {
	listen      string
	sqlitePath  string
	postgresDSN string
	logFile     string
	cfg         *config.Config
	debug       bool
	logger      *slog.Logger
}

var apiFlagKeys = []string{
	config.FlagAPIListenStandalone,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagLogFile,
}

const apiLongDesc string = `Run the bpmnchat API server for inspecting recorded chat sessions.

Routes:
  GET /ping                       Health check
  GET /v1/stats                   Session counts by outcome
  GET /v1/sessions                Sessions, newest first (?limit=, ?outcome=)
  GET /v1/sessions/:id            One session record
  GET /v1/sessions/:id/diagram    The session's diagram as formatted XML`

const apiShortDesc string = "Run the bpmnchat API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, apiFlagKeys)

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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.logFile)

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

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

	server := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	defer server.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
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
