// Package bpmnchatcmder
package bpmnchatcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/auth"
	chatcmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/chat"
	configcmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/config"
	servecmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/serve"
	sessionscmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/sessions"
	versioncmder "github.com/papercomputeco/bpmnchat/cmd/version"
)

const bpmnchatLongDesc string = `bpmnchat turns process descriptions into BPMN diagrams.

Run services using:
  bpmnchat serve api      Run the API server
  bpmnchat serve proxy    Run the proxy server
  bpmnchat serve          Run both servers together

Talk to them using:
  bpmnchat chat           Describe a process, get a diagram
  bpmnchat sessions       Browse recorded sessions

Store provider keys using:
  bpmnchat auth <route>`

const bpmnchatShortDesc string = "bpmnchat - BPMN diagrams from chat"

func NewBpmnchatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bpmnchat",
		Short:        bpmnchatShortDesc,
		Long:         bpmnchatLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .bpmnchat/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
