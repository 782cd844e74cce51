package main

import (
	"os"

	apicmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "bpmnchatapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .bpmnchat/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
