package main

import (
	"os"

	bpmnchatcmder "github.com/papercomputeco/bpmnchat/cmd/bpmnchat"
)

func main() {
	cmd := bpmnchatcmder.NewBpmnchatCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
