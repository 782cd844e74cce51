// Package versioncmder provides the version command.
package versioncmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/bpmnchat/pkg/cliui"
	"github.com/papercomputeco/bpmnchat/pkg/utils"
)

type versionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the bpmnchat version",
		Long:  "Print the version, commit and build time of this bpmnchat binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&cmder.short, "short", "s", false, "Print only the version number")

	return cmd
}

func (c *versionCommander) run(w io.Writer) error {
	if c.short {
		_, err := fmt.Fprintln(w, utils.Version)
		return err
	}

	rows := [][2]string{
		{"Version:", utils.Version},
		{"Commit:", utils.Sha},
		{"Built:", utils.Buildtime},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-8s", row[0])), row[1]); err != nil {
			return err
		}
	}
	return nil
}
