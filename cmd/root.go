package cmd

import (
	"os"

	"github.com/bmeg/kgload/cmd/abox"
	"github.com/bmeg/kgload/cmd/drop"
	"github.com/bmeg/kgload/cmd/tbox"
	"github.com/bmeg/kgload/cmd/verify"
	"github.com/bmeg/kgload/cmd/version"
	"github.com/spf13/cobra"
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:           "kgload",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	RootCmd.AddCommand(abox.Cmd)
	RootCmd.AddCommand(tbox.Cmd)
	RootCmd.AddCommand(drop.Cmd)
	RootCmd.AddCommand(verify.Cmd)
	RootCmd.AddCommand(version.Cmd)
	RootCmd.AddCommand(genBashCompletionCmd)
}

var genBashCompletionCmd = &cobra.Command{
	Use: "bash",
	Run: func(cmd *cobra.Command, args []string) {
		RootCmd.GenBashCompletion(os.Stdout)
	},
}
