package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X poe-router/cmd.Version=...".
var Version = "dev"

// NewRootCmd assembles the CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "poe-router",
		Short:         "OpenAI-compatible chat completions in front of Poe bots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "poe-router", Version)
			return err
		},
	}
}
