package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. overrides holds the dotted
// --module.option values taken out of the arguments before parsing.
func NewRootCmd(overrides map[string]string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoarchiver",
		Short: "Archive web content through configurable modules",
		Long: `autoarchiver archives URLs through a pipeline of modules.

A feeder produces the URLs, extractors capture each one, enrichers add
hashes and other details, storages keep the captured files, databases record
the outcome and a formatter writes a summary of every item.

Which modules run, and with which options, is set in the orchestration
document (orchestration.yaml). Any module option can be overridden on the
command line as --module.option=value.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewArchiveCmd(overrides))
	cmd.AddCommand(NewModulesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	args, overrides := splitOverrides(os.Args[1:])
	cmd := NewRootCmd(overrides)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
