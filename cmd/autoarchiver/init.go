package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/autoarchiver/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented orchestration document",
		Long: `Init writes the default orchestration document, with comments explaining
every section, so it can be edited before the first run.

The document runs the CLI feeder, the page extractor, the hash enricher, the
console database, local storage and the Markdown formatter.

Examples:
  # Create orchestration.yaml in the current directory
  autoarchiver init

  # Create the document at a specific path
  autoarchiver init -o ~/.config/autoarchiver/orchestration.yaml

  # Overwrite an existing document
  autoarchiver init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the orchestration document")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing document")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("orchestration document already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	if err := config.DefaultDocument().Save(outputPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created orchestration document: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit it to choose the modules of each step, for example:")
	fmt.Fprintln(out, "  - steps.extractors: which extractors are tried, in order")
	fmt.Fprintln(out, "  - local_storage.save_to: where archived files go")
	fmt.Fprintln(out, "  - logging.level: DEBUG, INFO, WARN or ERROR")
	return nil
}
