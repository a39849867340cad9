package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/depotkit/pkg/depot/config"
	"github.com/jamesainslie/depotkit/pkg/depot/logging"
)

// app carries the state shared by every subcommand.
type app struct {
	cfgFile string
	verbose bool
	quiet   bool

	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "depotkit",
		Short: "Inspect and rewrite depot manifests",
		Long: `depotkit reads depot manifest files, lists their contents, decrypts
filenames, rewrites manifests and verifies chunk stores against them.

Examples:
  depotkit info 731.manifest                # Show manifest metadata
  depotkit files 731.manifest -f json       # List files as JSON
  depotkit decrypt 731.manifest -o out.manifest
  depotkit verify 731.manifest --chunks ./chunks
  depotkit index scan ~/depots              # Index every manifest under a tree
  depotkit config show                      # Show configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stdout = cmd.OutOrStdout()
			a.stderr = cmd.ErrOrStderr()
			return a.initializeLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ~/.config/depotkit/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug output on stderr")
	cmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "minimal output")

	cmd.AddCommand(
		newInfoCommand(a),
		newFilesCommand(a),
		newDecryptCommand(a),
		newRewriteCommand(a),
		newVerifyCommand(a),
		newAdler32Command(a),
		newIndexCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err != nil {
		printError(cmd.ErrOrStderr(), "%v", err)
	}
	return err
}

// printVerbose prints a message if verbose mode is enabled.
func (a *app) printVerbose(format string, args ...interface{}) {
	if a.verbose && !a.quiet {
		fmt.Fprintf(a.stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func (a *app) printInfo(format string, args ...interface{}) {
	if !a.quiet {
		fmt.Fprintf(a.stdout, format+"\n", args...)
	}
}

// printError prints an error message.
func printError(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
}
