// Package commands provides CLI commands for muralguide.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	backendFlag string
	verboseFlag bool

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// NewRootCmd creates the muralguide command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	var askOpts askOptions

	root := &cobra.Command{
		Use:   "muralguide [question]",
		Short: "A guide to the mural art of Karnataka",
		Long: `muralguide is an AI art historian for the mural traditions of Karnataka.
Ask about Chittara, the Vijayanagara ceilings of Hampi and Lepakshi, or
Mysore painting, and ask it to show you something to get a generated image
in the style of a traditional mural.

Examples:
  muralguide chat                          Start the interactive guide
  muralguide serve                         Serve the browser API
  muralguide "What is Chittara?"           Ask a single question
  echo "Show me Kasuti motifs" | muralguide
  muralguide -b stub chat                  Run offline with canned answers`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(deps.Stdout, "muralguide %s (built %s)\n", Version, BuildTime)
				return nil
			}

			if len(args) > 0 {
				return runAsk(cmd.Context(), deps, args[0], askOpts)
			}

			if hasStdin(cmd.InOrStdin()) {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				return runAsk(cmd.Context(), deps, string(data), askOpts)
			}

			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "",
		"Backend to use (genai, openai, webgemini, stub)")
	root.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Verbose logging")
	root.Flags().BoolP("version", "v", false, "Show version and exit")
	root.Flags().BoolVarP(&askOpts.copy, "copy", "c", false, "Copy the image reference (or the reply) to the clipboard")
	root.Flags().StringVarP(&askOpts.saveImage, "save-image", "s", "", "Write a generated image to this file")

	root.AddCommand(
		NewChatCmd(deps),
		NewServeCmd(deps),
		NewAskCmd(deps),
		NewConfigCmd(deps),
		importCookiesCmd,
		autoLoginCmd,
	)
	return root
}

// hasStdin reports whether r is piped input rather than a terminal
func hasStdin(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// Execute runs the root command
func Execute() {
	deps := NewDependencies()
	if err := NewRootCmd(deps).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Error"))
		os.Exit(1)
	}
}
