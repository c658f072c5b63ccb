package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/muralguide/internal/render"
	"github.com/diogo/muralguide/internal/tui"
)

// NewChatCmd creates the interactive guide command
func NewChatCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive guide",
		Long: `Start the interactive guide in the terminal.

The welcome screen opens first; press Enter to begin. Ask anything about
Karnataka's mural traditions, or ask to see something to get an image.
Esc goes back to the welcome screen and discards the conversation,
Ctrl+Y copies the latest image reference, Ctrl+C quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), deps)
		},
	}
}

func runChat(ctx context.Context, deps *Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := deps.config()
	if err != nil {
		return err
	}

	logger, flush, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer flush()

	if cfg.TUITheme != "" && !render.SetTUITheme(cfg.TUITheme) {
		fmt.Fprintf(deps.Stderr, "Warning: unknown tui_theme %q, using %s\n", cfg.TUITheme, render.GetTUITheme().Name)
	}
	tui.UpdateTheme()

	spin := newSpinner(deps.Stderr, "Connecting to "+cfg.Backend)
	spin.start()
	services, err := deps.OpenServices(ctx, cfg, logger)
	if err != nil {
		spin.stopWithError()
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer services.Close()
	spin.stopWithSuccess("Connected")

	sess := newSession(services, cfg, logger)
	return deps.RunTUI(sess,
		tui.WithBackendName(services.Name),
		tui.WithRenderOptions(render.FromConfig(cfg.Markdown)),
		tui.WithClipboard(deps.Clipboard),
		tui.WithContext(ctx),
	)
}
