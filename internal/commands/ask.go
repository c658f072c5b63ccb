package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/config"
	"github.com/diogo/muralguide/internal/guide"
	"github.com/diogo/muralguide/internal/models"
	"github.com/diogo/muralguide/internal/render"
	"github.com/diogo/muralguide/internal/tui"
)

// Styles matching the chat TUI
var (
	guideLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	guideBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginTop(1).
				MarginBottom(1)

	imageNoteStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Italic(true)
)

type askOptions struct {
	copy      bool
	saveImage string
}

// NewAskCmd creates the one-shot question command
func NewAskCmd(deps *Dependencies) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the guide a single question",
		Long: `Ask the guide one question and print its reply.

When the question asks to see something, the guide also generates an image.
Use --save-image to write it to a file or --copy to put its reference on the
clipboard.

Examples:
  muralguide ask "What is Chittara?"
  muralguide ask "Show me a Hampi ceiling mural" --save-image hampi.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), deps, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.copy, "copy", "c", false, "Copy the image reference (or the reply) to the clipboard")
	cmd.Flags().StringVarP(&opts.saveImage, "save-image", "s", "", "Write a generated image to this file")
	return cmd
}

// runAsk runs one submission and prints the guide's reply
func runAsk(ctx context.Context, deps *Dependencies, question string, opts askOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("question cannot be empty")
	}

	cfg, err := deps.config()
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer flush()

	decorated := deps.IsTTY()
	var spin *spinner
	if decorated {
		spin = newSpinner(deps.Stderr, "Opening "+cfg.Backend)
		spin.start()
	}

	services, err := deps.OpenServices(ctx, cfg, logger)
	if err != nil {
		if decorated {
			spin.stopWithError()
			fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Failed to open backend"))
		}
		return fmt.Errorf("failed to open backend: %w", err)
	}
	defer services.Close()
	if decorated {
		spin.stopWithSuccess("Connected to " + services.Name)
		spin = newSpinner(deps.Stderr, "Asking the guide")
		spin.start()
	}

	sess := newSession(services, cfg, logger)
	defer sess.Exit()

	conv, err := sess.Start()
	if err != nil {
		if decorated {
			spin.stopWithError()
		}
		return err
	}

	startTime := time.Now()
	snap, err := conv.SubmitAndWait(ctx, question)
	if decorated {
		if err != nil {
			spin.stopWithError()
		} else {
			spin.stopWithSuccess("Done")
		}
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if cfg.Verbose {
		fmt.Fprintf(deps.Stderr, "[verbose] Backend: %s, took %s\n", services.Name, time.Since(startTime).Round(time.Millisecond))
	}

	reply, ok := snap.Last()
	if !ok || reply.Role != models.RoleModel {
		return errors.New("the guide did not reply")
	}
	if reply.Failed() && reply.Text == models.ApologyText {
		fmt.Fprintln(deps.Stderr, errorLine(reply.Text+" "+reply.Error))
		return fmt.Errorf("guide failed: %s", reply.Error)
	}

	printReply(deps, cfg, reply, decorated)

	if reply.Failed() {
		fmt.Fprintln(deps.Stderr, errorLine(guide.ImageFailedTitle+": "+reply.Error))
	}
	if reply.HasImage() && opts.saveImage != "" {
		if err := saveImage(reply.ImageRef, opts.saveImage); err != nil {
			return err
		}
		fmt.Fprintln(deps.Stderr, successLine("Image saved to "+opts.saveImage))
	}
	if opts.copy || cfg.CopyToClipboard {
		copyReply(deps, reply)
	}
	return nil
}

func printReply(deps *Dependencies, cfg config.Config, reply models.Message, decorated bool) {
	if !decorated {
		if reply.Text != "" {
			fmt.Fprintln(deps.Stdout, reply.Text)
		}
		if reply.HasImage() {
			fmt.Fprintln(deps.Stdout, reply.ImageRef)
		}
		return
	}

	bubbleWidth := getTerminalWidth() - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}
	contentWidth := bubbleWidth - 4

	fmt.Fprintln(deps.Stdout, guideLabelStyle.Render("✦ "+guide.ChatHeader))
	if reply.Text != "" {
		rendered := render.MarkdownOrPlain(reply.Text, render.FromConfig(cfg.Markdown).WithWidth(contentWidth))
		fmt.Fprintln(deps.Stdout, guideBubbleStyle.Width(bubbleWidth).Render(rendered))
	}
	if reply.HasImage() {
		fmt.Fprintln(deps.Stdout, imageNoteStyle.Render("🖼 "+imageSummary(reply.ImageRef)))
	}
}

// imageSummary describes an image reference without dumping inline data
func imageSummary(ref string) string {
	if !backend.IsDataURI(ref) {
		return ref
	}
	mimeType, data, err := backend.ParseDataURI(ref)
	if err != nil {
		return "inline image"
	}
	return fmt.Sprintf("%s image, %d bytes (use --save-image to keep it)", mimeType, len(data))
}

// saveImage writes an inline image to path
func saveImage(ref, path string) error {
	if !backend.IsDataURI(ref) {
		return fmt.Errorf("image is hosted at %s and was not downloaded", ref)
	}
	_, data, err := backend.ParseDataURI(ref)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func copyReply(deps *Dependencies, reply models.Message) {
	content, what := reply.Text, "Reply"
	if reply.HasImage() {
		content, what = reply.ImageRef, "Image reference"
	}
	if err := deps.Clipboard(content); err != nil {
		fmt.Fprintln(deps.Stderr, errorLine(fmt.Sprintf("Failed to copy to clipboard: %v", err)))
		return
	}
	fmt.Fprintln(deps.Stderr, successLine(what+" copied to clipboard"))
}

func successLine(msg string) string {
	return lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ " + msg)
}

func errorLine(msg string) string {
	return lipgloss.NewStyle().Foreground(colorError).Render("⚠ " + msg)
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}
	return tui.FormatError(fmt.Errorf("%s: %w", context, err))
}
