package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/backend/geminiapi"
	"github.com/diogo/muralguide/internal/backend/openaiapi"
	"github.com/diogo/muralguide/internal/backend/stub"
	"github.com/diogo/muralguide/internal/backend/webgemini"
	"github.com/diogo/muralguide/internal/browser"
	"github.com/diogo/muralguide/internal/config"
	"github.com/diogo/muralguide/internal/conversation"
	"github.com/diogo/muralguide/internal/logging"
	"github.com/diogo/muralguide/internal/session"
	"github.com/diogo/muralguide/internal/tui"
)

// ServicesFactory opens the backend selected by cfg.
type ServicesFactory func(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*backend.Services, error)

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// LoadConfig returns the effective configuration.
	LoadConfig func() (config.Config, error)

	// OpenServices builds the text and image services.
	OpenServices ServicesFactory

	// RunTUI runs the terminal interface until the user quits.
	RunTUI func(sess *session.Session, opts ...tui.Option) error

	// Clipboard copies text to the system clipboard.
	Clipboard func(string) error

	// IsTTY reports whether stdout is a terminal.
	IsTTY func() bool

	Stdout io.Writer
	Stderr io.Writer
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		LoadConfig:   config.Load,
		OpenServices: openServices,
		RunTUI:       tui.Run,
		Clipboard:    clipboard.WriteAll,
		IsTTY:        isStdoutTTY,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
}

// config returns the effective configuration with the global flags applied.
func (d *Dependencies) config() (config.Config, error) {
	cfg, err := d.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if verboseFlag {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the command logger. While the terminal UI owns the screen
// logs go to a file.
func newLogger(cfg config.Config, toFile bool) (*zap.SugaredLogger, func(), error) {
	opts := logging.Options{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		Development: cfg.Verbose && !toFile,
	}
	if cfg.Verbose {
		opts.Level = "debug"
	}
	if toFile && opts.File == "" {
		dir, err := config.GetConfigDir()
		if err != nil {
			return nil, nil, err
		}
		opts.File = filepath.Join(dir, "muralguide.log")
	}
	if !toFile && opts.File == "" && !cfg.Verbose {
		opts.Level = "warn"
	}
	return logging.New(opts)
}

// newSession builds a session over services using the configured greeting.
func newSession(services *backend.Services, cfg config.Config, logger *zap.SugaredLogger) *session.Session {
	var convOpts []conversation.Option
	if cfg.Greeting != "" {
		convOpts = append(convOpts, conversation.WithGreeting(cfg.Greeting))
	}
	return session.New(services.Text, services.Image,
		session.WithLogger(logger),
		session.WithConversationOptions(convOpts...),
	)
}

// openServices builds the backend named by cfg.Backend.
func openServices(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*backend.Services, error) {
	switch cfg.Backend {
	case config.BackendGenAI:
		client, err := geminiapi.NewClient(ctx, cfg.GenAI,
			geminiapi.WithTimeout(cfg.Timeout()),
			geminiapi.WithLogger(logger.Named(geminiapi.Name)),
		)
		if err != nil {
			return nil, err
		}
		return client.Services(), nil

	case config.BackendOpenAI:
		client, err := openaiapi.NewClient(cfg.OpenAI,
			openaiapi.WithTimeout(cfg.Timeout()),
			openaiapi.WithLogger(logger.Named(openaiapi.Name)),
		)
		if err != nil {
			return nil, err
		}
		return client.Services(), nil

	case config.BackendWebGemini:
		return openWebGemini(ctx, cfg, logger.Named(webgemini.Name))

	case config.BackendStub:
		return stub.NewClient(
			stub.WithDelay(400*time.Millisecond),
			stub.WithLogger(logger.Named(stub.Name)),
		).Services(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func openWebGemini(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*backend.Services, error) {
	cookies, err := config.LoadCookies()
	if err != nil {
		if cfg.WebGemini.BrowserRefresh == "" {
			return nil, fmt.Errorf("%w (run 'muralguide auto-login' or 'muralguide import-cookies')", err)
		}
		cookies, err = cookiesFromBrowser(ctx, cfg.WebGemini.BrowserRefresh)
		if err != nil {
			return nil, err
		}
		logger.Infow("cookies loaded from browser", "browser", cfg.WebGemini.BrowserRefresh)
	}

	client, err := webgemini.NewClient(cookies, cfg.WebGemini,
		webgemini.WithTimeout(cfg.Timeout()),
		webgemini.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client.Services(), nil
}

func cookiesFromBrowser(ctx context.Context, name string) (*config.Cookies, error) {
	target, err := browser.ParseBrowser(name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := browser.ExtractGeminiCookies(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	if err := config.SaveCookies(result.Cookies); err != nil {
		return nil, fmt.Errorf("failed to save cookies: %w", err)
	}
	return result.Cookies, nil
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// getTerminalWidth returns the terminal width or a default value
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
