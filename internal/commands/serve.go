package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/diogo/muralguide/internal/session"
	"github.com/diogo/muralguide/internal/web"
)

// NewServeCmd creates the browser API server command
func NewServeCmd(deps *Dependencies) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the guide to browsers",
		Long: `Serve the guide over HTTP and WebSocket.

Each visitor gets a session with its own welcome and chat screens:

  POST   /api/sessions               create a session
  GET    /api/sessions/:id           current state
  POST   /api/sessions/:id/start     begin the chat
  POST   /api/sessions/:id/messages  submit {"text": "..."}
  POST   /api/sessions/:id/exit      back to the welcome screen
  DELETE /api/sessions/:id           drop the session
  GET    /api/sessions/:id/ws        live state frames`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), deps, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func runServe(ctx context.Context, deps *Dependencies, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := deps.config()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.ListenAddr = addr
	}

	logger, flush, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer flush()

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	services, err := deps.OpenServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer services.Close()

	srv := web.NewServer(cfg.Server, func() *session.Session {
		return newSession(services, cfg, logger)
	}, web.WithLogger(logger.Named("web")))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(deps.Stderr, "Serving %s backend on http://%s\n", services.Name, cfg.Server.ListenAddr)
	return srv.Run(ctx)
}
