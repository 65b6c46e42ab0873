package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/homeboy445/fileSharerApp/internal/api/routers"
	"github.com/homeboy445/fileSharerApp/internal/config"
	"github.com/homeboy445/fileSharerApp/internal/coordinator"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
	"github.com/homeboy445/fileSharerApp/pkg/system"
)

const shutdownGrace = 5 * time.Second

// Application is the coordinator process: a hub behind the HTTP router.
type Application struct {
	config *config.Config
	hub    *coordinator.Hub
	server *http.Server
}

func NewApplication(cfg *config.Config) *Application {
	hub := coordinator.NewHub()
	return &Application{
		config: cfg,
		hub:    hub,
		server: &http.Server{
			Handler:           routers.New(hub),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (app *Application) Hub() *coordinator.Hub {
	return app.hub
}

// Run listens on the configured port until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+app.config.Port())
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", app.config.Port(), err)
	}
	return app.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	system.InitStartTime()
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("🚀 Coordinator listening", "addr", ln.Addr().String())
		errCh <- app.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	logger.Log.Info("Coordinator shutting down")
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
