package daemon

import (
	"context"
	"fmt"
	"runtime"

	"github.com/homeboy445/fileSharerApp/internal/config"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
	kardianos "github.com/kardianos/service"
)

// DaemonManager runs the coordinator under the host service manager.
type DaemonManager struct {
	cfg       *config.Config
	app       *Application
	appCtx    context.Context
	appCancel context.CancelFunc
	done      chan error
}

func NewDaemonManager(cfg *config.Config, app *Application) *DaemonManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &DaemonManager{
		cfg:       cfg,
		app:       app,
		appCtx:    ctx,
		appCancel: cancel,
		done:      make(chan error, 1),
	}
}

func (m *DaemonManager) newService() (kardianos.Service, error) {
	if m.app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	return kardianos.New(m, &kardianos.Config{
		Name:        m.cfg.ServiceName(),
		DisplayName: m.cfg.ServiceDisplayName(),
		Description: m.cfg.ServiceDescription(),
		Arguments:   []string{"run"},
	})
}

// Start implements kardianos.Interface. It must not block.
func (m *DaemonManager) Start(s kardianos.Service) error {
	logger.Log.Info("Kardianos starting service", "service", m.cfg.ServiceName(), "platform", kardianos.Platform())
	go func() {
		err := m.app.Run(m.appCtx)
		if err != nil {
			logger.Log.Error("❌ Coordinator stopped", "err", err)
		}
		m.done <- err
	}()
	return nil
}

// Stop implements kardianos.Interface and waits for the server to drain.
func (m *DaemonManager) Stop(s kardianos.Service) error {
	logger.Log.Info("Kardianos stopping service", "service", m.cfg.ServiceName())
	m.appCancel()
	return <-m.done
}

func (m *DaemonManager) InstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		if runtime.GOOS == "windows" {
			return fmt.Errorf("failed to install Windows service (requires administrator privileges): %w", err)
		}
		return fmt.Errorf("failed to install service: %w", err)
	}
	return nil
}

func (m *DaemonManager) UninstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		logger.Log.Warn("Service was not running", "err", err)
	}
	return s.Uninstall()
}

// RunDaemon blocks under the service manager, or in the foreground when
// started from a terminal.
func (m *DaemonManager) RunDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Run()
}

func (m *DaemonManager) StatusDaemon() (string, error) {
	s, err := m.newService()
	if err != nil {
		return "", err
	}
	st, err := s.Status()
	if err != nil {
		return "", err
	}
	switch st {
	case kardianos.StatusRunning:
		return "running", nil
	case kardianos.StatusStopped:
		return "stopped", nil
	default:
		return "unknown", nil
	}
}
