package main

import (
	"fmt"
	"os"

	"github.com/homeboy445/fileSharerApp/internal/config"
	"github.com/homeboy445/fileSharerApp/internal/daemon"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

func main() {
	cfg := config.New()
	logger.Init(cfg.LogFile(), true)
	app := daemon.NewApplication(cfg)
	manager := daemon.NewDaemonManager(cfg, app)

	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "install":
		if err := manager.InstallDaemon(); err != nil {
			logger.Log.Error("❌ Install failed", "err", err)
			os.Exit(1)
		}
		logger.Log.Info("✅ Service installed")
	case "uninstall":
		if err := manager.UninstallDaemon(); err != nil {
			logger.Log.Error("❌ Uninstall failed", "err", err)
			os.Exit(1)
		}
		logger.Log.Info("✅ Service uninstalled")
	case "status":
		status, err := manager.StatusDaemon()
		if err != nil {
			logger.Log.Error("❌ Status failed", "err", err)
			os.Exit(1)
		}
		fmt.Println(status)
	case "run":
		if err := manager.RunDaemon(); err != nil {
			logger.Log.Error("❌ Service failed", "err", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [run|install|uninstall|status]\n", os.Args[0])
		os.Exit(2)
	}
}
