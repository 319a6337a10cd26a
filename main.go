package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantfolio/quantfolio/pkg/config"
	"github.com/quantfolio/quantfolio/pkg/db"
	"github.com/quantfolio/quantfolio/pkg/service"
	_ "github.com/quantfolio/quantfolio/pkg/tools/all"
	"github.com/quantfolio/quantfolio/pkg/utils"
)

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("Failed to write default config", "error", err)
	}

	cfg, configFile, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("Config loaded", "file", configFile, "provider", cfg.Model.Provider)

	gdb, err := db.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error("Failed to open database", "path", cfg.DatabasePath(), "error", err)
		os.Exit(1)
	}
	if err := service.NewChatStoreService(gdb).AutoMigrate(); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, gdb)
	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
