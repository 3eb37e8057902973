// cmd/discord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/keshon/rickbot/internal/bot"
	"github.com/keshon/rickbot/internal/config"
	"github.com/keshon/rickbot/internal/discord"
	"github.com/keshon/rickbot/internal/logging"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("[ERR] Invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[ERR] %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Verbose: cfg.Verbose, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("[ERR] Failed to build logger: %v", err)
	}
	defer logging.Install(logger)()
	defer logger.Sync()

	log.Printf("[INFO] Starting rickbot with prefix %q...", cfg.Prefix)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bot.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	if err := app.StartJobs(); err != nil {
		logger.Fatal("failed to start background jobs", zap.Error(err))
	}

	b, err := discord.New(cfg.DiscordToken, app.Dispatcher, discord.Options{Log: logger.Named("discord")})
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}
	if err := b.Run(ctx); err != nil {
		logger.Error("discord bot stopped", zap.Error(err))
		return
	}
	log.Println("[INFO] ❎ Shutdown complete")
}
