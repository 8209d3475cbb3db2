package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/bot"
	"github.com/drongunkam-dotcom/arb-bot/internal/config"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	logger, err := bot.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// optional; wallet key and api key come from the environment
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.New(cfg, logger).Run(ctx); err != nil {
		logger.Fatal("bot exited with error", zap.Error(err))
	}
}
