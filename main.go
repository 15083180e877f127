package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bluray-lister/cli"
	"bluray-lister/config"
	"bluray-lister/utils"
)

func main() {
	logger := utils.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Debug)
	logger.Debug("[main] Config: templates: %s | working set: %s | concurrency: %d | rate: %dms",
		cfg.TemplateDir, cfg.WorkingSetPath, cfg.MaxConcurrency, cfg.RateLimitMs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cfg, logger)
	defer app.Close()

	if err := cli.NewRootCmd(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
