package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jade-labs/atomgraph/internal/server"
	"github.com/jade-labs/atomgraph/internal/util"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()
	cfg := util.LoadConfig()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		JSON:   cfg.JSONLog,
		Prefix: "server",
	})
	logger.Init(consoleLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.Init(ctx, cfg)
}
