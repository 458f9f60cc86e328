package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterkuimelis/sanctum/internal/config"
	"github.com/peterkuimelis/sanctum/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	gameAddr := flag.String("game", "", "session server address (default: server.addr from configuration)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	addr := *gameAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(cfg.EngineClient(logger), addr, logger.Named("web"))
	if err := srv.ListenAndServe(ctx, cfg.Server.WebAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
