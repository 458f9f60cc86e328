package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/peterkuimelis/sanctum/internal/config"
	sanctummcp "github.com/peterkuimelis/sanctum/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
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

	tools := &sanctummcp.Tools{
		Engine: cfg.EngineClient(logger),
		Duel:   cfg.DuelTemplate(logger),
	}
	defer tools.Close()

	s := server.NewMCPServer("sanctum", "1.0.0")
	tools.RegisterTools(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
