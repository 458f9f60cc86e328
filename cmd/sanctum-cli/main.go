package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/peterkuimelis/sanctum/internal/config"
	sanctumnet "github.com/peterkuimelis/sanctum/internal/net"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "play":
		err = runPlay(ctx, os.Args[2:])
	case "host":
		err = runHost(ctx, os.Args[2:])
	case "join":
		err = runJoin(ctx, os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  sanctum play [--config FILE] [--faction NAME] [--transcript FILE]")
	fmt.Println("  sanctum host [--config FILE] [--addr ADDR] [--transcript FILE]")
	fmt.Println("  sanctum join [--addr ADDR] [--faction NAME]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  play    Play against the engine's opponent in this terminal")
	fmt.Println("  host    Serve sessions to remote clients")
	fmt.Println("  join    Connect to a session server and play")
}

// setup loads configuration and builds the diagnostic logger.
func setup(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newServer(cfg config.Config, logger *zap.Logger) *sanctumnet.Server {
	return &sanctumnet.Server{
		Engine: cfg.EngineClient(logger),
		Duel:   cfg.DuelTemplate(logger),
		Addr:   cfg.Server.Addr,
		Diag:   logger.Named("server"),
	}
}

// withTranscript points srv's game log at path, appending. An empty path
// leaves the server without a transcript.
func withTranscript(srv *sanctumnet.Server, path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	srv.Transcript = f
	return func() { f.Close() }, nil
}

func runPlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	faction := fs.String("faction", "", "your faction (overrides configuration)")
	transcript := fs.String("transcript", "", "append the game's event log to this file")
	fs.Parse(args)

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv := newServer(cfg, logger)
	closeTranscript, err := withTranscript(srv, *transcript)
	if err != nil {
		return err
	}
	defer closeTranscript()
	return srv.RunLocal(ctx, *faction, os.Stdin, os.Stdout)
}

func runHost(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("host", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	addr := fs.String("addr", "", "TCP address to listen on (overrides configuration)")
	transcript := fs.String("transcript", "", "append every session's event log to this file")
	fs.Parse(args)

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger.Info("starting session server",
		zap.String("engine", cfg.Engine.URL),
		zap.String("addr", cfg.Server.Addr))
	srv := newServer(cfg, logger)
	closeTranscript, err := withTranscript(srv, *transcript)
	if err != nil {
		return err
	}
	defer closeTranscript()
	return srv.Run(ctx)
}

func runJoin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	addr := fs.String("addr", "localhost:9000", "server address to connect to")
	faction := fs.String("faction", "", "your faction (server default when empty)")
	fs.Parse(args)

	return sanctumnet.Connect(ctx, *addr, *faction)
}
