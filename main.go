package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/wfunc/robots/config"
	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/server"
)

func main() {
	cfg, err := config.LoadServer(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "robots-server: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "robots-server: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Log.Errorf("Server stopped: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameServer, err := server.NewGameServer(cfg)
	if err != nil {
		return err
	}

	p := cfg.Game
	logger.Log.Infof("Starting %q: %d players, %dx%d board, %d turns of %v, seed %d",
		p.Name, p.PlayersCount, p.SizeX, p.SizeY, p.GameLength, p.TurnDuration, p.Seed)
	return gameServer.Run(ctx)
}
