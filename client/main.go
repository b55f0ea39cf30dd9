package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/wfunc/robots/bridge"
	"github.com/wfunc/robots/config"
	"github.com/wfunc/robots/logger"
	"github.com/wfunc/robots/network"
)

const dialTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "robots-client: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "robots-client: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Log.Errorf("Client stopped: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.ClientConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	display, err := net.ResolveUDPAddr("udp", cfg.GUIAddress)
	if err != nil {
		return fmt.Errorf("resolve display address: %w", err)
	}
	gui, err := net.ListenPacket("udp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen for display input: %w", err)
	}
	defer gui.Close()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	server, err := network.Dial(dialCtx, cfg.ServerAddress)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerAddress, err)
	}
	defer server.Close()

	logger.Log.Infof("Relaying %s <-> %s as %q, input on udp port %d", cfg.ServerAddress, display, cfg.PlayerName, cfg.Port)
	return bridge.New(cfg.PlayerName, server, gui, display).Run(ctx)
}
