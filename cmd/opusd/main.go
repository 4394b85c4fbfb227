// ABOUTME: Entry point for the opusd decode server
// ABOUTME: Loads env config, applies CLI flag overrides, and runs the server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audioplane/opusd/internal/codec"
	"github.com/audioplane/opusd/internal/config"
	"github.com/audioplane/opusd/internal/server"
	"github.com/audioplane/opusd/internal/service"
)

var (
	port   = flag.Int("port", 0, "WebSocket server port (overrides OPUSD_PORT)")
	name   = flag.String("name", "", "Server friendly name (default: hostname-opusd)")
	debug  = flag.Bool("debug", false, "Enable debug logging")
	noMDNS = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
)

func main() {
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment.
	if *port != 0 {
		cfg.Port = *port
	}
	if *name != "" {
		cfg.Name = *name
	}
	if *debug {
		cfg.Debug = true
	}
	if *noMDNS {
		cfg.EnableMDNS = false
	}

	if cfg.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Name = fmt.Sprintf("%s-opusd", hostname)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	svc := service.New(codec.Gopus(), log)
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Name:       cfg.Name,
		EnableMDNS: cfg.EnableMDNS,
		Debug:      cfg.Debug,
	}, svc, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received signal, shutting down", "signal", sig.String())
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}
