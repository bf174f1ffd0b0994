// csserve loads a dumped index and serves the line-delimited JSON
// frame protocol over stdio or a unix socket. It does not build an
// index itself; a dump path is required.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/codesearch/internal/config"
	"github.com/ZanzyTHEbar/codesearch/internal/frame"
	"github.com/ZanzyTHEbar/codesearch/internal/index"
	"github.com/ZanzyTHEbar/codesearch/internal/obs"
)

func main() {
	configPath := flag.String("config", "", "path to csserve.yaml (defaults to ./csserve.yaml or ../csserve.yaml)")
	dumpPath := flag.String("dump", "", "path to a dump file written by csbuild (required)")
	flag.Parse()

	if err := run(*configPath, *dumpPath); err != nil {
		logger := obs.Logger()
		logger.Error().Err(err).Msg("csserve: failed")
		os.Exit(1)
	}
}

func run(configPath, dumpPath string) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading server config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}
	obs.SetLogger(obs.Logger().Level(level))
	log := obs.Logger()

	if dumpPath == "" {
		return fmt.Errorf("no dump path given; pass -dump")
	}
	loadOpts := []index.Option{index.WithLogger(log)}
	if cfg.ContextLines > 0 {
		loadOpts = append(loadOpts, index.WithContextLines(cfg.ContextLines))
	}
	ix, err := index.Load(dumpPath, loadOpts...)
	if err != nil {
		return fmt.Errorf("loading dump %s: %w", dumpPath, err)
	}

	srv := &frame.Server{
		Index:      ix,
		DefaultMax: cfg.DefaultMax,
		Logger:     log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ListenSocket == "" {
		log.Info().Msg("csserve: serving frame protocol over stdio")
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	}
	return serveSocket(ctx, cfg.ListenSocket, srv, log)
}

func serveSocket(ctx context.Context, socketPath string, srv *frame.Server, log zerolog.Logger) error {
	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Info().Str("socket", socketPath).Msg("csserve: listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		go func() {
			defer conn.Close()
			if err := srv.Serve(ctx, conn, conn); err != nil {
				log.Warn().Err(err).Msg("csserve: connection closed with error")
			}
		}()
	}
}
