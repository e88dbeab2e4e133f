package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/app"
	"github.com/ternarybob/cookiescan/internal/common"
	"github.com/ternarybob/cookiescan/internal/server"
)

// runServe runs the scheduler + HTTP surface (spec §4.D's "serve"
// subcommand): loads config, builds the App composition root, starts the
// cron dispatcher and schedule watcher, and serves the HTTP API until an
// interrupt or shutdown request arrives.
func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFiles := configFlag(fs)
	serverPort := fs.Int("port", 0, "Server port (overrides config)")
	serverPortP := fs.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost := fs.String("host", "", "Server host (overrides config)")
	showVersion := fs.Bool("version", false, "Print version information")
	showVersionV := fs.Bool("v", false, "Print version information (shorthand)")
	fs.Parse(os.Args[1:])

	if *showVersion || *showVersionV {
		fmt.Printf("cookiescan version %s\n", common.GetVersion())
		os.Exit(0)
	}

	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	files := discoverConfig(*configFiles)
	config, err := common.LoadFromFiles(nil, files...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", files).Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	logger := common.SetupLogger(config)
	common.PrintBanner(config, logger)

	logger.Info().
		Strs("config_files", files).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Msg("application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer application.Close()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go application.Run(runCtx)

	shutdownChan := make(chan struct{})
	srv := server.New(application)
	srv.SetShutdownChannel(shutdownChan)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("server goroutine panicked")
			}
		}()
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	time.Sleep(100 * time.Millisecond)
	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("server ready - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("interrupt signal received")
	case <-shutdownChan:
		logger.Info().Msg("shutdown requested via HTTP")
	}

	logger.Info().Msg("shutting down server")
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	common.PrintShutdownBanner(logger)
	common.Stop()
}
