package main

import (
	"context"
	"flag"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/app"
	"github.com/ternarybob/cookiescan/internal/common"
)

// runSyncSchedules forces one external-schedule pull-and-merge cycle
// (spec §6), outside the periodic cadence app.Run drives during serve.
func runSyncSchedules() {
	fs := flag.NewFlagSet("sync-schedules", flag.ExitOnError)
	configFiles := configFlag(fs)
	fs.Parse(os.Args[1:])

	files := discoverConfig(*configFiles)
	config, err := common.LoadFromFiles(nil, files...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", files).Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer application.Close()

	result, err := application.SyncSchedulesNow(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("schedule sync failed")
	}

	logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("external schedule sync complete")
}
