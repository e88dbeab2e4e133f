package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/app"
	"github.com/ternarybob/cookiescan/internal/common"
	"github.com/ternarybob/cookiescan/internal/models"
)

// runScan performs one ad-hoc scan of a single domain outside the cron
// schedule (spec §4.D's "scan" subcommand) and prints the persisted
// ScanResult as JSON.
func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configFiles := configFlag(fs)
	domain := fs.String("domain", "", "Root URL to scan (required)")
	domainConfigID := fs.String("domain-config-id", "", "Domain config ID to associate with this scan")
	deep := fs.Bool("deep", false, "Run a deep scan instead of quick")
	maxPages := fs.Int("max-pages", 10, "Maximum pages to visit (deep scans only)")
	maxRetries := fs.Int("max-retries", 2, "Navigation retries per page")
	waitSeconds := fs.Int("wait", 10, "Seconds to wait for dynamic content per page")
	fs.Parse(os.Args[1:])

	if *domain == "" {
		fmt.Fprintln(os.Stderr, "scan: -domain is required")
		os.Exit(1)
	}

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

	scanType := models.ScanTypeQuick
	if *deep {
		scanType = models.ScanTypeDeep
	}

	params := models.ScanParams{
		MaxPages:              *maxPages,
		ScanDepth:             0,
		MaxRetries:            *maxRetries,
		WaitForDynamicContent: *waitSeconds,
		WaitStrategy:          models.WaitNetworkIdle,
	}
	if *deep {
		params.ScanDepth = 2
	}

	scanID := uuid.New().String()
	result, err := application.RunAdHocScan(context.Background(), scanID, *domainConfigID, *domain, scanType, params)
	if err != nil {
		logger.Fatal().Err(err).Str("domain", *domain).Msg("ad-hoc scan failed")
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to encode scan result")
	}
	fmt.Println(string(encoded))
}
