// Package app wires together the Badger storage substrate, the schedule
// repository/watcher, the cron dispatcher, the distributed lock, the
// classifier cascade, the browser pool, and the scan coordinator into one
// running service (spec §4, §9). Grounded on the teacher's app.App
// (single composition root built once in main, holding every long-lived
// dependency as a field rather than a DI container).
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cookiescan/internal/browser"
	"github.com/ternarybob/cookiescan/internal/browser/ratelimit"
	"github.com/ternarybob/cookiescan/internal/classifier"
	"github.com/ternarybob/cookiescan/internal/classifier/iab"
	"github.com/ternarybob/cookiescan/internal/classifier/llm"
	"github.com/ternarybob/cookiescan/internal/classifier/override"
	"github.com/ternarybob/cookiescan/internal/classifier/rules"
	"github.com/ternarybob/cookiescan/internal/common"
	"github.com/ternarybob/cookiescan/internal/httpapi"
	"github.com/ternarybob/cookiescan/internal/lock"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/progress"
	"github.com/ternarybob/cookiescan/internal/scan"
	"github.com/ternarybob/cookiescan/internal/schedule"
	"github.com/ternarybob/cookiescan/internal/schedule/externalsync"
	"github.com/ternarybob/cookiescan/internal/scheduler"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

// App is the composition root: every long-lived dependency the server and
// the cron dispatcher need, built once at startup and torn down once at
// shutdown.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	storage      *badger.Manager
	scheduleRepo *schedule.Repository
	watcher      *schedule.Watcher
	externalSync *externalsync.Client
	maintenance  *schedule.Maintenance

	lock       *lock.Lock
	browserPool *browser.Pool
	classifier  *classifier.Context

	Executor    *scan.Executor
	Coordinator *scan.Coordinator
	Dispatcher  *scheduler.Dispatcher

	Progress    *progress.Bus
	ScanAPI     *httpapi.ScanHandler
	ScheduleAPI *httpapi.ScheduleHandler
	ScanResultAPI *httpapi.ScanResultHandler
	TriggerAPI  *httpapi.TriggerHandler

	cancelWatch context.CancelFunc
}

// New builds every component described in spec §4/§9 from config, in
// dependency order: storage, then the classifier stack, then the browser
// pool and scan executor, then the scheduling layer that fires scans.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storage, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	scheduleRepo := schedule.NewRepository(storage.Schedules())

	lk := lock.New(storage.Store().Store(), logger)

	clsf, err := buildClassifier(config, storage, logger)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	pool := browser.NewPool(browserConfig(config), logger)
	if err := pool.Init(); err != nil {
		storage.Close()
		return nil, fmt.Errorf("init browser pool: %w", err)
	}

	limiter := ratelimit.New(config.Scanner.RateLimitRPS, 1)
	bus := progress.NewBus()

	executor := scan.NewExecutor(pool, limiter, clsf, bus, logger)
	admission := scan.NewAdmission(config.Scheduler.MaxConcurrentScans)
	coordinator := scan.NewCoordinator(scheduleRepo, lk, storage.JobExecutions(), storage.ScanResults(), executor, admission, logger)

	dispatcher := scheduler.NewDispatcher(logger, coordinator.Fire)

	// An interval of 0 selects the watcher's default check interval (60s).
	watcher := schedule.NewWatcher(scheduleRepo, 0, logger)

	var extClient *externalsync.Client
	if config.Scheduler.ExternalSourceURL != "" {
		extClient = externalsync.NewClient(externalsync.Config{
			URL:     config.Scheduler.ExternalSourceURL,
			Timeout: 30 * time.Second,
		})
	}

	maintenance := schedule.NewMaintenance(storage.JobExecutions(), logger)

	scanAPI := httpapi.NewScanHandler(bus, logger)
	scheduleAPI := httpapi.NewScheduleHandler(scheduleRepo, logger)
	scanResultAPI := httpapi.NewScanResultHandler(storage.ScanResults(), logger)
	triggerAPI := httpapi.NewTriggerHandler(scheduleRepo, coordinator.Fire, logger)

	application := &App{
		Config: config,
		Logger: logger,

		storage:      storage,
		scheduleRepo: scheduleRepo,
		watcher:      watcher,
		externalSync: extClient,
		maintenance:  maintenance,

		lock:        lk,
		browserPool: pool,
		classifier:  clsf,

		Executor:    executor,
		Coordinator: coordinator,
		Dispatcher:  dispatcher,

		Progress:      bus,
		ScanAPI:       scanAPI,
		ScheduleAPI:   scheduleAPI,
		ScanResultAPI: scanResultAPI,
		TriggerAPI:    triggerAPI,
	}

	return application, nil
}

// buildClassifier assembles the cascade's static data (rules, IAB GVL,
// domain overrides) and, if configured, an ML predictor (spec §4.8).
func buildClassifier(config *common.Config, storage *badger.Manager, logger arbor.ILogger) (*classifier.Context, error) {
	overrides := override.NewCache(storage.DomainOverrides())

	var ruleSet *rules.Set
	if config.Classifier.RulesPath != "" {
		loaded, err := rules.Load(config.Classifier.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load classification rules: %w", err)
		}
		ruleSet = loaded
	} else {
		ruleSet, _ = rules.FromRules(nil)
	}

	gvl := iab.Load(config.Classifier.IABGVLURL, config.Classifier.IABGVLCachePath, logger)

	var predictor llm.Predictor
	if config.Classifier.MLProvider != "" {
		p, err := llm.NewPredictor(llm.Config{
			Provider: llm.Provider(config.Classifier.MLProvider),
			APIKey:   resolveMLAPIKey(config, storage, logger),
			Model:    config.Classifier.MLModel,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Str("provider", config.Classifier.MLProvider).Msg("ML classifier unavailable, continuing without it")
		} else {
			predictor = p
		}
	}

	return &classifier.Context{
		Overrides:        overrides,
		Predictor:        predictor,
		GVL:              gvl,
		Rules:            ruleSet,
		Logger:           logger,
		MLHighConfidence: config.Classifier.MLHighConfidence,
		MLAgreeThreshold: config.Classifier.MLAgreeThreshold,
	}, nil
}

// resolveMLAPIKey looks up the ML provider's API key, preferring env vars
// and the KV store over the plaintext config fallback (spec's value-privacy
// rule: secrets should not need to live in a checked-in TOML file).
func resolveMLAPIKey(config *common.Config, storage *badger.Manager, logger arbor.ILogger) string {
	kvName := "anthropic_api_key"
	if config.Classifier.MLProvider == string(llm.ProviderGemini) {
		kvName = "gemini_api_key"
	}
	apiKey, err := common.ResolveAPIKey(context.Background(), storage.KeyValue(), kvName, config.Classifier.MLAPIKey)
	if err != nil {
		logger.Warn().Err(err).Str("provider", config.Classifier.MLProvider).Msg("no ML API key configured")
		return ""
	}
	return apiKey
}

func browserConfig(config *common.Config) browser.Config {
	return browser.Config{
		Size:              config.Scanner.PoolSize,
		WarmSize:          config.Scanner.PoolWarmSize,
		Headless:          config.Scanner.Headless,
		DisableGPU:        config.Scanner.DisableGPU,
		NoSandbox:         config.Scanner.NoSandbox,
		MaxAge:            config.Scanner.MaxInstanceAge,
		MaxIdle:           config.Scanner.MaxInstanceIdle,
		MaxUseCount:       config.Scanner.MaxInstanceUses,
		HealthCheckPeriod: config.Scanner.HealthCheckPeriod,
	}
}

// Run starts the background watcher (which drives the dispatcher on every
// schedule change) and the cron dispatcher itself. It blocks until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) {
	if err := a.maintenance.CleanupOrphanedJobs(); err != nil {
		a.Logger.Warn().Err(err).Msg("orphaned job cleanup failed")
	}

	watchCtx, cancel := a.watcherContext(ctx)
	a.cancelWatch = cancel

	a.Dispatcher.Start()
	a.Logger.Info().Msg("cron dispatcher started")

	if a.externalSync != nil {
		go a.runExternalSync(watchCtx)
	}

	staleCheckInterval := a.Config.Scheduler.StaleCheckInterval
	if staleCheckInterval <= 0 {
		staleCheckInterval = 5 * time.Minute
	}
	go a.maintenance.Run(watchCtx, staleCheckInterval, a.Config.Scheduler.JobExecutionRetention)

	a.watcher.Run(watchCtx, a.Dispatcher.Handle)
}

func (a *App) watcherContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(parent)
}

// runExternalSync periodically pulls the external schedule source and
// merges it into the repository (spec §6), every ExternalSyncPeriod
// (30s when unset).
func (a *App) runExternalSync(ctx context.Context) {
	period := a.Config.Scheduler.ExternalSyncPeriod
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records, err := a.externalSync.Pull(ctx)
			if err != nil {
				a.Logger.Warn().Err(err).Msg("external schedule pull failed")
				continue
			}
			result, err := a.scheduleRepo.SyncFromExternal(records)
			if err != nil {
				a.Logger.Warn().Err(err).Msg("external schedule sync failed")
				continue
			}
			a.Logger.Info().
				Int("created", result.Created).
				Int("updated", result.Updated).
				Int("skipped", result.Skipped).
				Msg("external schedule sync complete")
		}
	}
}

// RunAdHocScan executes one scan outside the schedule/lock/admission
// machinery and persists the result, for the "scan" operator subcommand
// (spec §4.D). scanID is generated by the caller so it can be correlated
// against the progress SSE stream while the scan runs.
func (a *App) RunAdHocScan(ctx context.Context, scanID, domainConfigID, domain string, scanType models.ScanType, params models.ScanParams) (*models.ScanResult, error) {
	result, err := a.Executor.Run(ctx, scanID, domainConfigID, domain, scanType, params)
	if err != nil {
		return nil, fmt.Errorf("run scan: %w", err)
	}
	if err := a.storage.ScanResults().Create(result); err != nil {
		return result, fmt.Errorf("persist scan result: %w", err)
	}
	return result, nil
}

// SyncSchedulesNow performs one external-schedule pull-and-merge cycle
// on demand (spec §6), for the "sync-schedules" operator subcommand.
// Returns an error if no external source is configured.
func (a *App) SyncSchedulesNow(ctx context.Context) (badger.SyncResult, error) {
	if a.externalSync == nil {
		return badger.SyncResult{}, fmt.Errorf("no external schedule source configured")
	}
	records, err := a.externalSync.Pull(ctx)
	if err != nil {
		return badger.SyncResult{}, fmt.Errorf("pull external schedules: %w", err)
	}
	return a.scheduleRepo.SyncFromExternal(records)
}

// Close tears down every long-lived dependency in reverse build order.
func (a *App) Close() error {
	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	a.Dispatcher.Stop()
	a.browserPool.Shutdown()
	return a.storage.Close()
}
