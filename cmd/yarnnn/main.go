// Command yarnnn runs the orchestrator: the scheduler dispatcher tick
// plus an internal admin surface for health checks, metrics, and a
// manual tick trigger.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/internal/config"
	"github.com/kvkthecreator/yarnnn/pkg/activity"
	"github.com/kvkthecreator/yarnnn/pkg/contentcache"
	"github.com/kvkthecreator/yarnnn/pkg/deliverable"
	"github.com/kvkthecreator/yarnnn/pkg/exporters"
	"github.com/kvkthecreator/yarnnn/pkg/llm"
	"github.com/kvkthecreator/yarnnn/pkg/memory"
	"github.com/kvkthecreator/yarnnn/pkg/metrics"
	"github.com/kvkthecreator/yarnnn/pkg/platformsync"
	"github.com/kvkthecreator/yarnnn/pkg/platformsync/clients"
	"github.com/kvkthecreator/yarnnn/pkg/scheduler"
	"github.com/kvkthecreator/yarnnn/pkg/signal"
	"github.com/kvkthecreator/yarnnn/pkg/signal/policy"
	"github.com/kvkthecreator/yarnnn/pkg/users"
)

func main() {
	configPath := flag.String("config", envOr("YARNNN_CONFIG", "./deploy/config/orchestrator.yaml"), "path to orchestrator config file")
	flag.Parse()

	zapLog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	boot := zapr.NewLogger(zapLog)

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := wire(ctx, cfg, zapLog)
	if err != nil {
		boot.Error(err, "failed to wire application")
		os.Exit(1)
	}
	defer app.pool.Close()

	boot.Info("starting yarnnn orchestrator", "admin_port", cfg.Server.AdminPort, "tick_interval", cfg.Scheduler.TickInterval)

	metricsSrv := metrics.NewServer(cfg.Server.MetricsPort, zapLog)
	metricsSrv.StartAsync()

	adminSrv := newAdminServer(app, cfg.Server, zapLog)
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			boot.Error(err, "admin server exited")
		}
	}()

	ticker := time.NewTicker(cfg.Scheduler.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			boot.Info("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = adminSrv.Shutdown(shutdownCtx)
			_ = metricsSrv.Stop(shutdownCtx)
			return
		case now := <-ticker.C:
			report := app.dispatcher.Tick(ctx, now)
			zapLog.Info("tick complete",
				zap.Int("deliverables_checked", report.DeliverablesChecked),
				zap.Int("deliverables_triggered", report.DeliverablesTriggered),
				zap.Int("signals_created", report.SignalsCreated),
				zap.Int("errors", len(report.Errors)),
			)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// application bundles the wired components the admin server and the
// main tick loop both need.
type application struct {
	pool       *pgxpool.Pool
	redis      *redis.Client
	dispatcher *scheduler.Dispatcher
	users      *users.PostgresStore
	activity   *activity.PostgresStore
}

// wire constructs every component per the orchestrator's layering:
// C1 content cache, C2 platform sync, C3 signal orchestration, C4
// deliverable generation, then the scheduler that drives C2-C4 on a
// tick.
func wire(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})

	tokens, err := platformsync.NewTokenManager([]byte(cfg.Encryption.Key))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build token manager: %w", err)
	}
	locker := platformsync.NewLocker(redisClient, 5*time.Minute)

	userStore := users.NewPostgresStore(pool, log)
	activityStore := activity.NewPostgresStore(pool, log)
	contextStore := memory.NewPostgresStore(pool, log)
	connectionStore := platformsync.NewPostgresConnectionStore(pool, log)
	cacheStore := contentcache.NewPostgresStore(pool, log)
	cache := contentcache.New(cacheStore, log)
	deliverableStore := deliverable.NewPostgresStore(pool, log)
	historyStore := signal.NewPostgresHistoryStore(pool, log)

	// C2: platform sync, one PlatformClient per supported provider.
	platformClients := []clients.PlatformClient{
		clients.NewSlackClient(),
		clients.NewGmailClient(),
		clients.NewNotionClient(),
		clients.NewCalendarClient(),
	}
	syncEngine := platformsync.New(connectionStore, cache, tokens, locker, platformClients, 24, log)
	targetedSync := platformsync.NewTargetedSyncAdapter(syncEngine)

	assembler := memory.NewAssembler(contextStore, deliverableStore, connectionStore, cache, activityStore, log)

	// C4: deliverable generation.
	llmClient, err := llm.NewClient(llm.Config{
		Provider:        cfg.LLM.Provider,
		ReasoningModel:  cfg.LLM.ReasoningModel,
		GenerationModel: cfg.LLM.GenerationModel,
		ExtractionModel: cfg.LLM.ExtractionModel,
		AWSRegion:       os.Getenv("AWS_REGION"),
		LocalBaseURL:    os.Getenv("LLM_LOCAL_BASE_URL"),
		APIKey:          os.Getenv("ANTHROPIC_API_KEY"),
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
	}, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	credentialResolver := exporters.NewConnectionCredentialResolver(connectionStore, tokens)
	exportRegistry := exporters.NewDefaultRegistry(
		exporters.NewSlackExporter(credentialResolver, log),
		exporters.NewNotionExporter(credentialResolver, log),
		exporters.NewGmailExporter(credentialResolver, cfg.Integrations.GoogleClientID, cfg.Integrations.GoogleClientSecret, log),
		exporters.NewEmailExporter(cfg.Integrations.ResendAPIKey, cfg.Integrations.ResendFromAddress, log),
		exporters.NewDownloadExporter(),
	)
	deliverer := deliverable.NewDeliverer(exportRegistry, userStore)
	freshness := deliverable.NewFreshnessChecker(cache, targetedSync, log)
	gatherer := deliverable.NewGatherer(cache)

	llmFactory := func(userID uuid.UUID) *deliverable.Agent {
		executor := deliverable.NewCacheToolExecutor(cache, assembler, userID)
		return deliverable.NewAgent(llmClient, cfg.LLM.GenerationModel, executor)
	}
	generationEngine := deliverable.New(deliverableStore, cache, freshness, gatherer, llmFactory, assembler, deliverer, log)

	// C3: signal orchestration.
	policyChecker, err := policy.NewChecker(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("compile signal admission policy: %w", err)
	}
	summarizer := signal.NewSummarizer(cache)
	reasoner := signal.NewReasoner(llmClient, cfg.LLM.ReasoningModel)
	filter := signal.NewFilter(policyChecker, historyStore)
	signalStore := deliverable.NewSignalStoreAdapter(deliverableStore)
	signalGenerator := deliverable.NewSignalGeneratorAdapter(generationEngine)
	orchestrator := signal.New(summarizer, reasoner, filter, historyStore, signalStore, signalGenerator, activityStore, log)

	dispatcherCfg := scheduler.DefaultConfig()
	dispatcherCfg.SyncConcurrency = cfg.Scheduler.WorkerPoolSize
	dispatcherCfg.SignalConcurrency = cfg.Scheduler.WorkerPoolSize
	dispatcherCfg.DeliverableConcurrency = cfg.Scheduler.WorkerPoolSize
	dispatcher := scheduler.New(connectionStore, syncEngine, orchestrator, contextStore, deliverableStore, generationEngine, activityStore, locker, dispatcherCfg, log)

	return &application{
		pool:       pool,
		redis:      redisClient,
		dispatcher: dispatcher,
		users:      userStore,
		activity:   activityStore,
	}, nil
}
