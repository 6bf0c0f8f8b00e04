package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	httpadapter "autokami/internal/adapter/http"
	"autokami/internal/adapter/ledger/bridge"
	metricsinmem "autokami/internal/adapter/metrics/inmemory"
	"autokami/internal/adapter/notify/telegram"
	gormrepo "autokami/internal/adapter/repo/gorm"
	"autokami/internal/adapter/repo/memory"
	"autokami/internal/adapter/vault"
	"autokami/internal/app/audit"
	"autokami/internal/app/crafting"
	"autokami/internal/app/harvest"
	"autokami/internal/app/keylock"
	"autokami/internal/app/operator"
	"autokami/internal/app/ports"
	"autokami/internal/app/retry"
	"autokami/internal/app/scheduler"
	"autokami/internal/app/signer"
	"autokami/internal/config"
	"autokami/internal/logging"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", os.Getenv("AUTOKAMI_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("autokami exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	catalog, err := config.LoadRecipes(cfg.RecipesFile)
	if err != nil {
		return fmt.Errorf("load recipes: %w", err)
	}
	ledger, err := bridge.New(cfg.Ledger.BaseURL, cfg.Ledger.Timeout, logging.Component(logger, "ledger"))
	if err != nil {
		return err
	}
	notifier, err := telegram.New(cfg.Telegram.APIBase, cfg.Telegram.BotToken, 0)
	if err != nil {
		return err
	}

	credentials := vault.Vault{Credentials: repos.Credentials, MasterKey: cfg.MasterKey, Now: time.Now}
	locks := keylock.New()
	scope := signer.Scope{Vault: credentials}
	kpi := metricsinmem.NewRecorder()

	recorder := audit.Recorder{
		Events:     repos.Events,
		Recipients: repos.Recipients,
		Logger:     logging.Component(logger, "audit"),
		Now:        time.Now,
	}
	if cfg.Telegram.BotToken != "" {
		recorder.Notifier = notifier
	}

	engine := harvest.Evaluator{
		Ledger:     ledger,
		Profiles:   repos.Profiles,
		Audit:      recorder,
		Resolver:   harvest.Resolver{Audit: repos.Events, Ledger: ledger},
		Lock:       locks,
		Signer:     scope,
		TxManager:  repos.TxManager,
		RoomPolicy: roomPolicy(cfg.Scheduler.RoomPolicy),
		Logger:     logging.Component(logger, "harvest"),
		Now:        time.Now,
	}
	crafter := crafting.Evaluator{
		Ledger:   ledger,
		Settings: repos.Settings,
		Catalog:  catalog,
		Audit:    recorder,
		Lock:     locks,
		Signer:   scope,
		Policy:   retry.Policy{MaxAttempts: cfg.Scheduler.CraftAttempts, Delay: cfg.Scheduler.CraftDelay},
		Sleep:    retry.SleepContext,
		Logger:   logging.Component(logger, "crafting"),
		Now:      time.Now,
	}
	loop := scheduler.Loop{
		Profiles: repos.Profiles,
		Settings: repos.Settings,
		Agents:   engine,
		Crafts:   crafter,
		Audit:    recorder,
		Metrics:  kpi,
		Interval: cfg.Scheduler.TickInterval,
		Logger:   logging.Component(logger, "scheduler"),
		Now:      time.Now,
	}

	h := httpadapter.Handler{
		Operator: operator.UseCase{
			Profiles:   repos.Profiles,
			Settings:   repos.Settings,
			Events:     repos.Events,
			Recipients: repos.Recipients,
			Sealer:     credentials,
			Catalog:    catalog,
			Lock:       locks,
			Now:        time.Now,
		},
		Manual:   harvest.Manual{Engine: engine},
		KPI:      kpi,
		APIToken: cfg.APIToken,
	}
	if cfg.APIToken == "" {
		logger.Warn().Msg("AUTOKAMI_API_TOKEN is empty; /api routes are unauthenticated")
	}

	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	s := server.Default(server.WithHostPorts(cfg.ListenAddr), server.WithExitWaitTime(10*time.Second))
	h.RegisterRoutes(s)

	logger.Info().
		Str("listen_addr", cfg.ListenAddr).
		Dur("tick_interval", cfg.Scheduler.TickInterval).
		Str("room_policy", cfg.Scheduler.RoomPolicy).
		Ints("recipes", catalog.IDs()).
		Msg("autokami server listening")
	s.Spin()
	return nil
}

type stores struct {
	Profiles    ports.ProfileRepository
	Settings    ports.CraftingSettingRepository
	Events      ports.AuditRepository
	Credentials ports.CredentialRepository
	Recipients  ports.RecipientStore
	TxManager   ports.TxManager
}

// buildStores opens Postgres when a DSN is set and falls back to the
// in-process store otherwise. State in the fallback is lost on restart.
func buildStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (stores, error) {
	if cfg.Database.DSN == "" {
		logger.Warn().Msg("AUTOKAMI_DB_DSN is empty; using the in-memory store")
		store := memory.NewStore()
		return stores{
			Profiles:    memory.NewProfileRepo(store),
			Settings:    memory.NewCraftingSettingRepo(store),
			Events:      memory.NewAuditRepo(store),
			Credentials: memory.NewCredentialRepo(store),
			Recipients:  memory.NewRecipientRepo(store),
			TxManager:   memory.NewTxManager(store),
		}, nil
	}

	db, err := gormrepo.OpenPostgres(cfg.Database.DSN, gormrepo.PoolOptions{
		MaxOpenConns:    intEnv("AUTOKAMI_DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    intEnv("AUTOKAMI_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return stores{}, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.Database.AutoMigrate {
		applied, err := gormrepo.ApplyMigrations(ctx, db, cfg.Database.MigrationsDir)
		if err != nil {
			return stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info().Strs("files", applied).Msg("migrations applied")
	}
	return stores{
		Profiles:    gormrepo.NewProfileRepo(db),
		Settings:    gormrepo.NewCraftingSettingRepo(db),
		Events:      gormrepo.NewAuditRepo(db),
		Credentials: gormrepo.NewCredentialRepo(db),
		Recipients:  gormrepo.NewRecipientRepo(db),
		TxManager:   gormrepo.NewTxManager(db),
	}, nil
}

func roomPolicy(v string) harvest.AgentRoomPolicy {
	if v == string(harvest.AgentRoomStrict) {
		return harvest.AgentRoomStrict
	}
	return harvest.AgentRoomAdvisory
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
