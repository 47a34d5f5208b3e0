package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"

	"github.com/volanclub/courtd/internal/config"
	"github.com/volanclub/courtd/internal/domain/customers"
	"github.com/volanclub/courtd/internal/domain/ledger"
	"github.com/volanclub/courtd/internal/domain/reports"
	"github.com/volanclub/courtd/internal/domain/sessions"
	"github.com/volanclub/courtd/internal/infra/db"
	httpx "github.com/volanclub/courtd/internal/infra/http"
	"github.com/volanclub/courtd/internal/infra/logger"
	"github.com/volanclub/courtd/internal/infra/notify"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/example.yaml"
	}

	watcher, err := config.Watch(cfgPath)
	if err != nil {
		panic(err)
	}
	cfg := watcher.Config()

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	customersRepo := customers.NewRepo(pool)
	ledgerRepo := ledger.NewRepo(pool)
	sessionsRepo := sessions.NewRepo(pool)
	sessionsSvc := sessions.NewService(pool, sessionsRepo, ledgerRepo, watcher.MaxCapacity)
	reportsSvc := reports.NewService(ledgerRepo)

	sink := buildNotifier(cfg, log)
	sweeper := sessions.NewSweeper(log.With("component", "sweeper"), sessionsRepo, ledgerRepo, sink)
	go sweeper.Run(ctx,
		time.Duration(cfg.Facility.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Facility.WarningWindowMinutes)*time.Minute,
	)
	log.Info("sweeper started",
		"interval_s", cfg.Facility.SweepIntervalSeconds,
		"warning_window_min", cfg.Facility.WarningWindowMinutes,
	)

	scan := httpx.NewScanHandler(log, customersRepo, ledgerRepo, sessionsSvc, func() float64 {
		return watcher.Config().Facility.DefaultSessionHours
	})
	export := httpx.NewExportHandler(log, reportsSvc)
	active := httpx.NewActiveHandler(log, sessionsSvc)

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, scan, export, active)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}

func buildNotifier(cfg config.Config, log *slog.Logger) notify.Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.AdminChatID == 0 {
		return notify.NewLogNotifier(log)
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Error("telegram init failed, falling back to log notifier", "err", err)
		return notify.NewLogNotifier(log)
	}
	return notify.NewTelegramNotifier(api, cfg.Telegram.AdminChatID)
}
