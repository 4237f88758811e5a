// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// оркестратор, нотификатор и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-scanner/internal/config"
	"serotonyl.ru/reputation-scanner/internal/db/postgres"
	"serotonyl.ru/reputation-scanner/internal/features/accounts"
	"serotonyl.ru/reputation-scanner/internal/features/aggregate"
	"serotonyl.ru/reputation-scanner/internal/features/keyword"
	"serotonyl.ru/reputation-scanner/internal/features/ledger"
	"serotonyl.ru/reputation-scanner/internal/features/mentions"
	"serotonyl.ru/reputation-scanner/internal/features/quota"
	"serotonyl.ru/reputation-scanner/internal/features/scan"
	"serotonyl.ru/reputation-scanner/internal/ingest"
	"serotonyl.ru/reputation-scanner/internal/jobs"
	"serotonyl.ru/reputation-scanner/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	Scanner   *scan.Service
	Scheduler *jobs.Scheduler
	Notifier  *notify.Notifier // nil, если Telegram не настроен
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Репозитории ===
	accountRepo := accounts.NewRepository(pool)
	quotaRepo := quota.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	aggregateRepo := aggregate.NewRepository(pool)
	keywordRepo := keyword.NewRepository(pool)
	scanRepo := scan.NewRepository(pool)
	postRepo := ingest.NewRepository(pool)

	// === 3. Сервисы ===
	accountService := accounts.NewService(accountRepo, cfg)
	quotaService := quota.NewService(quotaRepo, accountService)
	ledgerService := ledger.NewService(ledgerRepo)
	aggregateService := aggregate.NewService(aggregateRepo, ledgerRepo)
	keywordService := keyword.NewService(
		keywordRepo, ledgerRepo, ledgerService, aggregateService, accountService, cfg,
	)

	// === 4. Резолвер упоминаний ===
	resolver := mentions.NewResolver(accountService, cfg.PlatformHandle, cfg.CutoffDate)

	// === 5. Оркестратор ===
	scanService := scan.NewService(
		postRepo, resolver, quotaService, ledgerService,
		aggregateService, keywordService, scanRepo, cfg,
	)

	// === 6. Операторский интерфейс (опционален) ===
	notifier, err := notify.New(cfg, accountService, keywordService, aggregateService, ledgerService, quotaService, scanService)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Telegram: %w", err)
	}

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(scanService, keywordService, notifier, cfg)

	return &App{
		Scanner:   scanService,
		Scheduler: scheduler,
		Notifier:  notifier,
		DB:        pool,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := postgres.InitMigrations(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Accounts},
		{2, migration002Reputation},
		{3, migration003Quotas},
		{4, migration004Ledger},
		{5, migration005Keywords},
		{6, migration006ScanRuns},
		{7, migration007Posts},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    handle VARCHAR(64) UNIQUE NOT NULL,
    external_id BIGINT,
    followers BIGINT DEFAULT 0,
    multiplier INTEGER NOT NULL DEFAULT 1,
    daily_quota INTEGER NOT NULL DEFAULT 3,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_handle ON accounts(handle);
CREATE INDEX IF NOT EXISTS idx_accounts_external_id ON accounts(external_id);
`

var migration002Reputation = `
CREATE TABLE IF NOT EXISTS reputation (
    id BIGSERIAL PRIMARY KEY,
    handle VARCHAR(64) UNIQUE NOT NULL,
    total_points BIGINT NOT NULL DEFAULT 0,
    points_1d BIGINT NOT NULL DEFAULT 0,
    points_7d BIGINT NOT NULL DEFAULT 0,
    points_30d BIGINT NOT NULL DEFAULT 0,
    points_90d BIGINT NOT NULL DEFAULT 0,
    endorsers_1d TEXT NOT NULL DEFAULT '',
    endorsers_7d TEXT NOT NULL DEFAULT '',
    endorsers_30d TEXT NOT NULL DEFAULT '',
    endorsers_90d TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reputation_total ON reputation(total_points DESC);
`

var migration003Quotas = `
CREATE TABLE IF NOT EXISTS daily_quotas (
    id BIGSERIAL PRIMARY KEY,
    handle VARCHAR(64) NOT NULL,
    quota_day DATE NOT NULL,
    total INTEGER NOT NULL,
    consumed INTEGER NOT NULL DEFAULT 0,
    multiplier INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    UNIQUE (handle, quota_day),
    CHECK (consumed >= 0 AND consumed <= total)
);
`

var migration004Ledger = `
CREATE TABLE IF NOT EXISTS point_entries (
    id BIGSERIAL PRIMARY KEY,
    source_handle VARCHAR(64) NOT NULL,
    recipient_handle VARCHAR(64) NOT NULL,
    post_id VARCHAR(80) NOT NULL,
    points BIGINT NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    influencer_bonus BOOLEAN NOT NULL DEFAULT FALSE,
    manual BOOLEAN NOT NULL DEFAULT FALSE,
    loyalty_ref VARCHAR(80),
    posted_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    UNIQUE (source_handle, recipient_handle, post_id)
);
CREATE INDEX IF NOT EXISTS idx_point_entries_recipient ON point_entries(recipient_handle);
CREATE INDEX IF NOT EXISTS idx_point_entries_posted_at ON point_entries(posted_at DESC);
`

var migration005Keywords = `
CREATE TABLE IF NOT EXISTS keywords (
    id BIGSERIAL PRIMARY KEY,
    word VARCHAR(128) NOT NULL,
    points BIGINT NOT NULL DEFAULT 1,
    active_on DATE NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_keywords_single_active ON keywords(is_active) WHERE is_active;
`

var migration006ScanRuns = `
CREATE TABLE IF NOT EXISTS scan_runs (
    id BIGSERIAL PRIMARY KEY,
    status VARCHAR(20) NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ,
    posts_scanned INTEGER NOT NULL DEFAULT 0,
    posts_failed INTEGER NOT NULL DEFAULT 0,
    points_awarded BIGINT NOT NULL DEFAULT 0,
    accounts_created INTEGER NOT NULL DEFAULT 0,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_scan_runs_started_at ON scan_runs(started_at DESC);
`

var migration007Posts = `
CREATE TABLE IF NOT EXISTS posts (
    id VARCHAR(64) PRIMARY KEY,
    author_handle VARCHAR(64) NOT NULL,
    author_external_id BIGINT,
    author_followers BIGINT NOT NULL DEFAULT 0,
    text TEXT NOT NULL DEFAULT '',
    posted_at TIMESTAMPTZ NOT NULL,
    is_repost BOOLEAN NOT NULL DEFAULT FALSE,
    is_quote BOOLEAN NOT NULL DEFAULT FALSE,
    quoted_author VARCHAR(64) NOT NULL DEFAULT '',
    is_reply BOOLEAN NOT NULL DEFAULT FALSE,
    mentions JSONB NOT NULL DEFAULT '[]',
    views BIGINT NOT NULL DEFAULT 0,
    likes BIGINT NOT NULL DEFAULT 0,
    reposts BIGINT NOT NULL DEFAULT 0,
    replies BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(posted_at);
`
