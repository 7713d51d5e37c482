package main

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/Leganyst/platform-tracker/internal/config"
	"github.com/Leganyst/platform-tracker/internal/db"
	"github.com/Leganyst/platform-tracker/internal/departure"
	"github.com/Leganyst/platform-tracker/internal/model"
	"github.com/Leganyst/platform-tracker/internal/repository"
	"github.com/Leganyst/platform-tracker/internal/service"
)

// app wires the shared components every command needs.
type app struct {
	log   *slog.Logger
	cfg   *config.AppConfig
	db    *gorm.DB
	clock clockwork.Clock

	resolver  *departure.Resolver
	repo      *repository.GormSnapshotRepository
	ingest    *service.IngestService
	history   *service.HistoryService
	retention *service.RetentionService
}

// openApp loads configuration, opens the database and applies migrations.
// The caller must call close.
func openApp(log *slog.Logger) (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		return nil, fmt.Errorf("load db config: %w", err)
	}

	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := model.Migrate(gormDB, log); err != nil {
		_ = db.Close(gormDB)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	clock := clockwork.NewRealClock()
	resolver := departure.NewResolver(appCfg.Location, clock, appCfg.DefaultDestination)
	repo := repository.NewGormSnapshotRepository(gormDB, clock)

	log.Debug("store ready", "driver", dbCfg.Driver, "timezone", appCfg.Location.String())

	return &app{
		log:       log,
		cfg:       appCfg,
		db:        gormDB,
		clock:     clock,
		resolver:  resolver,
		repo:      repo,
		ingest:    service.NewIngestService(repo, resolver, log),
		history:   service.NewHistoryService(repo, resolver),
		retention: service.NewRetentionService(repo, clock, appCfg.RetentionMonths, log),
	}, nil
}

func (a *app) close() {
	if err := db.Close(a.db); err != nil {
		a.log.Warn("close db", "error", err)
	}
}
