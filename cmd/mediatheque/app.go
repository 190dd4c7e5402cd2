package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediatheque/mediatheque/internal/audit"
	"github.com/mediatheque/mediatheque/internal/config"
	"github.com/mediatheque/mediatheque/internal/database"
	"github.com/mediatheque/mediatheque/internal/fileops"
	"github.com/mediatheque/mediatheque/internal/library/files"
	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/library/trash"
	"github.com/mediatheque/mediatheque/internal/library/tv"
	"github.com/mediatheque/mediatheque/internal/logger"
	"github.com/mediatheque/mediatheque/internal/matcher"
	"github.com/mediatheque/mediatheque/internal/mediainfo"
	"github.com/mediatheque/mediatheque/internal/metadata"
	"github.com/mediatheque/mediatheque/internal/metadata/tmdb"
	"github.com/mediatheque/mediatheque/internal/metadata/tvdb"
	"github.com/mediatheque/mediatheque/internal/progress"
	"github.com/mediatheque/mediatheque/internal/transfer"
	"github.com/mediatheque/mediatheque/internal/validation"
	"github.com/mediatheque/mediatheque/internal/workflow"
)

// app is the wired service graph. Every subcommand builds one, runs
// its operation against it, and closes it on the way out.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	files      *files.Store
	movies     *movies.Store
	tv         *tv.Store
	trash      *trash.Store
	meta       *metadata.Service
	validation *validation.Service
	ops        *fileops.Service
	probe      *mediainfo.Service
	checker    *audit.Checker
	transferer *transfer.Transferer
	broker     *progress.Broker
	workflow   *workflow.Service
}

// newApp bootstraps in dependency order: config, logger, database
// with migrations, stores, metadata clients, then the services.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogRotationSize,
		MaxBackups: cfg.LogRetentionCount,
	})

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Close()
		return nil, err
	}

	fileStore := files.NewStore(db, log.Logger)
	movieStore := movies.NewStore(db, log.Logger)
	tvStore := tv.NewStore(db, log.Logger)
	trashStore := trash.NewStore(db, movieStore, tvStore, log.Logger)
	confirmed := audit.NewConfirmedStore(db, log.Logger)

	cacheCfg := metadata.DefaultCacheConfig()
	cacheCfg.Dir = cfg.CacheDir
	cache := metadata.NewCache(cacheCfg, log)
	meta := metadata.NewService(log,
		tmdb.NewClient(cfg.TMDB(), log.Logger, cache),
		tvdb.NewClient(cfg.TVDB(), log.Logger, cache),
	)

	probe := mediainfo.NewService(mediainfo.DefaultConfig(), log)
	match := matcher.New(meta, cfg.MatchScoreThreshold, log)
	validationSvc := validation.NewService(
		validation.NewStore(db, log.Logger), meta, match, movieStore, tvStore, fileStore, log)

	ops := fileops.NewService(log)
	checker := audit.NewChecker(cfg, movieStore, tvStore, confirmed, meta, probe, log)
	transferer := transfer.New(cfg, ops, movieStore, tvStore, fileStore, log)
	transferer.SetInvalidator(checker)

	broker := progress.NewBroker(log)
	scan := scanner.NewService(log, cfg.MinFileSizeBytes)
	flow := workflow.NewService(cfg, scan, fileStore, probe, match, validationSvc, broker, log)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		files:      fileStore,
		movies:     movieStore,
		tv:         tvStore,
		trash:      trashStore,
		meta:       meta,
		validation: validationSvc,
		ops:        ops,
		probe:      probe,
		checker:    checker,
		transferer: transferer,
		broker:     broker,
		workflow:   flow,
	}, nil
}

func (a *app) Close() {
	a.broker.Close()
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Database close failed")
	}
	a.log.Close()
}

// signalContext derives a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
