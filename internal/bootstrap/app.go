package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"filesafe-backend/internal/files"
	"filesafe-backend/internal/scan"
	"filesafe-backend/internal/shared/config"
	"filesafe-backend/internal/shared/storage/db"
	"filesafe-backend/internal/shared/storage/object"
	"filesafe-backend/internal/shared/storage/object/local"
	"filesafe-backend/internal/shared/storage/object/s3"
	"filesafe-backend/internal/shared/telemetry"
)

// App holds the wired dependencies shared by the HTTP server and the
// background sweeper.
type App struct {
	Config config.Config

	DB    *sql.DB
	Store object.BlobStore
	Repo  files.Repo

	FilesService *files.Service
	FilesHandler *files.Handler
	Sweeper      *files.Sweeper
}

// Build constructs the application graph from configuration. When no
// DATABASE_URL is set (or the connection cannot be established) it falls
// back to the in-memory repository so local development works without
// Postgres.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Repo = buildRepo(ctx, cfg, app)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	scanner := scan.NewClient(cfg.AVScanEndpoint, cfg.CallbackBaseURL, cfg.AVScanTimeout)

	app.FilesService = &files.Service{
		Repo:    app.Repo,
		Store:   app.Store,
		Scanner: scanner,
	}
	app.FilesHandler = files.NewHandler(app.FilesService, cfg.MaxUploadSize)
	app.Sweeper = files.NewSweeper(app.Repo, cfg.SweepInterval, cfg.SweepGrace)

	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildRepo(ctx context.Context, cfg config.Config, app *App) files.Repo {
	if cfg.DatabaseURL == "" {
		telemetry.Info("repo.memory", map[string]any{"reason": "no DATABASE_URL"})
		return files.NewMemoryRepo()
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultServerOptions())
	if err != nil {
		telemetry.Error("db.connect", map[string]any{"error": err.Error(), "fallback": "memory"})
		return files.NewMemoryRepo()
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("db.migrate", map[string]any{"error": err.Error(), "fallback": "memory"})
		_ = sqlDB.Close()
		return files.NewMemoryRepo()
	}
	app.DB = sqlDB
	return &files.PGRepo{DB: sqlDB}
}

func buildStore(ctx context.Context, cfg config.Config) (object.BlobStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3.New(ctx, s3.Options{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("build s3 store: %w", err)
		}
		return store, nil
	case "local":
		return local.New(cfg.LocalStoreDir), nil
	default:
		return nil, fmt.Errorf("unknown object store type %q", cfg.ObjectStoreType)
	}
}
