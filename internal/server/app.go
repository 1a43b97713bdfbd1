// Package server wires the community server: configuration, logging, the
// PostgreSQL store with its migrations, the optional batch archive and the
// gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/callshield/internal/buildinfo"
	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"github.com/dmitrijs2005/callshield/internal/server/archive"
	"github.com/dmitrijs2005/callshield/internal/server/config"
	"github.com/dmitrijs2005/callshield/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/callshield/internal/server/services"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/callshield/internal/server/grpc"
)

const (
	pingTimeout    = 2 * time.Second
	pingBackoff    = 250 * time.Millisecond
	pingBackoffCap = 2 * time.Second
)

var sqlOpen = sql.Open

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	codec  *compress.Zstd
	server *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := waitForDB(ctx, db, c.DatabaseWait, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var arch archive.Archiver
	if c.ArchiveEnabled() {
		a, err := archive.NewS3Archive(ctx, c)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		arch = a
		logger.Info(ctx, "Batch archive enabled", "bucket", c.S3Bucket)
	}

	codec, err := compress.NewZstd()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	svc := services.NewReputationService(db, rm, arch, logger)
	srv := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, svc, codec)

	return &App{config: c, logger: logger, db: db, codec: codec, server: srv}, nil
}

// waitForDB pings db until it answers or wait elapses. The database usually
// starts alongside the server and needs a few seconds.
func waitForDB(ctx context.Context, db *sql.DB, wait time.Duration, l logging.Logger) error {
	backoff := retry.NewExponential(pingBackoff)
	backoff = retry.WithCappedDuration(pingBackoffCap, backoff)
	backoff = retry.WithMaxDuration(wait, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			l.Warn(ctx, "Database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// Run serves until ctx is cancelled or the server fails.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "version", buildinfo.Version, "commit", buildinfo.Commit)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(ctx)
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) Close() error {
	app.codec.Close()
	return app.db.Close()
}
