package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/callshield/internal/anonymize"
	"github.com/dmitrijs2005/callshield/internal/client/client"
	"github.com/dmitrijs2005/callshield/internal/client/config"
	"github.com/dmitrijs2005/callshield/internal/client/connectivity"
	"github.com/dmitrijs2005/callshield/internal/client/models"
	"github.com/dmitrijs2005/callshield/internal/client/repositories/kv"
	"github.com/dmitrijs2005/callshield/internal/client/reputation"
	"github.com/dmitrijs2005/callshield/internal/client/scoring"
	"github.com/dmitrijs2005/callshield/internal/client/storage"
	"github.com/dmitrijs2005/callshield/internal/client/syncer"
	"github.com/dmitrijs2005/callshield/internal/common"
	"github.com/dmitrijs2005/callshield/internal/compress"
	"github.com/dmitrijs2005/callshield/internal/filex"
	"github.com/dmitrijs2005/callshield/internal/logging"
	"github.com/dmitrijs2005/callshield/internal/phone"
	"golang.org/x/term"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	codec   *compress.Zstd
	client  client.Client
	coord   *syncer.Coordinator
	manager *reputation.Manager
	watcher *connectivity.Watcher

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens local storage and builds the client stack described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewTextLogger(logging.ParseLevel(c.LogLevel))

	hasher, err := phone.NewHasher(c.HashKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hash key: %v", common.ErrValidation, err)
	}

	dbPath, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	db, err := kv.OpenSQLite(ctx, dbPath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	codec, err := compress.NewZstd()
	if err != nil {
		db.Close()
		return nil, err
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, codec, c.RequestTimeout)
	if err != nil {
		codec.Close()
		db.Close()
		return nil, err
	}

	store := storage.New(kv.NewSQLiteRepository(db))
	coord := syncer.New(store, apiClient, codec, anonymize.New(hasher), logger, syncer.Options{
		RetryDelay:    c.RetryDelay,
		SweepInterval: c.SyncInterval,
		Debounce:      c.SyncDebounce,
	})
	manager := reputation.New(store, scoring.New(scoring.WithDeviceAreaCode(c.DeviceAreaCode)), hasher, apiClient,
		reputation.WithQueuer(coord),
		reputation.WithSyncStatus(coord),
		reputation.WithTTL(c.TTLPolicy()),
		reputation.WithPreferences(models.Preferences{TrustThreshold: c.TrustThreshold, BlockThreshold: c.BlockThreshold}),
		reputation.WithDeviceAreaCode(c.DeviceAreaCode),
		reputation.WithLogger(logger),
	)
	watcher := connectivity.NewWatcher(apiClient, c.OnlineCheckInterval, c.RequestTimeout, logger, coord.SetOnline)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		codec:   codec,
		client:  apiClient,
		coord:   coord,
		manager: manager,
		watcher: watcher,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// Run starts background sync and the connectivity watcher, then blocks in
// the REPL until the user exits or stdin is closed.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.coord.Initialize(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.watcher.Run(ctx)

	a.logger.Info(ctx, "Welcome to CallShield CLI (type 'help' for commands)")

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader), interactive)
	return nil
}

// Close releases everything NewApp opened. Pending background work is
// waited for first.
func (a *App) Close() {
	a.manager.Close()
	a.coord.Close()
	if err := a.client.Close(); err != nil {
		a.logger.Warn(context.Background(), "failed to close client", "error", err)
	}
	a.codec.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Warn(context.Background(), "failed to close database", "error", err)
	}
}

func (a *App) getStatus() string {
	if a.coord.Online() {
		return "(online)"
	}
	return "(offline)"
}
