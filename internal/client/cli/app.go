package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/bus"
	"github.com/dmitrijs2005/walletsync/internal/client/budgetwatch"
	"github.com/dmitrijs2005/walletsync/internal/client/config"
	"github.com/dmitrijs2005/walletsync/internal/client/localdb"
	"github.com/dmitrijs2005/walletsync/internal/client/receipts"
	"github.com/dmitrijs2005/walletsync/internal/client/recurrence"
	"github.com/dmitrijs2005/walletsync/internal/client/remote"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/checkpoint"
	"github.com/dmitrijs2005/walletsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/walletsync/internal/client/store"
	"github.com/dmitrijs2005/walletsync/internal/client/syncer"
	"github.com/dmitrijs2005/walletsync/internal/client/tombstone"
	"github.com/dmitrijs2005/walletsync/internal/logging"
)

// Mode reflects server reachability. Offline is a first-class state: every
// command except sync works against the local database.
type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

type App struct {
	config     *config.Config
	db         *sql.DB
	store      *store.Store
	remote     *remote.HTTPClient
	engine     *syncer.Engine
	tombstones *tombstone.Manager
	generator  *recurrence.Generator
	uploader   *receipts.Uploader
	watcher    *budgetwatch.Watcher
	meta       metadata.Repository
	log        logging.Logger

	ownerID string
	email   string
	Mode    Mode
	reader  *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	db, err := localdb.Open(ctx, c.DatabasePath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	logger := logging.NewJSON(os.Stderr)
	b := bus.New()
	s := store.New(db, b, logger)

	rc := remote.NewHTTPClient(c.ServerEndpointAddr)
	cp := checkpoint.New(db)

	engine := syncer.New(s, rc, cp, logger, syncer.WithWorkers(c.SyncWorkers))

	policy := tombstone.DefaultPolicy()
	for name := range policy {
		policy[name] = c.TombstoneRetention
	}
	policy["categories"] = c.CategoryTombstoneRetention
	manager := tombstone.NewManager(s, logger, tombstone.WithPolicy(policy))

	return &App{
		config:     c,
		db:         db,
		store:      s,
		remote:     rc,
		engine:     engine,
		tombstones: manager,
		generator:  recurrence.NewGenerator(s, logger),
		uploader:   receipts.NewUploader(s, rc, logger),
		watcher:    budgetwatch.NewWatcher(s, b, logger),
		meta:       metadata.New(db),
		log:        logger,
		reader:     bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.watcher.Run(ctx)
	go a.startOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	a.Root(ctx)
	_ = a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.ownerID != ""
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

// startOnlineStatusWatcher probes the server and flips between online and
// offline modes. A disabled session stays disabled until the next login.
func (a *App) startOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if a.Mode == ModeDisabled || !a.remote.LoggedIn() {
				continue
			}
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.remote.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.Mode == ModeOnline {
					a.setMode(ModeOffline)
				}
			} else {
				if a.Mode != ModeOnline {
					a.setMode(ModeOnline)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
