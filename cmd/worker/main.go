package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/internal/queue"
	"github.com/OFFIS-RIT/herbflow/backend/internal/storage"
	"github.com/OFFIS-RIT/herbflow/backend/internal/util"
	"github.com/OFFIS-RIT/herbflow/backend/internal/watch"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/herbflow/backend/pkg/store/pgx"
)

const watchLockKey = "herbflow:watch"

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnv("LOG_FORMAT") == "json",
	})
	logger.Init(consoleLogger)

	src, err := storage.OpenSource(ctx)
	if err != nil {
		logger.Fatal("Failed to configure data source", "err", err)
	}
	defer src.Close()

	var hooks []watch.Hook

	// Shared pool for the mirror tables and the watch lease
	databaseURL := util.GetEnv("DATABASE_URL")
	var locker *leaselock.Locker
	if databaseURL != "" {
		pool, err := storage.OpenDatabase(ctx, databaseURL)
		if err != nil {
			logger.Fatal("Unable to connect to database", "err", err)
		}
		defer pool.Close()

		if util.GetEnvBool("SYNC_TO_DB", false) && src.Kind != storage.SourcePostgres {
			hooks = append(hooks, watch.MirrorHook(pgxstore.NewTableStorageWithConnection(pool)))
		}

		locker, err = leaselock.NewLocker(leaselock.NewLockerParams{
			DB:  pool,
			TTL: util.GetEnvDuration("WATCH_LEASE_TTL", time.Minute),
		})
		if err != nil {
			logger.Fatal("Failed to create lease locker", "err", err)
		}
	}

	// Init s3 client for snapshots
	if bucket := util.GetEnv("SNAPSHOT_BUCKET"); bucket != "" {
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		hooks = append(hooks, watch.SnapshotHook(client, bucket, util.GetEnvString("SNAPSHOT_PREFIX", "snapshots")))
	}

	// Init rabbitmq
	var publisher queue.Publisher
	if queue.Enabled() {
		conn := queue.Init()
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()

		if err := queue.SetupRefreshExchange(ch); err != nil {
			logger.Fatal("Failed to declare refresh exchange", "err", err)
		}
		publisher = ch
	} else {
		logger.Warn("RABBITMQ_HOST not set, changes are not announced")
	}

	watcher, err := watch.NewWatcher(watch.NewWatcherParams{
		Source:    src.Source,
		Interval:  util.GetEnvDuration("WATCH_INTERVAL", watch.DefaultInterval),
		Publisher: publisher,
		Hooks:     hooks,
	})
	if err != nil {
		logger.Fatal("Failed to create watcher", "err", err)
	}

	logger.Info("Watching data source", "source", src.Kind, "hooks", len(hooks))

	if locker == nil {
		err = watcher.Run(ctx)
	} else {
		err = runLeased(ctx, locker, watcher)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Watcher stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}

// runLeased keeps one watcher active across replicas. A lost lease puts
// this replica back into the queue of candidates.
func runLeased(ctx context.Context, locker *leaselock.Locker, watcher *watch.Watcher) error {
	for {
		err := locker.Run(ctx, watchLockKey, watcher.Run)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, leaselock.ErrLost) {
			return err
		}
		logger.Warn("Watch lease lost, waiting to reacquire", "owner", locker.Owner())
	}
}
