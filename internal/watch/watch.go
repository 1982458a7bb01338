package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/internal/queue"
	"github.com/OFFIS-RIT/herbflow/backend/internal/storage"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/store"
)

// DefaultInterval is how often the source is polled.
const DefaultInterval = 5 * time.Minute

// Hook runs once per new dataset version, before the refresh is announced.
type Hook struct {
	Name string
	Fn   func(ctx context.Context, d *common.Dataset) error
}

// Watcher polls a source and announces content changes.
//
// A Watcher should be created using NewWatcher.
type Watcher struct {
	source    storage.Source
	interval  time.Duration
	publisher queue.Publisher
	hooks     []Hook

	last string
}

// NewWatcherParams configures a Watcher. Publisher may be nil, in which
// case changes only run the hooks.
type NewWatcherParams struct {
	Source    storage.Source
	Interval  time.Duration
	Publisher queue.Publisher
	Hooks     []Hook
}

func NewWatcher(params NewWatcherParams) (*Watcher, error) {
	if params.Source == nil {
		return nil, store.ErrNoSource
	}
	interval := params.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		source:    params.Source,
		interval:  interval,
		publisher: params.Publisher,
		hooks:     params.Hooks,
	}, nil
}

// Check fingerprints the source once. The first check records the
// baseline and runs the hooks without publishing; later checks do both
// when the fingerprint moved. It reports whether the version changed.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	version, err := w.source.Fingerprint(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fingerprint source: %w", err)
	}
	if version == w.last {
		logger.Debug("[Watch] Source unchanged", "version", short(version))
		return false, nil
	}

	first := w.last == ""
	if len(w.hooks) > 0 {
		d, err := w.source.LoadDataset(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to load changed dataset: %w", err)
		}
		var errs []error
		for _, h := range w.hooks {
			if err := h.Fn(ctx, d); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				continue
			}
			logger.Debug("[Watch] Hook done", "hook", h.Name, "version", short(d.Version))
		}
		if err := errors.Join(errs...); err != nil {
			// Not recording the version makes the next tick retry.
			return false, err
		}
	}
	w.last = version

	if first {
		logger.Info("[Watch] Baseline recorded", "version", short(version))
		return false, nil
	}

	logger.Info("[Watch] Source changed", "version", short(version))
	if w.publisher != nil {
		msg, err := queue.NewRefreshMsg(version, "watch")
		if err != nil {
			return true, err
		}
		if err := queue.PublishRefresh(ctx, w.publisher, msg); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Run checks immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		if _, err := w.Check(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("[Watch] Check failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func short(version string) string {
	if len(version) > 12 {
		return version[:12]
	}
	return version
}
