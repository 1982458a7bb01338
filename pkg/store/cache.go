package store

import (
	"context"
	"sync"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a loaded dataset is served before reloading.
const DefaultTTL = time.Hour

// DefaultLoadTimeout bounds a single shared load of the source.
const DefaultLoadTimeout = 2 * time.Minute

// DatasetCache keeps the last loaded dataset of a source.
//
// Get serves the cached dataset while it is younger than the TTL and not
// invalidated. Concurrent callers that need a reload share one load, which
// runs detached from any one caller's context: a caller that gives up gets
// its own context error while the load continues for the rest. A
// reload whose Version equals the cached one keeps the cached dataset, so
// LoadID only changes with the content. When a reload fails and a dataset
// is cached, the stale dataset is served and the failure logged.
//
// A DatasetCache should be created using NewDatasetCache.
type DatasetCache struct {
	source      DatasetSource
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu          sync.RWMutex
	current     *common.Dataset
	fetchedAt   time.Time
	invalidated bool

	group singleflight.Group
}

// NewDatasetCacheParams configures a DatasetCache. TTL defaults to
// DefaultTTL and LoadTimeout to DefaultLoadTimeout.
type NewDatasetCacheParams struct {
	Source      DatasetSource
	TTL         time.Duration
	LoadTimeout time.Duration
}

// NewDatasetCache creates an empty cache. Nothing is loaded until the first Get.
func NewDatasetCache(params NewDatasetCacheParams) (*DatasetCache, error) {
	if params.Source == nil {
		return nil, ErrNoSource
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	loadTimeout := params.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	return &DatasetCache{
		source:      params.Source,
		ttl:         ttl,
		loadTimeout: loadTimeout,
		now:         time.Now,
	}, nil
}

// Get returns the current dataset, loading it when needed.
func (c *DatasetCache) Get(ctx context.Context) (*common.Dataset, error) {
	c.mu.RLock()
	if c.fresh() {
		d := c.current
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	d, err := c.load(ctx)
	if err == nil {
		return d, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, err
	}
	// Retry after another TTL instead of on every request.
	c.fetchedAt = c.now()
	c.invalidated = false
	logger.Warn("[Cache] Reload failed, serving stale dataset", "version", c.current.Version, "err", err)
	return c.current, nil
}

// Reload discards the cached entry and loads the source now. Unlike Get it
// reports load errors even when a stale dataset exists.
func (c *DatasetCache) Reload(ctx context.Context) (*common.Dataset, error) {
	c.Invalidate()
	return c.load(ctx)
}

// Invalidate makes the next Get reload from the source.
func (c *DatasetCache) Invalidate() {
	c.mu.Lock()
	c.invalidated = true
	c.mu.Unlock()
	logger.Debug("[Cache] Invalidated")
}

// Peek returns the cached dataset without loading. The second result is
// false when nothing has been loaded yet.
func (c *DatasetCache) Peek() (*common.Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current != nil
}

func (c *DatasetCache) fresh() bool {
	return c.current != nil && !c.invalidated && c.now().Sub(c.fetchedAt) < c.ttl
}

func (c *DatasetCache) load(ctx context.Context) (*common.Dataset, error) {
	ch := c.group.DoChan("dataset", func() (any, error) {
		c.mu.RLock()
		if c.fresh() {
			d := c.current
			c.mu.RUnlock()
			return d, nil
		}
		c.mu.RUnlock()

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		d, err := c.source.LoadDataset(lctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.current != nil && c.current.Version == d.Version {
			logger.Debug("[Cache] Content unchanged", "version", d.Version)
			d = c.current
		} else {
			logger.Info("[Cache] Dataset replaced", "version", d.Version, "load_id", d.LoadID)
		}
		c.current = d
		c.fetchedAt = c.now()
		c.invalidated = false
		return d, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*common.Dataset), nil
	}
}
