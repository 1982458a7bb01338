package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrLost is the cancel cause of a lease context whose renewal failed.
var ErrLost = errors.New("lease lock lost")

// DB is the part of a pgx pool the locker needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Locker hands out expiring leases stored in the app_locks table. A lease
// is kept alive by renewing it before it expires; a crashed holder loses
// it after TTL.
//
// A Locker should be created using NewLocker.
type Locker struct {
	db         DB
	owner      string
	ttl        time.Duration
	renewEvery time.Duration
	retryEvery time.Duration
}

// NewLockerParams configures a Locker.
//
// RenewEvery defaults to TTL/2 and is kept below TTL. RetryEvery is how long
// Run waits between acquisition attempts. Owner identifies this process in
// the table and defaults to the hostname plus a random suffix.
type NewLockerParams struct {
	DB         DB
	Owner      string
	TTL        time.Duration
	RenewEvery time.Duration
	RetryEvery time.Duration
}

func NewLocker(params NewLockerParams) (*Locker, error) {
	if params.DB == nil {
		return nil, errors.New("lease lock needs a database")
	}

	ttl := params.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	renew := params.RenewEvery
	if renew <= 0 || renew >= ttl {
		renew = max(ttl/2, time.Millisecond)
	}
	retry := params.RetryEvery
	if retry <= 0 {
		retry = ttl / 2
	}

	owner := params.Owner
	if owner == "" {
		host, _ := os.Hostname()
		suffix, err := gonanoid.New(8)
		if err != nil {
			return nil, err
		}
		owner = host + "-" + suffix
	}

	return &Locker{
		db:         params.DB,
		owner:      owner,
		ttl:        ttl,
		renewEvery: renew,
		retryEvery: retry,
	}, nil
}

// Owner returns the token this locker writes into locked_by.
func (l *Locker) Owner() string {
	return l.owner
}

// TryAcquire takes or extends the lease on key. It returns false when
// another owner holds an unexpired lease.
func (l *Locker) TryAcquire(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("lease lock key is empty")
	}
	var returned string
	err := l.db.QueryRow(ctx, tryAcquireSQL, key, l.owner, l.ttl.Milliseconds()).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	return returned != "", nil
}

// Release drops the lease if this locker still holds it.
func (l *Locker) Release(ctx context.Context, key string) error {
	_, err := l.db.Exec(ctx, releaseSQL, key, l.owner)
	return err
}

// Run waits until it holds key, then calls fn with a context that is
// canceled with ErrLost when a renewal fails. The lease is released when
// fn returns.
func (l *Locker) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	for {
		ok, err := l.TryAcquire(ctx, key)
		if err != nil {
			logger.Warn("[Lease] Acquire failed", "key", key, "err", err)
		}
		if ok {
			break
		}
		logger.Debug("[Lease] Busy, waiting", "key", key)
		if err := sleepWithJitter(ctx, l.retryEvery, l.retryEvery/4); err != nil {
			return err
		}
	}
	logger.Info("[Lease] Acquired", "key", key, "owner", l.owner)

	leaseCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		l.renewLoop(leaseCtx, key, cancel, done)
	})

	err := fn(leaseCtx)
	close(done)
	wg.Wait()

	lost := context.Cause(leaseCtx)
	if errors.Is(lost, ErrLost) && ctx.Err() == nil {
		return lost
	}

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if rerr := l.Release(releaseCtx, key); rerr != nil {
		logger.Warn("[Lease] Release failed", "key", key, "err", rerr)
	}
	return err
}

func (l *Locker) renewLoop(ctx context.Context, key string, cancel context.CancelCauseFunc, done <-chan struct{}) {
	t := time.NewTicker(l.renewEvery)
	defer t.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if err := l.renewOnce(ctx, key); err != nil {
				logger.Warn("[Lease] Lost", "key", key, "err", err)
				cancel(fmt.Errorf("%w: %v", ErrLost, err))
				return
			}
		}
	}
}

func (l *Locker) renewOnce(ctx context.Context, key string) error {
	for attempt := range 3 {
		renewCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		var returned string
		err := l.db.QueryRow(renewCtx, renewSQL, key, l.owner, l.ttl.Milliseconds()).Scan(&returned)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == 2 {
			return err
		}
		if err := sleepWithJitter(ctx, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return ErrLost
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
