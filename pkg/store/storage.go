package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
)

// ErrNoSource is returned when a cache is created without a source.
var ErrNoSource = errors.New("no dataset source configured")

// DatasetSource produces a complete, consistent dataset snapshot. A
// snapshot's Version changes whenever its content changes.
type DatasetSource interface {
	LoadDataset(ctx context.Context) (*common.Dataset, error)
}

// Fingerprinter is implemented by sources that can report the current
// content version more cheaply than a full load.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// DatasetProvider hands out the current dataset. DatasetCache implements it.
type DatasetProvider interface {
	Get(ctx context.Context) (*common.Dataset, error)
}
