package watch

import (
	"context"

	"github.com/OFFIS-RIT/herbflow/backend/internal/storage"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
)

// DatasetSaver is implemented by the Postgres table storage.
type DatasetSaver interface {
	SaveDataset(ctx context.Context, d *common.Dataset) error
}

// MirrorHook copies every new version into the database tables.
func MirrorHook(saver DatasetSaver) Hook {
	return Hook{
		Name: "mirror",
		Fn: func(ctx context.Context, d *common.Dataset) error {
			if err := saver.SaveDataset(ctx, d); err != nil {
				return err
			}
			logger.Info("[Watch] Dataset mirrored to database",
				"allocations", len(d.Allocations.Rows),
				"herbs", len(d.Herbs.Rows),
			)
			return nil
		},
	}
}

// SnapshotHook archives every new version as JSON in a bucket, skipping
// versions that are already stored.
func SnapshotHook(client storage.ObjectStore, bucket, prefix string) Hook {
	return Hook{
		Name: "snapshot",
		Fn: func(ctx context.Context, d *common.Dataset) error {
			exists, err := storage.HasSnapshot(ctx, client, bucket, prefix, d.Version)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
			key, err := storage.PutSnapshot(ctx, client, bucket, prefix, d)
			if err != nil {
				return err
			}
			logger.Info("[Watch] Snapshot stored", "bucket", bucket, "key", key)
			return nil
		},
	}
}
