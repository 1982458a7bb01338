package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/herbflow/backend/internal/util"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/ingest"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
	ioloader "github.com/OFFIS-RIT/herbflow/backend/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/herbflow/backend/pkg/loader/s3"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader/web"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/store"
	pgxstore "github.com/OFFIS-RIT/herbflow/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SourceSheet    = "sheet"
	SourceFile     = "file"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
)

var ErrUnknownSource = errors.New("unknown data source")

// Source loads datasets and reports their version without a full load.
type Source interface {
	store.DatasetSource
	store.Fingerprinter
}

// OpenedSource is a configured source together with the resources it holds.
type OpenedSource struct {
	Kind   string
	Source Source
	close  func()
}

// Close releases the database pool of a postgres source.
func (o *OpenedSource) Close() {
	if o.close != nil {
		o.close()
	}
}

// OpenSource builds the source selected by DATA_SOURCE.
//
//	sheet     SHEET_URL with SHEET_GID_* or tab discovery
//	file      CSV exports in DATA_DIR
//	s3        CSV objects in AWS_BUCKET below S3_PREFIX
//	postgres  tables in DATABASE_URL, migrated from MIGRATIONS_PATH
func OpenSource(ctx context.Context) (*OpenedSource, error) {
	kind := util.GetEnvString("DATA_SOURCE", SourceSheet)

	var (
		src     Source
		closeFn func()
		err     error
	)
	switch kind {
	case SourceSheet:
		src, err = openSheetSource(ctx)
	case SourceFile:
		src = ingest.NewTableSource(tableParams(ioloader.NewIOTableFileLoader(util.GetEnvString("DATA_DIR", "./data"))))
	case SourceS3:
		src, err = openS3Source(ctx)
	case SourcePostgres:
		var ts *pgxstore.TableStorage
		ts, closeFn, err = OpenTableStorage(ctx, util.GetEnv("DATABASE_URL"))
		src = ts
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("[Storage] Data source configured", "source", kind)
	return &OpenedSource{Kind: kind, Source: src, close: closeFn}, nil
}

// tableParams names the four tables by their file names, overridable
// per table.
func tableParams(l loader.TableFileLoader) ingest.NewTableSourceParams {
	return ingest.NewTableSourceParams{
		Loader:        l,
		Prescriptions: util.GetEnvString("TABLE_PRESCRIPTIONS", common.TablePrescriptions+".csv"),
		Herbs:         util.GetEnvString("TABLE_HERBS", common.TableHerbs+".csv"),
		Pathology:     util.GetEnvString("TABLE_PATHOLOGY", common.TablePathology+".csv"),
		Scripts:       util.GetEnvString("TABLE_SCRIPTS", common.TableScripts+".csv"),
	}
}

func openS3Source(ctx context.Context) (Source, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	if bucket == "" {
		return nil, errors.New("AWS_BUCKET is required for the s3 source")
	}
	client, err := NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	l := s3loader.NewS3TableFileLoaderWithClient(bucket, util.GetEnv("S3_PREFIX"), client)
	return ingest.NewTableSource(tableParams(l)), nil
}

func openSheetSource(ctx context.Context) (Source, error) {
	sheetURL := util.GetEnv("SHEET_URL")
	if sheetURL == "" {
		return nil, errors.New("SHEET_URL is required for the sheet source")
	}

	l := web.NewSheetTableFileLoader(web.NewSheetTableFileLoaderParams{
		Retries: util.GetEnvInt("FETCH_RETRIES", 3),
	})

	gids := map[string]string{
		common.TablePrescriptions: util.GetEnv("SHEET_GID_PRESCRIPTIONS"),
		common.TableHerbs:         util.GetEnv("SHEET_GID_HERBS"),
		common.TablePathology:     util.GetEnv("SHEET_GID_PATHOLOGY"),
		common.TableScripts:       util.GetEnv("SHEET_GID_SCRIPTS"),
	}
	if gids[common.TablePrescriptions] == "" || gids[common.TableHerbs] == "" {
		found, err := l.DiscoverSheetGIDs(ctx, sheetURL)
		if err != nil {
			return nil, fmt.Errorf("failed to discover sheet tabs: %w", err)
		}
		for name, gid := range found {
			if v, ok := gids[name]; ok && v == "" {
				gids[name] = gid
			}
		}
		logger.Debug("[Storage] Discovered sheet tabs", "tabs", len(found))
	}
	if gids[common.TablePrescriptions] == "" || gids[common.TableHerbs] == "" {
		return nil, fmt.Errorf("sheet has no %s or %s tab", common.TablePrescriptions, common.TableHerbs)
	}

	exportURL := func(name string) string {
		if gids[name] == "" {
			return ""
		}
		return web.SheetCSVURL(sheetURL, gids[name])
	}
	return ingest.NewTableSource(ingest.NewTableSourceParams{
		Loader:        l,
		Prescriptions: exportURL(common.TablePrescriptions),
		Herbs:         exportURL(common.TableHerbs),
		Pathology:     exportURL(common.TablePathology),
		Scripts:       exportURL(common.TableScripts),
	}), nil
}

// OpenDatabase connects to Postgres and applies migrations when
// MIGRATIONS_PATH is set.
func OpenDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if dir := util.GetEnv("MIGRATIONS_PATH"); dir != "" {
		if err := RunMigrations(databaseURL, dir); err != nil {
			return nil, err
		}
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// OpenTableStorage returns the table storage on a new pool with a close func.
func OpenTableStorage(ctx context.Context, databaseURL string) (*pgxstore.TableStorage, func(), error) {
	pool, err := OpenDatabase(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pgxstore.NewTableStorageWithConnection(pool), pool.Close, nil
}
