package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader/csv"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

// TableSource loads the four input tables through loaders and assembles a
// dataset. Pathology and Scripts are optional.
//
// A TableSource should be created using NewTableSource.
type TableSource struct {
	prescriptions loader.TableFile
	herbs         loader.TableFile
	pathology     *loader.TableFile
	scripts       *loader.TableFile
}

// NewTableSourceParams locates the tables. Each path is interpreted by
// Loader: a file name for the filesystem loader, an object key for S3, an
// export URL for sheets. An empty Pathology or Scripts path leaves that
// table out.
type NewTableSourceParams struct {
	Loader        loader.TableFileLoader
	Prescriptions string
	Herbs         string
	Pathology     string
	Scripts       string
}

// NewTableSource creates a TableSource.
//
// Example:
//
//	src := ingest.NewTableSource(ingest.NewTableSourceParams{
//		Loader:        io.NewIOTableFileLoader("./data"),
//		Prescriptions: "Prescription_Input.csv",
//		Herbs:         "Herb_Library.csv",
//		Scripts:       "Prescription_script.csv",
//	})
//	dataset, err := src.LoadDataset(ctx)
func NewTableSource(params NewTableSourceParams) *TableSource {
	s := &TableSource{
		prescriptions: loader.NewTableFile(loader.NewTableFileParams{
			Name:     common.TablePrescriptions,
			FilePath: params.Prescriptions,
			Loader:   params.Loader,
		}),
		herbs: loader.NewTableFile(loader.NewTableFileParams{
			Name:     common.TableHerbs,
			FilePath: params.Herbs,
			Loader:   params.Loader,
		}),
	}
	if params.Pathology != "" {
		f := loader.NewTableFile(loader.NewTableFileParams{
			Name:     common.TablePathology,
			FilePath: params.Pathology,
			Optional: true,
			Loader:   params.Loader,
		})
		s.pathology = &f
	}
	if params.Scripts != "" {
		f := loader.NewTableFile(loader.NewTableFileParams{
			Name:       common.TableScripts,
			FilePath:   params.Scripts,
			Headerless: true,
			Optional:   true,
			Loader:     params.Loader,
		})
		s.scripts = &f
	}
	return s
}

func (s *TableSource) files() []loader.TableFile {
	files := []loader.TableFile{s.prescriptions, s.herbs}
	if s.pathology != nil {
		files = append(files, *s.pathology)
	}
	if s.scripts != nil {
		files = append(files, *s.scripts)
	}
	return files
}

// fetch downloads all tables concurrently. Missing optional tables are
// returned as nil.
func (s *TableSource) fetch(ctx context.Context) (map[string][]byte, error) {
	files := s.files()
	raw := make([][]byte, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			b, err := f.GetBytes(gctx)
			if err != nil {
				if f.Optional && errors.Is(err, loader.ErrNotFound) {
					logger.Debug("[Ingest] Optional table missing", "table", f.Name)
					return nil
				}
				return fmt.Errorf("failed to load %s: %w", f.Name, err)
			}
			raw[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(files))
	for i, f := range files {
		if raw[i] != nil {
			out[f.Name] = raw[i]
		}
	}
	return out, nil
}

// Fingerprint returns the content hash of the current tables without
// parsing them.
func (s *TableSource) Fingerprint(ctx context.Context) (string, error) {
	raw, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	return Hash(s.files(), raw), nil
}

// LoadDataset fetches and parses all tables.
func (s *TableSource) LoadDataset(ctx context.Context) (*common.Dataset, error) {
	start := time.Now()
	raw, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	parse := func(f *loader.TableFile) (csv.Records, bool, error) {
		if f == nil {
			return csv.Records{}, false, nil
		}
		b, ok := raw[f.Name]
		if !ok {
			return csv.Records{}, false, nil
		}
		r, err := csv.ParseCSV(b, f.Headerless)
		if err != nil {
			if f.Optional && errors.Is(err, csv.ErrEmpty) {
				return csv.Records{}, false, nil
			}
			return csv.Records{}, false, fmt.Errorf("%s: %w", f.Name, err)
		}
		return r, true, nil
	}

	presRecords, _, err := parse(&s.prescriptions)
	if err != nil {
		return nil, err
	}
	herbRecords, _, err := parse(&s.herbs)
	if err != nil {
		return nil, err
	}

	d := &common.Dataset{}
	if d.Allocations, err = ParseAllocations(presRecords); err != nil {
		return nil, err
	}
	if d.Herbs, err = ParseHerbs(herbRecords); err != nil {
		return nil, err
	}

	if r, ok, err := parse(s.pathology); err != nil {
		return nil, err
	} else if ok {
		m, err := ParsePathology(r)
		if err != nil {
			return nil, err
		}
		// A map without rows means integrated, as it does for the tables.
		if len(m.Rows) > 0 {
			d.Pathology = m
		}
	}

	if r, ok, err := parse(s.scripts); err != nil {
		return nil, err
	} else if ok {
		d.Scripts = ParseScripts(r)
	} else {
		d.Scripts = common.Table[common.ScriptRecord]{Name: common.TableScripts, Rows: []common.ScriptRecord{}}
	}

	if err := Stamp(d, Hash(s.files(), raw)); err != nil {
		return nil, err
	}

	logger.Info("[Ingest] Dataset loaded",
		"version", d.Version[:12],
		"load_id", d.LoadID,
		"allocations", len(d.Allocations.Rows),
		"herbs", len(d.Herbs.Rows),
		"topology", d.Topology(),
		"duration", time.Since(start),
	)
	return d, nil
}

// Hash is the sha256 over table names and raw contents in a fixed order.
// Absent tables contribute their name only.
func Hash(files []loader.TableFile, raw map[string][]byte) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.Name))
		h.Write([]byte{0})
		h.Write(raw[f.Name])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stamp sets the version, a fresh load id and the load time.
func Stamp(d *common.Dataset, version string) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("nanoid: %w", err)
	}
	d.Version = version
	d.LoadID = id
	d.LoadedAt = time.Now().UTC()
	return nil
}
