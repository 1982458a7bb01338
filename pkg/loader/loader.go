package loader

import (
	"context"
	"errors"
)

// ErrNotFound is returned by loaders when the requested table does not exist
// at its location. Optional tables treat it as "absent".
var ErrNotFound = errors.New("table file not found")

// TableFile represents one input table stored somewhere a TableFileLoader
// can reach: a local path, an object key or a sheet export URL.
//
// The actual file content is retrieved via the associated TableFileLoader.
type TableFile struct {
	ID         string
	Name       string
	FilePath   string
	Headerless bool
	Optional   bool
	Loader     TableFileLoader
}

// NewTableFileParams defines the input parameters for creating a TableFile.
//
// Name is the logical table name (e.g. "Herb_Library") used in errors and
// logs. Headerless marks tables whose first row is data. Optional tables may
// be missing without failing the load.
type NewTableFileParams struct {
	ID         string
	Name       string
	FilePath   string
	Headerless bool
	Optional   bool
	Loader     TableFileLoader
}

// NewTableFile creates a TableFile from params. ID defaults to Name.
func NewTableFile(params NewTableFileParams) TableFile {
	id := params.ID
	if id == "" {
		id = params.Name
	}
	return TableFile{
		ID:         id,
		Name:       params.Name,
		FilePath:   params.FilePath,
		Headerless: params.Headerless,
		Optional:   params.Optional,
		Loader:     params.Loader,
	}
}

// GetBytes retrieves the raw content of the file using its Loader.
//
// Example:
//
//	raw, err := file.GetBytes(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	records, err := csv.ParseCSV(raw, file.Headerless)
func (f *TableFile) GetBytes(ctx context.Context) ([]byte, error) {
	if f.Loader == nil {
		return nil, errors.New("table file has no loader")
	}
	return f.Loader.GetFileBytes(ctx, *f)
}

// TableFileLoader defines the interface for loading the contents of a TableFile.
// Implementations may load files from disk, object storage, or the web.
type TableFileLoader interface {
	GetFileBytes(ctx context.Context, file TableFile) ([]byte, error)
}

// CacheKey identifies a file for request coalescing.
func CacheKey(file TableFile) string {
	return file.ID + ":" + file.FilePath
}
