package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"

	"golang.org/x/sync/singleflight"
)

// IOTableFileLoader loads table files from the local filesystem. FilePath is
// resolved against Root unless it is absolute.
type IOTableFileLoader struct {
	Root string

	group singleflight.Group
}

// NewIOTableFileLoader creates a new filesystem-based table loader.
func NewIOTableFileLoader(root string) *IOTableFileLoader {
	return &IOTableFileLoader{Root: root}
}

func (l *IOTableFileLoader) resolve(file loader.TableFile) string {
	if filepath.IsAbs(file.FilePath) || l.Root == "" {
		return file.FilePath
	}
	return filepath.Join(l.Root, file.FilePath)
}

// GetFileBytes reads the file content. Concurrent reads of the same file
// share one read.
func (l *IOTableFileLoader) GetFileBytes(ctx context.Context, file loader.TableFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.resolve(file)

	result, err, _ := l.group.Do(loader.CacheKey(file), func() (any, error) {
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", loader.ErrNotFound, path)
		}
		if err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
