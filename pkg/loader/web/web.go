package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/internal/util"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// ErrNotPublic is returned when a sheet export answers with an HTML page,
// which is what Google serves for sheets that are not shared publicly.
var ErrNotPublic = errors.New("sheet is not publicly readable")

// SheetCSVURL builds the GViz CSV export URL of one tab of a Google sheet.
// sheetURL may be the bare document URL or an /edit link.
func SheetCSVURL(sheetURL, gid string) string {
	base := sheetURL
	if i := strings.Index(base, "/edit"); i >= 0 {
		base = base[:i]
	}
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, "/")
	return fmt.Sprintf("%s/gviz/tq?tqx=out:csv&gid=%s", base, url.QueryEscape(gid))
}

// SheetTableFileLoader fetches table exports over HTTP. FilePath is the
// export URL, usually built with SheetCSVURL.
type SheetTableFileLoader struct {
	client  *http.Client
	retries int
	backoff util.Backoff

	group singleflight.Group
}

// NewSheetTableFileLoaderParams configures a SheetTableFileLoader.
//
// Retries is the number of attempts per fetch (at least one). Server errors
// and transport failures are retried with exponential backoff; client
// errors are not.
type NewSheetTableFileLoaderParams struct {
	Client  *http.Client
	Retries int
	Backoff util.Backoff
}

// NewSheetTableFileLoader creates a web table loader.
func NewSheetTableFileLoader(params NewSheetTableFileLoaderParams) *SheetTableFileLoader {
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	backoff := params.Backoff
	if backoff == nil {
		backoff = util.ExponentialBackoff(500*time.Millisecond, 8*time.Second)
	}
	return &SheetTableFileLoader{
		client:  client,
		retries: max(params.Retries, 1),
		backoff: backoff,
	}
}

// GetFileBytes downloads the export. Concurrent fetches of the same file
// share one request.
func (l *SheetTableFileLoader) GetFileBytes(ctx context.Context, file loader.TableFile) ([]byte, error) {
	result, err, _ := l.group.Do(loader.CacheKey(file), func() (any, error) {
		attempt := 0
		return util.RetryWithContext(ctx, l.retries, l.backoff, func(ctx context.Context) ([]byte, error) {
			attempt++
			b, err := l.fetch(ctx, file.FilePath)
			if err != nil {
				logger.Warn("[Loader] Sheet fetch failed", "table", file.Name, "attempt", attempt, "err", err)
			}
			return b, err
		})
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

func (l *SheetTableFileLoader) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, util.Permanent(fmt.Errorf("%w: %s", loader.ErrNotFound, target))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, util.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, util.Permanent(ErrNotPublic)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return b, nil
}

var (
	reSheetNameGID = regexp.MustCompile(`"name":"([^"]+)","gid":"(\d+)"`)
	reLooseGID     = regexp.MustCompile(`gid=(\d+)`)
)

// DiscoverSheetGIDs scrapes the sheet's HTML page for its tab names and
// gids. When only bare gids are found they are keyed by themselves.
func (l *SheetTableFileLoader) DiscoverSheetGIDs(ctx context.Context, sheetURL string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sheetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return ParseSheetGIDs(string(body)), nil
}

// ParseSheetGIDs extracts tab name → gid pairs from a sheet page.
func ParseSheetGIDs(html string) map[string]string {
	out := make(map[string]string)
	for _, m := range reSheetNameGID.FindAllStringSubmatch(html, -1) {
		out[m[1]] = m[2]
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range reLooseGID.FindAllStringSubmatch(html, -1) {
		out[m[1]] = m[1]
	}
	return out
}
