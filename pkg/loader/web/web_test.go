package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetCSVURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare document url",
			in:   "https://docs.google.com/spreadsheets/d/abc",
			want: "https://docs.google.com/spreadsheets/d/abc/gviz/tq?tqx=out:csv&gid=42",
		},
		{
			name: "edit link",
			in:   "https://docs.google.com/spreadsheets/d/abc/edit?usp=sharing",
			want: "https://docs.google.com/spreadsheets/d/abc/gviz/tq?tqx=out:csv&gid=42",
		},
		{
			name: "trailing slash",
			in:   "https://docs.google.com/spreadsheets/d/abc/",
			want: "https://docs.google.com/spreadsheets/d/abc/gviz/tq?tqx=out:csv&gid=42",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SheetCSVURL(tt.in, "42"))
		})
	}
}

func noWait(int) time.Duration { return 0 }

func TestGetFileBytes_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("Prescription_Name,Herb_Name,Amount\n"))
	}))
	defer srv.Close()

	l := NewSheetTableFileLoader(NewSheetTableFileLoaderParams{Retries: 3, Backoff: noWait})
	b, err := l.GetFileBytes(context.Background(), loader.TableFile{ID: "p", Name: "Prescription_Input", FilePath: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "Prescription_Name,Herb_Name,Amount\n", string(b))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetFileBytes_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := NewSheetTableFileLoader(NewSheetTableFileLoaderParams{Retries: 5, Backoff: noWait})
	_, err := l.GetFileBytes(context.Background(), loader.TableFile{ID: "s", FilePath: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, loader.ErrNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetFileBytes_PrivateSheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>sign in</html>"))
	}))
	defer srv.Close()

	l := NewSheetTableFileLoader(NewSheetTableFileLoaderParams{Retries: 2, Backoff: noWait})
	_, err := l.GetFileBytes(context.Background(), loader.TableFile{ID: "h", FilePath: srv.URL})
	assert.ErrorIs(t, err, ErrNotPublic)
}

func TestParseSheetGIDs(t *testing.T) {
	html := `foo,"name":"Prescription_Input","gid":"221744534",bar,"name":"Herb_Library","gid":"1414851403",`
	assert.Equal(t, map[string]string{
		"Prescription_Input": "221744534",
		"Herb_Library":       "1414851403",
	}, ParseSheetGIDs(html))

	assert.Equal(t, map[string]string{"7": "7"}, ParseSheetGIDs(`<a href="#gid=7">tab</a>`))
	assert.Empty(t, ParseSheetGIDs("nothing here"))
}
