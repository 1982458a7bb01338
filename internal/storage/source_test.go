package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSource_File(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("Prescription_Input.csv", "Prescription_Name,Herb_Name,Amount\nRx1,H1,4g\nRx2,H1,2\n")
	write("Herb_Library.csv", "Herb_Name,Compound_Name,Target_Protein,Core_Action\nH1,\"C1, C2\",T1,A1\n")

	t.Setenv("DATA_SOURCE", "file")
	t.Setenv("DATA_DIR", dir)

	src, err := OpenSource(context.Background())
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, SourceFile, src.Kind)

	d, err := src.Source.LoadDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Rx1", "Rx2"}, d.Prescriptions())
	assert.Len(t, d.Herbs.Rows, 2)
	assert.Nil(t, d.Pathology)
	assert.Empty(t, d.Scripts.Rows)

	fp, err := src.Source.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, d.Version, fp)
}

func TestOpenSource_Unknown(t *testing.T) {
	t.Setenv("DATA_SOURCE", "ftp")
	_, err := OpenSource(context.Background())
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestOpenSource_MissingConfig(t *testing.T) {
	tests := []struct {
		kind string
		env  string
	}{
		{SourceSheet, "SHEET_URL"},
		{SourceS3, "AWS_BUCKET"},
		{SourcePostgres, "DATABASE_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			t.Setenv("DATA_SOURCE", tt.kind)
			t.Setenv(tt.env, "")
			_, err := OpenSource(context.Background())
			assert.ErrorContains(t, err, tt.env)
		})
	}
}

func TestOpenSource_SheetDiscoversTabs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/d/doc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"Prescription_Input","gid":"11"},{"name":"Herb_Library","gid":"22"}]`)
	})
	mux.HandleFunc("/d/doc/gviz/tq", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		switch r.URL.Query().Get("gid") {
		case "11":
			fmt.Fprint(w, "Prescription_Name,Herb_Name,Amount\nRx1,H1,3\n")
		case "22":
			fmt.Fprint(w, "Herb_Name,Compound_Name,Core_Action\nH1,C1,A1\n")
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Setenv("DATA_SOURCE", "sheet")
	t.Setenv("SHEET_URL", srv.URL+"/d/doc")
	t.Setenv("SHEET_GID_PRESCRIPTIONS", "")
	t.Setenv("SHEET_GID_HERBS", "")
	t.Setenv("SHEET_GID_PATHOLOGY", "")
	t.Setenv("SHEET_GID_SCRIPTS", "")

	src, err := OpenSource(context.Background())
	require.NoError(t, err)

	d, err := src.Source.LoadDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Rx1"}, d.Prescriptions())
	assert.Equal(t, "integrated", d.Topology())
}
