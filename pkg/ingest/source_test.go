package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLoader struct {
	mu    sync.Mutex
	files map[string]string
	fail  map[string]error
}

func (m *memLoader) GetFileBytes(_ context.Context, f loader.TableFile) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[f.FilePath]; ok {
		return nil, err
	}
	b, ok := m.files[f.FilePath]
	if !ok {
		return nil, loader.ErrNotFound
	}
	return []byte(b), nil
}

func (m *memLoader) set(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

func newMemSource(m *memLoader) *TableSource {
	return NewTableSource(NewTableSourceParams{
		Loader:        m,
		Prescriptions: "p.csv",
		Herbs:         "h.csv",
		Pathology:     "m.csv",
		Scripts:       "s.csv",
	})
}

func baseFiles() map[string]string {
	return map[string]string{
		"p.csv": "Prescription_Name,Herb_Name,Amount\nRx1,HerbX,10\nRx1,HerbY,5\n",
		"h.csv": "Herb_Name,Compound_Name,Target_Protein,Core_Action\nHerbX,C1,T1,Z\nHerbY,C2,T1,Z\n",
		"s.csv": "Rx1,Cold,Warms\n",
	}
}

func TestLoadDataset_Integrated(t *testing.T) {
	src := newMemSource(&memLoader{files: baseFiles()})
	d, err := src.LoadDataset(context.Background())
	require.NoError(t, err)

	assert.Len(t, d.Allocations.Rows, 2)
	assert.Len(t, d.Herbs.Rows, 2)
	assert.Nil(t, d.Pathology)
	assert.Equal(t, "integrated", d.Topology())
	assert.Equal(t, []common.ScriptRecord{{Prescription: "Rx1", Symptom: "Cold", Explanation: "Warms"}}, d.Scripts.Rows)
	assert.Len(t, d.Version, 64)
	assert.NotEmpty(t, d.LoadID)
	assert.False(t, d.LoadedAt.IsZero())
}

func TestLoadDataset_Split(t *testing.T) {
	files := baseFiles()
	files["h.csv"] = "Herb_Name,Compound_Name,Target_Protein\nHerbX,C1,T1\n"
	files["m.csv"] = "Target_Protein,Loop_Node\nT1,Loop\n"
	d, err := newMemSource(&memLoader{files: files}).LoadDataset(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d.Pathology)
	assert.Equal(t, "split", d.Topology())
}

func TestLoadDataset_EmptyPathologyIsIntegrated(t *testing.T) {
	for name, content := range map[string]string{
		"header only":   "Target_Protein,Loop_Node\n",
		"blank targets": "Target_Protein,Loop_Node\n,Loop\n",
	} {
		t.Run(name, func(t *testing.T) {
			files := baseFiles()
			files["m.csv"] = content
			d, err := newMemSource(&memLoader{files: files}).LoadDataset(context.Background())
			require.NoError(t, err)
			assert.Nil(t, d.Pathology)
			assert.Equal(t, "integrated", d.Topology())
		})
	}
}

func TestLoadDataset_Errors(t *testing.T) {
	t.Run("required table missing", func(t *testing.T) {
		files := baseFiles()
		delete(files, "h.csv")
		_, err := newMemSource(&memLoader{files: files}).LoadDataset(context.Background())
		assert.ErrorIs(t, err, loader.ErrNotFound)
	})

	t.Run("optional table failing for other reasons", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := newMemSource(&memLoader{files: baseFiles(), fail: map[string]error{"s.csv": boom}}).LoadDataset(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing column", func(t *testing.T) {
		files := baseFiles()
		files["p.csv"] = "Name,Herb_Name,Amount\nRx1,HerbX,1\n"
		_, err := newMemSource(&memLoader{files: files}).LoadDataset(context.Background())
		assert.ErrorIs(t, err, common.ErrMissingColumn)
	})
}

func TestFingerprint(t *testing.T) {
	m := &memLoader{files: baseFiles()}
	src := newMemSource(m)

	first, err := src.Fingerprint(context.Background())
	require.NoError(t, err)
	again, err := src.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)

	d, err := src.LoadDataset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, d.Version)

	m.set("p.csv", "Prescription_Name,Herb_Name,Amount\nRx1,HerbX,11\n")
	changed, err := src.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}
