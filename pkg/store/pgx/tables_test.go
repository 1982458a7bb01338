package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case *float64:
			*d = v.(float64)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgxv5.Conn                            { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return assign(dest, r.data[r.pos-1]) }

type fakeRow []any

func (r fakeRow) Scan(dest ...any) error { return assign(dest, r) }

type fakeConn struct {
	tables      map[string][][]any
	fingerprint fakeRow

	txOptions *pgxv5.TxOptions
	beginErr  error
	outsideTx int
	insideTx  int
	committed bool
}

func (c *fakeConn) rows(sql string) *fakeRows {
	for table, data := range c.tables {
		if strings.Contains(sql, "FROM "+table+" ") {
			return &fakeRows{data: data}
		}
	}
	return &fakeRows{}
}

// fakeTx serves reads from its connection. Methods it does not override
// panic through the nil embedded Tx.
type fakeTx struct {
	pgxv5.Tx
	conn *fakeConn
}

func (tx *fakeTx) Query(_ context.Context, sql string, _ ...any) (pgxv5.Rows, error) {
	tx.conn.insideTx++
	return tx.conn.rows(sql), nil
}

func (tx *fakeTx) QueryRow(context.Context, string, ...any) pgxv5.Row {
	tx.conn.insideTx++
	return tx.conn.fingerprint
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.conn.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error { return nil }

func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Query(_ context.Context, sql string, _ ...any) (pgxv5.Rows, error) {
	c.outsideTx++
	return c.rows(sql), nil
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) pgxv5.Row {
	c.outsideTx++
	return c.fingerprint
}

func (c *fakeConn) BeginTx(_ context.Context, opts pgxv5.TxOptions) (pgxv5.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	c.txOptions = &opts
	return &fakeTx{conn: c}, nil
}

func (c *fakeConn) Begin(context.Context) (pgxv5.Tx, error) {
	return nil, errors.New("transactions unavailable")
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		fingerprint: fakeRow{"a", "b", "", ""},
		tables: map[string][][]any{
			"prescription_input": {
				{"Rx1", "HerbX", 10.0},
				{"Rx1", "HerbY", 5.0},
			},
			"herb_library": {
				{"HerbX", "C1, C2", "T1", "Z", nil},
				{"HerbY", nil, "T1", "nan", nil},
			},
			"prescription_script": {
				{"Rx1", "Cold", "Warms"},
			},
		},
	}
}

func TestLoadDataset(t *testing.T) {
	s := NewTableStorageWithConnection(newFakeConn())
	d, err := s.LoadDataset(context.Background())
	require.NoError(t, err)

	assert.Len(t, d.Version, 64)
	assert.NotEmpty(t, d.LoadID)
	assert.Equal(t, "integrated", d.Topology())
	assert.Len(t, d.Allocations.Rows, 2)
	assert.NoError(t, d.Herbs.Require(common.ColHerbName, common.ColCompoundName, common.ColTargetProtein, common.ColCoreAction))

	require.Len(t, d.Herbs.Rows, 3)
	assert.Equal(t, "C1", *d.Herbs.Rows[0].Compound)
	assert.Equal(t, "C2", *d.Herbs.Rows[1].Compound)
	assert.Nil(t, d.Herbs.Rows[2].Compound)
	assert.Nil(t, d.Herbs.Rows[2].Action)
	assert.Equal(t, []common.ScriptRecord{{Prescription: "Rx1", Symptom: "Cold", Explanation: "Warms"}}, d.Scripts.Rows)
}

func TestLoadDataset_ReadsOneSnapshot(t *testing.T) {
	conn := newFakeConn()
	_, err := NewTableStorageWithConnection(conn).LoadDataset(context.Background())
	require.NoError(t, err)

	require.NotNil(t, conn.txOptions)
	assert.Equal(t, pgxv5.RepeatableRead, conn.txOptions.IsoLevel)
	assert.Equal(t, pgxv5.ReadOnly, conn.txOptions.AccessMode)
	assert.Zero(t, conn.outsideTx, "version and rows must come from the same transaction")
	assert.Equal(t, 5, conn.insideTx)
	assert.True(t, conn.committed)
}

func TestLoadDataset_BeginFailure(t *testing.T) {
	conn := newFakeConn()
	conn.beginErr = errors.New("too many connections")
	_, err := NewTableStorageWithConnection(conn).LoadDataset(context.Background())
	assert.ErrorContains(t, err, "too many connections")
}

func TestLoadDataset_SplitWhenPathologyPresent(t *testing.T) {
	conn := newFakeConn()
	conn.tables["pathology_map"] = [][]any{{"T1", "Loop", nil, nil}}

	d, err := NewTableStorageWithConnection(conn).LoadDataset(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d.Pathology)
	assert.Equal(t, "Loop", *d.Pathology.Rows[0].LoopNode)
}

func TestLoadDataset_EmptyAllocations(t *testing.T) {
	conn := newFakeConn()
	delete(conn.tables, "prescription_input")
	_, err := NewTableStorageWithConnection(conn).LoadDataset(context.Background())
	assert.Error(t, err)
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	conn := newFakeConn()
	s := NewTableStorageWithConnection(conn)
	first, err := s.Fingerprint(context.Background())
	require.NoError(t, err)

	conn.fingerprint = fakeRow{"a", "changed", "", ""}
	second, err := s.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSaveDataset_BeginFailure(t *testing.T) {
	err := NewTableStorageWithConnection(newFakeConn()).SaveDataset(context.Background(), &common.Dataset{})
	assert.ErrorContains(t, err, "failed to begin transaction")
}
