package pgx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/common"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/ingest"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/logger"
	"github.com/OFFIS-RIT/herbflow/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
	BeginTx(ctx context.Context, txOptions pgxv5.TxOptions) (pgxv5.Tx, error)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

const insertChunkSize = 1000

// Columns the schema provides, reported as table headers.
var (
	allocationColumns = []string{common.ColPrescriptionName, common.ColHerbName, common.ColAmount}
	herbColumns       = []string{common.ColHerbName, common.ColCompoundName, common.ColTargetProtein, common.ColCoreAction, common.ColPathway}
	pathologyColumns  = []string{common.ColTargetProtein, common.ColLoopNode, common.ColActionType, common.ColAction}
	scriptColumns     = []string{common.ColPrescriptionName, common.ColSymptomStatus, common.ColExplanation}
)

const fingerprintQuery = `
SELECT
	(SELECT coalesce(md5(string_agg(t::text, '|' ORDER BY t.id)), '') FROM prescription_input t),
	(SELECT coalesce(md5(string_agg(t::text, '|' ORDER BY t.id)), '') FROM herb_library t),
	(SELECT coalesce(md5(string_agg(t::text, '|' ORDER BY t.id)), '') FROM pathology_map t),
	(SELECT coalesce(md5(string_agg(t::text, '|' ORDER BY t.id)), '') FROM prescription_script t)`

// TableStorage reads and writes the input tables in PostgreSQL. The schema
// lives in the migrations directory. The dataset uses the split topology
// whenever pathology_map holds rows.
type TableStorage struct {
	conn pgxIConn
}

// NewTableStorageWithConnection creates a TableStorage on an existing
// connection or pool.
func NewTableStorageWithConnection(conn pgxIConn) *TableStorage {
	return &TableStorage{conn: conn}
}

// Fingerprint hashes the content of all four tables inside Postgres.
func (s *TableStorage) Fingerprint(ctx context.Context) (string, error) {
	return fingerprint(ctx, s.conn)
}

func fingerprint(ctx context.Context, q querier) (string, error) {
	var a, b, c, d string
	if err := q.QueryRow(ctx, fingerprintQuery).Scan(&a, &b, &c, &d); err != nil {
		return "", fmt.Errorf("failed to fingerprint tables: %w", err)
	}
	sum := sha256.Sum256([]byte(a + ":" + b + ":" + c + ":" + d))
	return hex.EncodeToString(sum[:]), nil
}

// LoadDataset reads all tables. Compound cells holding comma separated
// lists are exploded the same way as spreadsheet imports. The version and
// the rows come from one repeatable-read snapshot.
func (s *TableStorage) LoadDataset(ctx context.Context) (*common.Dataset, error) {
	start := time.Now()
	tx, err := s.conn.BeginTx(ctx, pgxv5.TxOptions{
		IsoLevel:   pgxv5.RepeatableRead,
		AccessMode: pgxv5.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	version, err := fingerprint(ctx, tx)
	if err != nil {
		return nil, err
	}

	d := &common.Dataset{
		Allocations: common.Table[common.Allocation]{Name: common.TablePrescriptions, Columns: allocationColumns},
		Herbs:       common.Table[common.HerbRecord]{Name: common.TableHerbs, Columns: herbColumns},
		Scripts:     common.Table[common.ScriptRecord]{Name: common.TableScripts, Columns: scriptColumns},
	}

	if d.Allocations.Rows, err = loadAllocations(ctx, tx); err != nil {
		return nil, err
	}
	if len(d.Allocations.Rows) == 0 {
		return nil, fmt.Errorf("%s: %w", common.TablePrescriptions, ingest.ErrEmptyTable)
	}
	if d.Herbs.Rows, err = loadHerbs(ctx, tx); err != nil {
		return nil, err
	}
	pathology, err := loadPathology(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(pathology) > 0 {
		d.Pathology = &common.Table[common.PathologyRecord]{
			Name:    common.TablePathology,
			Columns: pathologyColumns,
			Rows:    pathology,
		}
	}
	if d.Scripts.Rows, err = loadScripts(ctx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close read transaction: %w", err)
	}

	if err := ingest.Stamp(d, version); err != nil {
		return nil, err
	}
	logger.Info("[Store] Dataset loaded from database",
		"version", d.Version[:12],
		"allocations", len(d.Allocations.Rows),
		"herbs", len(d.Herbs.Rows),
		"topology", d.Topology(),
		"duration", time.Since(start),
	)
	return d, nil
}

func loadAllocations(ctx context.Context, q querier) ([]common.Allocation, error) {
	rows, err := q.Query(ctx, `SELECT prescription_name, coalesce(herb_name, ''), amount FROM prescription_input ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	out := make([]common.Allocation, 0)
	for rows.Next() {
		var a common.Allocation
		if err := rows.Scan(&a.Prescription, &a.Herb, &a.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func loadHerbs(ctx context.Context, q querier) ([]common.HerbRecord, error) {
	rows, err := q.Query(ctx, `SELECT herb_name, compound_name, target_protein, core_action, pathway FROM herb_library ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query herb library: %w", err)
	}
	defer rows.Close()

	out := make([]common.HerbRecord, 0)
	for rows.Next() {
		var (
			herb                              string
			compound, target, action, pathway *string
		)
		if err := rows.Scan(&herb, &compound, &target, &action, &pathway); err != nil {
			return nil, fmt.Errorf("failed to scan herb: %w", err)
		}
		raw := ""
		if compound != nil {
			raw = *compound
		}
		for _, c := range ingest.SplitCompounds(raw) {
			out = append(out, common.HerbRecord{
				Herb:     herb,
				Compound: c,
				Target:   nullable(target),
				Action:   nullable(action),
				Pathway:  nullable(pathway),
			})
		}
	}
	return out, rows.Err()
}

func loadPathology(ctx context.Context, q querier) ([]common.PathologyRecord, error) {
	rows, err := q.Query(ctx, `SELECT target_protein, loop_node, action_type, action FROM pathology_map ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pathology map: %w", err)
	}
	defer rows.Close()

	out := make([]common.PathologyRecord, 0)
	for rows.Next() {
		var p common.PathologyRecord
		if err := rows.Scan(&p.Target, &p.LoopNode, &p.ActionType, &p.Action); err != nil {
			return nil, fmt.Errorf("failed to scan pathology row: %w", err)
		}
		p.LoopNode, p.ActionType, p.Action = nullable(p.LoopNode), nullable(p.ActionType), nullable(p.Action)
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadScripts(ctx context.Context, q querier) ([]common.ScriptRecord, error) {
	rows, err := q.Query(ctx, `SELECT prescription_name, coalesce(symptom_status, ''), coalesce(explanation, '') FROM prescription_script ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scripts: %w", err)
	}
	defer rows.Close()

	out := make([]common.ScriptRecord, 0)
	for rows.Next() {
		var sc common.ScriptRecord
		if err := rows.Scan(&sc.Prescription, &sc.Symptom, &sc.Explanation); err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// SaveDataset replaces the content of all tables with d in one transaction.
func (s *TableStorage) SaveDataset(ctx context.Context, d *common.Dataset) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE prescription_input, herb_library, pathology_map, prescription_script RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	allocs := d.Allocations.Rows
	err = store.ChunkRange(len(allocs), insertChunkSize, func(start, end int) error {
		names, herbs, amounts := make([]string, 0, end-start), make([]string, 0, end-start), make([]float64, 0, end-start)
		for _, a := range allocs[start:end] {
			names = append(names, a.Prescription)
			herbs = append(herbs, a.Herb)
			amounts = append(amounts, a.Amount)
		}
		_, err := tx.Exec(ctx, `INSERT INTO prescription_input (prescription_name, herb_name, amount)
			SELECT * FROM unnest($1::text[], $2::text[], $3::float8[])`, names, herbs, amounts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert allocations: %w", err)
	}

	herbs := d.Herbs.Rows
	err = store.ChunkRange(len(herbs), insertChunkSize, func(start, end int) error {
		n := end - start
		names := make([]string, 0, n)
		compounds, targets, actions, pathways := make([]*string, 0, n), make([]*string, 0, n), make([]*string, 0, n), make([]*string, 0, n)
		for _, h := range herbs[start:end] {
			names = append(names, h.Herb)
			compounds = append(compounds, h.Compound)
			targets = append(targets, h.Target)
			actions = append(actions, h.Action)
			pathways = append(pathways, h.Pathway)
		}
		_, err := tx.Exec(ctx, `INSERT INTO herb_library (herb_name, compound_name, target_protein, core_action, pathway)
			SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[])`,
			names, compounds, targets, actions, pathways)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert herbs: %w", err)
	}

	if d.Pathology != nil {
		rows := d.Pathology.Rows
		err = store.ChunkRange(len(rows), insertChunkSize, func(start, end int) error {
			n := end - start
			targets := make([]string, 0, n)
			loops, types, acts := make([]*string, 0, n), make([]*string, 0, n), make([]*string, 0, n)
			for _, p := range rows[start:end] {
				targets = append(targets, p.Target)
				loops = append(loops, p.LoopNode)
				types = append(types, p.ActionType)
				acts = append(acts, p.Action)
			}
			_, err := tx.Exec(ctx, `INSERT INTO pathology_map (target_protein, loop_node, action_type, action)
				SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[])`,
				targets, loops, types, acts)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to insert pathology map: %w", err)
		}
	}

	scripts := d.Scripts.Rows
	err = store.ChunkRange(len(scripts), insertChunkSize, func(start, end int) error {
		n := end - start
		names, symptoms, explanations := make([]string, 0, n), make([]string, 0, n), make([]string, 0, n)
		for _, sc := range scripts[start:end] {
			names = append(names, sc.Prescription)
			symptoms = append(symptoms, sc.Symptom)
			explanations = append(explanations, sc.Explanation)
		}
		_, err := tx.Exec(ctx, `INSERT INTO prescription_script (prescription_name, symptom_status, explanation)
			SELECT * FROM unnest($1::text[], $2::text[], $3::text[])`, names, symptoms, explanations)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert scripts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	logger.Info("[Store] Dataset saved to database", "version", d.Version)
	return nil
}

func nullable(s *string) *string {
	if s == nil {
		return nil
	}
	return ingest.Nullable(*s)
}
