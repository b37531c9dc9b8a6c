package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/standproj/internal/state"
	"github.com/mesh-intelligence/standproj/internal/yieldtable"
	"github.com/mesh-intelligence/standproj/pkg/types"
)

// MessageEntry is one stored polygon message.
type MessageEntry struct {
	PolygonID string `json:"polygon_id"`
	Severity  string `json:"severity"`
	Kind      string `json:"kind"`
	Stratum   string `json:"stratum"`
	Text      string `json:"text"`
}

// StageEntry is one stored stage result.
type StageEntry struct {
	PolygonID string `json:"polygon_id"`
	Stage     string `json:"stage"`
	Stratum   string `json:"stratum"`
	Model     string `json:"model"`
	Outcome   string `json:"outcome"`
	Severity  string `json:"severity"`
	Code      int    `json:"code"`
}

// YieldRow is one stored yield-table row.
type YieldRow struct {
	PolygonID string  `json:"polygon_id"`
	Kind      string  `json:"kind"`
	Stratum   string  `json:"stratum"`
	Model     string  `json:"model"`
	Mode      string  `json:"mode"`
	Year      int     `json:"year"`
	Age       float64 `json:"age"`
	Phase     string  `json:"phase"`
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// BeginProjection registers a projection request and its parameters.
func (b *Backend) BeginProjection(ctx context.Context, projectionID string, params types.Parameters) error {
	db, release, err := b.conn()
	if err != nil {
		return err
	}
	defer release()

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	_, err = db.ExecContext(ctx,
		b.bind(`INSERT INTO projections (projection_id, parameters, started_at) VALUES (?, ?, ?)`),
		projectionID, string(raw), timestamp())
	if err != nil {
		return fmt.Errorf("insert projection %s: %w", projectionID, err)
	}
	return nil
}

// RecordPolygon stores a polygon's stage results and messages in one
// transaction.
func (b *Backend) RecordPolygon(ctx context.Context, projectionID string, polygon types.PolygonView, results []state.StageResult) error {
	db, release, err := b.conn()
	if err != nil {
		return err
	}
	defer release()

	id := polygon.ID()
	return b.inTx(ctx, db, func(tx *sql.Tx) error {
		d := polygon.Descriptor()
		if _, err := tx.ExecContext(ctx,
			b.bind(`INSERT INTO polygons (projection_id, polygon_id, feature_id, map_sheet, polygon_number, district, reference_year, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			projectionID, id, d.FeatureID, d.MapSheet, d.PolygonNumber, d.District, polygon.ReferenceYear(), timestamp()); err != nil {
			return fmt.Errorf("insert polygon %s: %w", id, err)
		}
		for i, r := range results {
			if _, err := tx.ExecContext(ctx,
				b.bind(`INSERT INTO stage_results (projection_id, polygon_id, seq, stage, stratum, model, outcome, severity, code)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				projectionID, id, i, r.Stage.String(), r.Stratum.String(), r.Model.String(),
				r.Outcome.Kind.String(), r.Outcome.Severity.String(), r.Outcome.Code); err != nil {
				return fmt.Errorf("insert stage result: %w", err)
			}
		}
		for i, m := range polygon.Messages() {
			if _, err := tx.ExecContext(ctx,
				b.bind(`INSERT INTO messages (projection_id, polygon_id, seq, severity, kind, stratum, text)
					VALUES (?, ?, ?, ?, ?, ?, ?)`),
				projectionID, id, i, m.Severity.String(), string(m.Kind), m.Stratum.String(), m.Text); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		return nil
	})
}

func (b *Backend) inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			b.logger.Warn("rollback failed", zap.Error(rerr))
		}
		return err
	}
	return tx.Commit()
}

// Sink returns a yield-table sink that stores tables under projectionID.
func (b *Backend) Sink(projectionID string) yieldtable.Sink {
	return &sink{b: b, projectionID: projectionID}
}

type sink struct {
	b            *Backend
	projectionID string
}

// WriteTable implements yieldtable.Sink.
func (s *sink) WriteTable(ctx context.Context, t yieldtable.Table) error {
	db, release, err := s.b.conn()
	if err != nil {
		return err
	}
	defer release()

	return s.b.inTx(ctx, db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.b.bind(
			`INSERT INTO yield_rows (projection_id, polygon_id, table_kind, stratum, model, mode, seq, year, age, phase)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare yield row: %w", err)
		}
		defer stmt.Close()
		for i, r := range t.Rows {
			if _, err := stmt.ExecContext(ctx, s.projectionID, t.PolygonID, string(t.Kind), t.Stratum.String(),
				t.Model.String(), t.Mode.String(), i, r.Year, r.Age, string(r.Phase)); err != nil {
				return fmt.Errorf("insert yield row of polygon %s: %w", t.PolygonID, err)
			}
		}
		return nil
	})
}

// Messages returns the stored messages of a projection ordered by polygon.
func (b *Backend) Messages(ctx context.Context, projectionID string) ([]MessageEntry, error) {
	var out []MessageEntry
	err := b.query(ctx, func(rows *sql.Rows) error {
		var m MessageEntry
		if err := rows.Scan(&m.PolygonID, &m.Severity, &m.Kind, &m.Stratum, &m.Text); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	}, `SELECT polygon_id, severity, kind, stratum, text FROM messages
		WHERE projection_id = ? ORDER BY polygon_id, seq`, projectionID)
	return out, err
}

// StageResults returns the stored stage results of a projection.
func (b *Backend) StageResults(ctx context.Context, projectionID string) ([]StageEntry, error) {
	var out []StageEntry
	err := b.query(ctx, func(rows *sql.Rows) error {
		var e StageEntry
		if err := rows.Scan(&e.PolygonID, &e.Stage, &e.Stratum, &e.Model, &e.Outcome, &e.Severity, &e.Code); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	}, `SELECT polygon_id, stage, stratum, model, outcome, severity, code FROM stage_results
		WHERE projection_id = ? ORDER BY polygon_id, seq`, projectionID)
	return out, err
}

// YieldRows returns the stored yield rows of a projection in table order.
func (b *Backend) YieldRows(ctx context.Context, projectionID string) ([]YieldRow, error) {
	var out []YieldRow
	err := b.query(ctx, func(rows *sql.Rows) error {
		var r YieldRow
		if err := rows.Scan(&r.PolygonID, &r.Kind, &r.Stratum, &r.Model, &r.Mode, &r.Year, &r.Age, &r.Phase); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}, `SELECT polygon_id, table_kind, stratum, model, mode, year, age, phase FROM yield_rows
		WHERE projection_id = ? ORDER BY polygon_id, table_kind DESC, stratum, seq`, projectionID)
	return out, err
}

// Projections returns the IDs of all recorded projections, oldest first.
func (b *Backend) Projections(ctx context.Context) ([]string, error) {
	var out []string
	err := b.query(ctx, func(rows *sql.Rows) error {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out = append(out, id)
		return nil
	}, `SELECT projection_id FROM projections ORDER BY started_at, projection_id`)
	return out, err
}

func (b *Backend) query(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	db, release, err := b.conn()
	if err != nil {
		return err
	}
	defer release()

	rows, err := db.QueryContext(ctx, b.bind(query), args...)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
	}
	return rows.Err()
}
