// Package store wraps github.com/jackc/pgx/v5 into the upsert/insert/query
// primitives the time-series store client needs, with transactional
// boundaries held for exactly the duration of one operation (or one flush,
// for the batched telemetry writer).
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atakang7/iot-analytics/engine/model"
)

// Store holds a pooled connection to the time-series database.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool against dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// InsertTelemetryBatch performs a single-transaction batched insert of
// readings using pgx.Batch: one round trip for N rows, rolled back
// wholesale on any failure so the consumer does not advance offsets for a
// partially-written batch.
func (s *Store) InsertTelemetryBatch(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range readings {
		valueJSON, err := encodeValue(r.Value)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO telemetry (time, device_id, device_type, sensor_id, sensor_type, unit, value)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.Timestamp, r.DeviceID, r.DeviceType, r.SensorID, r.SensorType, r.Unit, valueJSON,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range readings {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpsertAlert inserts or, on a (alert_id, created_at) conflict, leaves an
// alert row unchanged — idempotent persistence under at-least-once
// redelivery.
func (s *Store) UpsertAlert(ctx context.Context, a model.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (created_at, alert_id, device_id, device_type, alert_type, severity, message, threshold, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (alert_id, created_at) DO NOTHING`,
		a.CreatedAt, a.AlertID, a.DeviceID, a.DeviceType, string(a.AlertType), string(a.Severity), a.Message, a.Threshold, a.Value,
	)
	return err
}

// LoadThresholds reads the full thresholds table.
func (s *Store) LoadThresholds(ctx context.Context) ([]model.Threshold, error) {
	rows, err := s.pool.Query(ctx, `SELECT sensor_type, device_type, warning_low, warning_high, critical_low, critical_high FROM thresholds`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Threshold
	for rows.Next() {
		var t model.Threshold
		var deviceType *string
		if err := rows.Scan(&t.SensorType, &deviceType, &t.WarningLow, &t.WarningHigh, &t.CriticalLow, &t.CriticalHigh); err != nil {
			return nil, err
		}
		if deviceType != nil {
			t.DeviceType = *deviceType
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertKPI inserts or replaces a KPI row keyed by (device_id, kpi_name,
// window_start), overwriting non-key columns on conflict.
func (s *Store) UpsertKPI(ctx context.Context, row model.KPIRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kpis (created_at, device_id, device_type, kpi_name, kpi_value, unit, window_start, window_end, sample_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (device_id, kpi_name, window_start) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			device_type = EXCLUDED.device_type,
			kpi_value = EXCLUDED.kpi_value,
			unit = EXCLUDED.unit,
			window_end = EXCLUDED.window_end,
			sample_count = EXCLUDED.sample_count`,
		row.CreatedAt, row.DeviceID, row.DeviceType, row.KPIName, row.KPIValue, row.Unit, row.WindowStart, row.WindowEnd, row.SampleCount,
	)
	return err
}

// TelemetryRow is a raw persisted reading as read back for the KPI job.
type TelemetryRow struct {
	DeviceID   string
	DeviceType string
	SensorID   string
	SensorType string
	Time       time.Time
	Value      json.RawMessage
}

// QueryTelemetrySince returns rows with time in (since, until], ordered by
// (device_id, sensor_id, time).
func (s *Store) QueryTelemetrySince(ctx context.Context, since, until time.Time) ([]TelemetryRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT device_id, device_type, sensor_id, sensor_type, time, value
		FROM telemetry
		WHERE time > $1 AND time <= $2
		ORDER BY device_id, sensor_id, time`, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TelemetryRow
	for rows.Next() {
		var tr TelemetryRow
		if err := rows.Scan(&tr.DeviceID, &tr.DeviceType, &tr.SensorID, &tr.SensorType, &tr.Time, &tr.Value); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// GetWatermark returns the last-processed instant for jobName, or the Unix
// epoch when no watermark row exists yet.
func (s *Store) GetWatermark(ctx context.Context, jobName string) (time.Time, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_processed_at FROM job_watermarks WHERE job_name = $1`, jobName).Scan(&ts)
	if err == pgx.ErrNoRows {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// UpdateWatermark advances jobName's watermark to ts.
func (s *Store) UpdateWatermark(ctx context.Context, jobName string, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_watermarks (job_name, last_processed_at, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (job_name) DO UPDATE SET last_processed_at = EXCLUDED.last_processed_at, updated_at = now()`,
		jobName, ts)
	return err
}

func encodeValue(v model.Value) ([]byte, error) {
	switch v.Kind {
	case model.ValueVector:
		return json.Marshal(map[string]float64{"x": v.X, "y": v.Y, "z": v.Z})
	case model.ValueScalar:
		return json.Marshal(map[string]float64{"value": v.Scalar})
	default:
		return json.Marshal(v.Other)
	}
}
