// Package kpi implements the watermark-driven batch KPI job: read all
// telemetry since the last watermark, group by series, compute
// per-sensor-type KPIs, and upsert one row per KPI.
package kpi

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/atakang7/iot-analytics/engine/model"
	"github.com/atakang7/iot-analytics/engine/store"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
)

// JobName identifies this job's watermark row.
const JobName = "kpi_5min"

// Job computes windowed KPIs over telemetry persisted since the last run.
type Job struct {
	store *store.Store

	kpisComputed metrics.Counter
	jobDuration  func() metrics.Timer
}

// New constructs a Job reading from and writing to s.
func New(s *store.Store, provider metrics.Provider) *Job {
	j := &Job{store: s}
	if provider != nil {
		j.kpisComputed = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "iot", Name: "kpis_computed_total", Help: "KPI rows computed and upserted", Labels: []string{"kpi_name"},
		}})
		j.jobDuration = provider.NewTimer(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "iot", Name: "kpi_job_duration_seconds", Help: "Wall time spent computing one KPI job run",
		}})
	}
	return j
}

// Result summarizes one completed run.
type Result struct {
	ReadingsProcessed int
	Devices           int
	KPIsComputed      int
	WindowStart       time.Time
	WindowEnd         time.Time
}

// seriesKey groups raw telemetry rows per (device, sensor), not merely per
// device: KPI values are computed on a per-sensor series even though the
// persisted KPI row's key (device_id, kpi_name, window_start) has no
// sensor_id component.
type seriesKey struct {
	deviceID   string
	deviceType string
	sensorID   string
	sensorType string
}

// Run executes one watermark-driven pass: on success the watermark advances
// to the max reading timestamp observed; on any failure it is left
// untouched so the next run reprocesses the same window.
func (j *Job) Run(ctx context.Context) (Result, error) {
	if j.jobDuration != nil {
		timer := j.jobDuration()
		defer timer.ObserveDuration()
	}

	watermark, err := j.store.GetWatermark(ctx, JobName)
	if err != nil {
		return Result{}, fmt.Errorf("kpi: reading watermark: %w", err)
	}
	now := time.Now().UTC()

	rows, err := j.store.QueryTelemetrySince(ctx, watermark, now)
	if err != nil {
		return Result{}, fmt.Errorf("kpi: querying telemetry since %s: %w", watermark, err)
	}
	if len(rows) == 0 {
		return Result{WindowStart: watermark, WindowEnd: watermark}, nil
	}

	groups := make(map[seriesKey][]float64)
	order := make([]seriesKey, 0)
	maxTime := watermark
	for _, row := range rows {
		key := seriesKey{deviceID: row.DeviceID, deviceType: row.DeviceType, sensorID: row.SensorID, sensorType: row.SensorType}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		if value, ok := extractValue(row.Value, row.SensorType); ok {
			groups[key] = append(groups[key], value)
		}
		if row.Time.After(maxTime) {
			maxTime = row.Time
		}
	}

	kpiCount := 0
	for _, key := range order {
		values := groups[key]
		kpis := computeKPIs(values, key.sensorType)
		for name, value := range kpis {
			row := model.KPIRow{
				DeviceID:    key.deviceID,
				DeviceType:  key.deviceType,
				KPIName:     fmt.Sprintf("%s_%s", key.sensorType, name),
				KPIValue:    value,
				WindowStart: watermark,
				WindowEnd:   maxTime,
				SampleCount: len(values),
				CreatedAt:   now,
			}
			if err := j.store.UpsertKPI(ctx, row); err != nil {
				return Result{}, fmt.Errorf("kpi: upserting %s for %s: %w", row.KPIName, row.DeviceID, err)
			}
			if j.kpisComputed != nil {
				j.kpisComputed.Inc(1, row.KPIName)
			}
			kpiCount++
		}
	}

	if err := j.store.UpdateWatermark(ctx, JobName, maxTime); err != nil {
		return Result{}, fmt.Errorf("kpi: advancing watermark to %s: %w", maxTime, err)
	}

	devices := make(map[string]struct{})
	for key := range groups {
		devices[key.deviceID] = struct{}{}
	}

	return Result{
		ReadingsProcessed: len(rows),
		Devices:           len(devices),
		KPIsComputed:      kpiCount,
		WindowStart:       watermark,
		WindowEnd:         maxTime,
	}, nil
}

// extractValue decodes a persisted telemetry value back into a scalar,
// mirroring store.encodeValue's {"value": v} and {"x","y","z"} shapes.
func extractValue(raw json.RawMessage, sensorType string) (float64, bool) {
	var decoded map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return 0, false
	}
	if sensorType == "vibration" {
		x, y, z := decoded["x"], decoded["y"], decoded["z"]
		return math.Sqrt(x*x + y*y + z*z), true
	}
	v, ok := decoded["value"]
	return v, ok
}

// computeKPIs mirrors the Python job's compute_kpis: universal stats plus
// sensor-type-specific derived KPIs.
func computeKPIs(values []float64, sensorType string) map[string]float64 {
	if len(values) == 0 {
		return nil
	}

	kpis := map[string]float64{
		"avg":   mean(values),
		"min":   minOf(values),
		"max":   maxOf(values),
		"count": float64(len(values)),
	}

	if len(values) >= 2 {
		kpis["std_dev"] = sampleStdDev(values)
		kpis["range"] = kpis["max"] - kpis["min"]
	}

	switch sensorType {
	case "vibration":
		rms := rootMeanSquare(values)
		kpis["rms"] = rms
		if rms > 0 {
			kpis["crest_factor"] = maxAbs(values) / rms
		}
	case "temperature":
		if len(values) >= 2 {
			kpis["rate_of_change"] = values[len(values)-1] - values[0]
		}
	case "power":
		kpis["energy"] = sum(values)
	}

	return kpis
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 { return sum(values) / float64(len(values)) }

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func maxAbs(values []float64) float64 {
	m := math.Abs(values[0])
	for _, v := range values[1:] {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// sampleStdDev computes the n-1 sample standard deviation, matching
// Python's statistics.stdev.
func sampleStdDev(values []float64) float64 {
	mu := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mu
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func rootMeanSquare(values []float64) float64 {
	var sumSq float64
	for _, v := range values {
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
