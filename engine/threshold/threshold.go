// Package threshold holds the read-mostly lookup table of per-sensor bound
// configuration, loaded once at worker startup into a read-mostly map.
package threshold

import "github.com/atakang7/iot-analytics/engine/model"

// Table is a read-mostly map from sensor/device type to its Threshold,
// implementing the (device_type, sensor_type) > (sensor_type) lookup
// precedence rule.
type Table struct {
	byKey map[string]model.Threshold
}

// NewTable builds a Table from a flat list of thresholds.
func NewTable(thresholds []model.Threshold) *Table {
	t := &Table{byKey: make(map[string]model.Threshold, len(thresholds))}
	for _, th := range thresholds {
		t.byKey[key(th.DeviceType, th.SensorType)] = th
	}
	return t
}

// Lookup returns the threshold that applies to (deviceType, sensorType),
// preferring a device-type-specific entry over a sensor-type-only one.
func (t *Table) Lookup(deviceType, sensorType string) (model.Threshold, bool) {
	if deviceType != "" {
		if th, ok := t.byKey[key(deviceType, sensorType)]; ok {
			return th, true
		}
	}
	th, ok := t.byKey[key("", sensorType)]
	return th, ok
}

// Len reports how many threshold entries are loaded.
func (t *Table) Len() int { return len(t.byKey) }

func key(deviceType, sensorType string) string {
	if deviceType == "" {
		return sensorType
	}
	return deviceType + ":" + sensorType
}
