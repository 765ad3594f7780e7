// Package ingest validates sensor readings published by the weather stations
// and writes them to the SensorData table. Deliveries are at-least-once, so a
// reading that is already stored counts as success.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateTimeLayout is the timestamp format the stations publish
const DateTimeLayout = "2006-01-02 15:04:05"

// Reading is one sensor message
type Reading struct {
	DeviceID      string      `json:"deviceid"`
	DateTime      string      `json:"datetime"`
	Temperature   Measurement `json:"temperature"`
	Humidity      Measurement `json:"humidity"`
	WindDirection Measurement `json:"windDirection"`
	WindIntensity Measurement `json:"windIntensity"`
	RainHeight    Measurement `json:"rainHeight"`
}

// Time parses DateTime. Both the station format and RFC 3339 are accepted.
func (r Reading) Time() (time.Time, error) {
	if t, err := time.Parse(DateTimeLayout, r.DateTime); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, r.DateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q", r.DateTime)
	}
	return t.UTC(), nil
}

// Measurement is a sensor value. Stations send numbers either bare or as
// decimal strings.
type Measurement float64

// UnmarshalJSON accepts 21.5 and "21.5"
func (m *Measurement) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid measurement %s", string(data))
	}
	*m = Measurement(v)
	return nil
}

// MarshalJSON always writes a bare number
func (m Measurement) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(m))
}
