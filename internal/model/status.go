package model

import (
	"encoding/json"
	"fmt"
)

// Metric identifies one of the three sensor kinds the node reports.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricPressure    Metric = "pressure"
)

// Metrics lists the kinds in display order.
var Metrics = []Metric{MetricTemperature, MetricHumidity, MetricPressure}

// DisplayValue is a current reading as the device formats it. The firmware
// sends strings ("72.5"), but the contract also allows bare numbers, so both
// are accepted and kept verbatim: the dashboard never re-formats readings.
type DisplayValue string

func (v *DisplayValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = DisplayValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value %s is neither string nor number", string(data))
	}
	*v = DisplayValue(n.String())
	return nil
}

func (v DisplayValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

// Status is one snapshot of the device state as returned by GET /api/status.
// Values arrive already in display units (°F, %, inHg); this is a structural
// view, not a transformer.
type Status struct {
	Timestamp     string       `json:"timestamp"`
	Temperature   DisplayValue `json:"last_temperature"`
	Humidity      DisplayValue `json:"last_humidity"`
	Pressure      DisplayValue `json:"last_pressure"`
	TempTrend     string       `json:"t_trend"`
	HumidityTrend string       `json:"h_trend"`
	PressureTrend string       `json:"p_trend"`
}

// Trend returns the raw wire trend for the given metric.
func (s *Status) Trend(m Metric) string {
	switch m {
	case MetricTemperature:
		return s.TempTrend
	case MetricHumidity:
		return s.HumidityTrend
	case MetricPressure:
		return s.PressureTrend
	}
	return ""
}

// Reading returns the formatted current value for the given metric.
func (s *Status) Reading(m Metric) string {
	switch m {
	case MetricTemperature:
		return string(s.Temperature)
	case MetricHumidity:
		return string(s.Humidity)
	case MetricPressure:
		return string(s.Pressure)
	}
	return ""
}

// ParseError reports a status payload that is not well-formed or is missing
// a required field.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "invalid status payload: " + e.Reason
	}
	return fmt.Sprintf("invalid status payload: field %q %s", e.Field, e.Reason)
}

// ParseStatus validates and parses a raw status payload.
func ParseStatus(raw []byte) (*Status, error) {
	var s Status
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	required := []struct {
		name  string
		value string
	}{
		{"timestamp", s.Timestamp},
		{"last_temperature", string(s.Temperature)},
		{"last_humidity", string(s.Humidity)},
		{"last_pressure", string(s.Pressure)},
		{"t_trend", s.TempTrend},
		{"h_trend", s.HumidityTrend},
		{"p_trend", s.PressureTrend},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, &ParseError{Field: f.name, Reason: "is missing or empty"}
		}
	}

	return &s, nil
}
