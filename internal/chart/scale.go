package chart

import (
	"fmt"
	"image/color"

	"github.com/speedwagon-io/weatherdash/internal/model"
	"github.com/speedwagon-io/weatherdash/internal/trend"
)

// Marker is one horizontal reference line: a vertical pixel offset from the
// bottom of the surface and the physical-value label drawn at that height.
type Marker struct {
	Offset int
	Label  string
}

// MetricScale is the static per-kind drawing configuration. Scales are
// defined once below and never derived from sample data.
type MetricScale struct {
	Kind    model.Metric
	Title   string
	Unit    string
	Markers []Marker
	Line    color.RGBA // trend line color, distinct from marker lines
}

// Readout formats the headline text for a current value, e.g. "72.5°F".
func (s MetricScale) Readout(current string) string {
	return current + s.Unit
}

var (
	TemperatureScale = MetricScale{
		Kind:    model.MetricTemperature,
		Title:   "Temperature",
		Unit:    "°F",
		Markers: fahrenheitMarkers(0, 20, 40, 60, 80, 100),
		Line:    color.RGBA{R: 0xff, G: 0x50, B: 0x30, A: 0xff},
	}
	HumidityScale = MetricScale{
		Kind:    model.MetricHumidity,
		Title:   "Humidity",
		Unit:    "%",
		Markers: humidityMarkers(0, 25, 50, 75, 100),
		Line:    color.RGBA{R: 0x40, G: 0x90, B: 0xff, A: 0xff},
	}
	PressureScale = MetricScale{
		Kind:    model.MetricPressure,
		Title:   "Pressure",
		Unit:    "inHg",
		Markers: pressureMarkers(28.5, 29.0, 29.5, 30.0, 30.5, 31.0),
		Line:    color.RGBA{R: 0x30, G: 0xd0, B: 0x60, A: 0xff},
	}
)

// ScaleFor returns the static scale for a metric kind.
func ScaleFor(m model.Metric) (MetricScale, bool) {
	switch m {
	case model.MetricTemperature:
		return TemperatureScale, true
	case model.MetricHumidity:
		return HumidityScale, true
	case model.MetricPressure:
		return PressureScale, true
	}
	return MetricScale{}, false
}

// Marker offsets reuse the firmware byte mappings so reference lines land on
// the exact rows the corresponding samples are plotted at.

func fahrenheitMarkers(degsF ...int) []Marker {
	ms := make([]Marker, 0, len(degsF))
	for _, f := range degsF {
		celsius := (float64(f) - 32) / 1.8
		ms = append(ms, Marker{
			Offset: int(trend.TemperatureMap.Encode(celsius)),
			Label:  fmt.Sprintf("%dF", f),
		})
	}
	return ms
}

func humidityMarkers(pcts ...int) []Marker {
	ms := make([]Marker, 0, len(pcts))
	for _, p := range pcts {
		ms = append(ms, Marker{
			Offset: int(trend.HumidityMap.Encode(float64(p))),
			Label:  fmt.Sprintf("%d%%", p),
		})
	}
	return ms
}

func pressureMarkers(inHg ...float64) []Marker {
	ms := make([]Marker, 0, len(inHg))
	for _, p := range inHg {
		hpa := p / 0.029530
		ms = append(ms, Marker{
			Offset: int(trend.PressureMap.Encode(hpa)),
			Label:  fmt.Sprintf("%.1f", p),
		})
	}
	return ms
}
