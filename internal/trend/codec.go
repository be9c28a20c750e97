// Package trend implements the compact trend encoding used by the weather
// sensor node: a fixed-length history of one-byte samples, transmitted as
// space-delimited two-hex-digit tokens, oldest first. Sample value 0xff is
// reserved for slots that have never been written.
package trend

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sample is one metric reading mapped onto a single byte. Valid readings
// occupy [0,254]; NoSample marks an empty slot.
type Sample = uint8

// NoSample is the sentinel for "no data recorded for this slot".
const NoSample Sample = 0xff

// MaxSample is the largest encodable reading.
const MaxSample Sample = 0xfe

// Series is a time-ordered trend, oldest sample first.
type Series []Sample

// DeviceSlots is the slot count the deployed firmware transmits
// (one sample every 6 minutes, 24 hours of history).
const DeviceSlots = 240

// Decode parses a wire-format trend string into a Series.
// Any malformed token fails the whole series: a partially decoded trend
// would silently shift every later slot, so the caller is expected to drop
// the series and keep the rest of the refresh cycle going.
func Decode(s string) (Series, error) {
	if s == "" {
		return nil, fmt.Errorf("empty trend string")
	}

	tokens := strings.Split(s, " ")
	series := make(Series, 0, len(tokens))

	for i, tok := range tokens {
		if len(tok) != 2 {
			return nil, fmt.Errorf("slot %d: token %q is not two hex digits", i, tok)
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("slot %d: token %q: %w", i, tok, err)
		}
		series = append(series, Sample(v))
	}

	return series, nil
}

// Mapping is the linear map between a metric's physical range and the byte
// range [0,254]. The firmware applies the forward map when sampling; the
// dashboard only needs the inverse for axis labels and tooling.
type Mapping struct {
	Min  float64 // physical value encoded as 0
	Step float64 // physical units per byte count
}

// Firmware mappings. These must stay bit-compatible with the device:
// temperature (tc+40)*2 in °C, humidity h*2 in %, pressure (hPa-950)*2.
var (
	TemperatureMap = Mapping{Min: -40, Step: 0.5}
	HumidityMap    = Mapping{Min: 0, Step: 0.5}
	PressureMap    = Mapping{Min: 950, Step: 0.5}
)

// Encode maps a physical reading to its byte sample, rounding to nearest
// and clamping to the valid range. NoSample is never produced.
func (m Mapping) Encode(phys float64) Sample {
	v := math.Round((phys - m.Min) / m.Step)
	if v < 0 {
		return 0
	}
	if v > float64(MaxSample) {
		return MaxSample
	}
	return Sample(v)
}

// Value is the inverse of Encode. It must not be called with NoSample.
func (m Mapping) Value(s Sample) float64 {
	return m.Min + float64(s)*m.Step
}
