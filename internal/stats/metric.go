package stats

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed-point precisions used across reports.
const (
	PercentPlaces   int32 = 4
	RatePlaces      int32 = 2
	ShmecklePlaces  int32 = 3
	RewardPlaces    int32 = 4
	BonusPlaces     int32 = 2
	PoolTotalPlaces int32 = 2
)

// Round rounds f to places using round-half-away-from-zero on the shortest
// decimal representation of f. Every fixed-precision field goes through here
// so that 1.2345 always becomes 1.235.
func Round(f float64, places int32) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(places)
}

// Format renders f with exactly places fractional digits.
func Format(f float64, places int32) string {
	return decimal.NewFromFloat(f).StringFixed(places)
}

// Metric is a derived statistic that may be undefined for degenerate input.
type Metric struct {
	Value  decimal.Decimal
	Places int32
	Err    error
}

// NewMetric rounds value to places. Non-finite values become an
// ErrInsufficientData metric instead of leaking NaN or Inf.
func NewMetric(value float64, places int32) Metric {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Metric{Places: places, Err: ErrInsufficientData}
	}
	return Metric{Value: Round(value, places), Places: places}
}

// Undefined builds a metric carrying err.
func Undefined(places int32, err error) Metric {
	return Metric{Places: places, Err: err}
}

// Valid reports whether the metric has a value.
func (m Metric) Valid() bool {
	return m.Err == nil
}

// String renders the value with a fixed number of places, or "n/a".
func (m Metric) String() string {
	if m.Err != nil {
		return "n/a"
	}
	return m.Value.StringFixed(m.Places)
}

// MarshalJSON renders a quoted fixed-point string, or null when undefined.
func (m Metric) MarshalJSON() ([]byte, error) {
	if m.Err != nil {
		return []byte("null"), nil
	}
	return []byte(`"` + m.Value.StringFixed(m.Places) + `"`), nil
}

// UnmarshalJSON restores a metric written by MarshalJSON. A null value comes
// back as ErrInsufficientData since that is the only way a metric is undefined.
func (m *Metric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Metric{Err: ErrInsufficientData}
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid metric %q: %w", raw, err)
	}
	var places int32
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		places = int32(len(raw) - idx - 1)
	}
	*m = Metric{Value: value, Places: places}
	return nil
}
