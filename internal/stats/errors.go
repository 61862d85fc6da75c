package stats

import "errors"

var (
	// ErrNotFound is returned when the requested address is unknown to the pool
	ErrNotFound = errors.New("address not found")

	// ErrNoData is returned when a report window selects no blocks
	ErrNoData = errors.New("no blocks in window")

	// ErrInsufficientData is returned when a statistic has a zero divisor,
	// such as an empty pool or a window whose blocks share one timestamp
	ErrInsufficientData = errors.New("insufficient data")
)
