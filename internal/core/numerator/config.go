// Package numerator provides domain contracts for document auto-numbering.
package numerator

import (
	"fmt"
	"time"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPDATE ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	// Slower, suitable for invoices and accounting documents.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if application restarts.
	// Suitable for internal documents (orders, shipments).
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "INV", "GR")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// Key returns the sequence key for the period according to ResetPeriod.
func (c Config) Key(period time.Time) string {
	switch c.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	default:
		return c.Prefix
	}
}

// Format renders num as a document number, e.g. WO-2026-00001.
func (c Config) Format(period time.Time, num int64) string {
	padWidth := c.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, padWidth, num)
}
