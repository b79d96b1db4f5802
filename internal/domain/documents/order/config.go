package order

import "stockledger/internal/core/numerator"

const (
	// NumberPrefix is the document number prefix of withdrawal orders.
	NumberPrefix = "WO"

	// NumeratorStrategy defines the numbering strategy for this document type.
	// Withdrawal orders are audited, so numbers must not have gaps.
	NumeratorStrategy = numerator.StrategyStrict
)
