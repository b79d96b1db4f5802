package memory

import (
	"context"
	"time"

	corenumerator "stockledger/internal/core/numerator"
)

// Numerator implements numerator.Generator on the store's sequences.
// Both strategies behave like Strict here.
type Numerator struct {
	store *Store
}

// NewNumerator creates an in-memory numerator.
func NewNumerator(store *Store) *Numerator {
	return &Numerator{store: store}
}

var _ corenumerator.Generator = (*Numerator)(nil)

func (n *Numerator) GetNextNumber(ctx context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := cfg.Key(period)
	var num int64
	err := n.store.write(ctx, func() error {
		n.store.sequences[key]++
		num = n.store.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, num), nil
}

func (n *Numerator) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	return n.store.write(ctx, func() error {
		n.store.sequences[cfg.Key(period)] = value
		return nil
	})
}
