package ledger

import (
	"context"
	"fmt"
	"time"
)

// LineSource provides the posted movements feeding an aggregation pass. Both
// feeds come back from one call so the implementation can serve them from a
// single read snapshot.
type LineSource interface {
	FeedSnapshot(ctx context.Context, entityIDs []int64, from, to time.Time, includeElimination bool) (lines, eliminationLines []Line, err error)
}

// Aggregator reduces ledger and elimination movements into per
// (entity, account) buckets. It has no side effects.
type Aggregator struct {
	source LineSource
}

// NewAggregator constructs an aggregator over the given feed.
func NewAggregator(source LineSource) *Aggregator {
	return &Aggregator{source: source}
}

// Aggregate sums debit/credit/balance per (entity, account) for posted lines
// in range. When includeElimination is set, lines of posted elimination
// entries land in the same buckets.
func (a *Aggregator) Aggregate(ctx context.Context, entityIDs []int64, from, to time.Time, includeElimination bool) (map[Key]Sum, error) {
	if a == nil || a.source == nil {
		return nil, fmt.Errorf("ledger: aggregator not initialised")
	}
	if len(entityIDs) == 0 {
		return map[Key]Sum{}, nil
	}

	bucket := make(map[Key]Sum)
	add := func(lines []Line) {
		for _, l := range lines {
			if l.EntityID == 0 || l.AccountID == 0 {
				continue
			}
			k := Key{EntityID: l.EntityID, AccountID: l.AccountID}
			s := bucket[k]
			s.Debit += l.Debit
			s.Credit += l.Credit
			s.Balance += l.Balance
			bucket[k] = s
		}
	}

	lines, elimLines, err := a.source.FeedSnapshot(ctx, entityIDs, from, to, includeElimination)
	if err != nil {
		return nil, err
	}
	add(lines)
	add(elimLines)

	return bucket, nil
}
