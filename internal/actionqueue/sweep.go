package actionqueue

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the page size used by ProcessAll when none is given.
const DefaultBatchSize = 50

// Tally summarizes a sweep. It is meant for operator-facing logs.
type Tally struct {
	// Processed counts ProcessOrder calls that returned true.
	Processed int
	// Failed counts calls that returned false, an error, or panicked.
	Failed int
	// Skipped counts orders frozen by a broken action.
	Skipped int
}

func (t Tally) String() string {
	return fmt.Sprintf("processed=%d failed=%d skipped=%d", t.Processed, t.Failed, t.Skipped)
}

type sweepOutcome int

const (
	outcomeProcessed sweepOutcome = iota
	outcomeFailed
	outcomeSkipped
)

// ProcessAll pages through every order of this integration that has
// pending work and calls ProcessOrder on each. A failure on one order is
// counted and never stops the sweep. The returned error is non-nil only
// when listing orders fails or ctx is cancelled between orders.
func (q *Queue) ProcessAll(ctx context.Context, batchSize int) (Tally, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		mu    sync.Mutex
		tally Tally
		after string
	)

	for {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		refs, err := q.store.ListPendingOrders(ctx, q.cfg.PaymentMethod, after, batchSize)
		if err != nil {
			return tally, fmt.Errorf("actionqueue: list pending orders: %w", err)
		}
		if len(refs) == 0 {
			return tally, nil
		}

		var g errgroup.Group
		g.SetLimit(q.workers)
		for _, ref := range refs {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				outcome := q.sweepOne(ctx, ref)
				mu.Lock()
				defer mu.Unlock()
				switch outcome {
				case outcomeProcessed:
					tally.Processed++
				case outcomeSkipped:
					tally.Skipped++
				default:
					tally.Failed++
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(refs) < batchSize {
			return tally, ctx.Err()
		}
		after = refs[len(refs)-1]
	}
}

// sweepOne isolates one order's processing from the rest of the sweep.
func (q *Queue) sweepOne(ctx context.Context, orderRef string) (outcome sweepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Printf("actionqueue: sweep panic on order=%s: %v", orderRef, r)
			outcome = outcomeFailed
		}
	}()

	pending, err := q.store.LoadPending(ctx, orderRef)
	if err != nil {
		q.logger.Printf("actionqueue: sweep order=%s: %v", orderRef, err)
		return outcomeFailed
	}
	if q.hasBroken(pending) {
		return outcomeSkipped
	}

	ok, err := q.ProcessOrder(ctx, orderRef)
	if err != nil {
		q.logger.Printf("actionqueue: sweep order=%s: %v", orderRef, err)
		return outcomeFailed
	}
	if !ok {
		return outcomeFailed
	}
	return outcomeProcessed
}
