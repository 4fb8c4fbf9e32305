package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// runConcurrent processes up to o.workers items at once. Outcomes keep feed
// order; each slot is written only by the goroutine that owns it.
func (o *Orchestrator) runConcurrent(ctx context.Context) (*Summary, error) {
	o.logger.Info("starting concurrent run", "workers", o.workers)

	var g errgroup.Group
	g.SetLimit(o.workers)

	var slots []*Outcome
	for item, err := range o.steps.Feeder.Module.Feed(ctx) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			o.logger.Error("feeder error", "feeder", o.steps.Feeder.Name, "error", err)
			continue
		}
		if item == nil {
			continue
		}
		slot := &Outcome{Item: item, State: StateFed}
		slots = append(slots, slot)
		g.Go(func() error {
			*slot = o.Process(ctx, item)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	summary := &Summary{Processed: len(slots), Outcomes: make([]Outcome, len(slots))}
	for i, s := range slots {
		summary.Outcomes[i] = *s
	}
	if ctx.Err() != nil {
		return summary, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}
	return summary, nil
}
