package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/branchledger/pkg/logger"
)

// Counter is the subset of the redis client used for atomic yearly counters.
type Counter interface {
	CounterKey(name string) string
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CounterGenerator issues numbers from a redis INCR per year. The counter is
// seeded once from the store maximum; any redis failure degrades to the store
// generator.
type CounterGenerator struct {
	counter  Counter
	store    *StoreGenerator
	ttl      time.Duration
	logg     *logger.Logger
	recorder Recorder
}

func NewCounterGenerator(counter Counter, store *StoreGenerator, ttl time.Duration, logg *logger.Logger, recorder Recorder) (*CounterGenerator, error) {
	if counter == nil {
		return nil, fmt.Errorf("counter required")
	}
	if store == nil {
		return nil, fmt.Errorf("store generator required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CounterGenerator{
		counter:  counter,
		store:    store,
		ttl:      ttl,
		logg:     logg,
		recorder: recorder,
	}, nil
}

func (g *CounterGenerator) Next(ctx context.Context, year int) (Issued, error) {
	if err := ctx.Err(); err != nil {
		return Issued{}, err
	}
	key := g.counter.CounterKey(fmt.Sprintf("bol:%d", year))

	exists, err := g.counter.Exists(ctx, key)
	if err != nil {
		return g.degrade(ctx, year, err)
	}
	if !exists {
		current, _, err := g.store.current(ctx, year)
		if err != nil {
			// the store generator applies its own fallback
			return g.store.Next(ctx, year)
		}
		if _, err := g.counter.SetNX(ctx, key, current, g.ttl); err != nil {
			return g.degrade(ctx, year, err)
		}
	}

	next, err := g.counter.Incr(ctx, key)
	if err != nil {
		return g.degrade(ctx, year, err)
	}
	g.recorder.IncIssued(sourceCounter)
	return Issued{Number: Format(year, int(next)), Year: year, Seq: int(next)}, nil
}

func (g *CounterGenerator) degrade(ctx context.Context, year int, cause error) (Issued, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Issued{}, ctxErr
	}
	logCtx := g.logg.WithFields(ctx, map[string]any{
		"year":  year,
		"error": cause.Error(),
	})
	g.logg.Warn(logCtx, "sequence.counter_unavailable")
	return g.store.Next(ctx, year)
}
