package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/branchledger/pkg/logger"
)

const (
	sourceStore    = "store"
	sourceCounter  = "counter"
	sourceFallback = "fallback"

	reasonLookupFailed = "lookup_failed"
	reasonUnparseable  = "unparseable_latest"
)

// Issued is one manifest number handed out by a Generator.
type Issued struct {
	Number   string
	Year     int
	Seq      int
	Fallback bool
}

// Generator issues manifest numbers. Next only fails when ctx is done.
type Generator interface {
	Next(ctx context.Context, year int) (Issued, error)
}

// NumberStore returns the greatest manifest number carrying prefix, or "" when
// none exists yet.
type NumberStore interface {
	LatestNumber(ctx context.Context, prefix string) (string, error)
}

// Recorder receives issuance metrics.
type Recorder interface {
	IncIssued(source string)
	IncFallback(reason string)
}

type nopRecorder struct{}

func (nopRecorder) IncIssued(string)   {}
func (nopRecorder) IncFallback(string) {}

// StoreGenerator reads the current yearly maximum from the store and issues the
// next value.
type StoreGenerator struct {
	store    NumberStore
	logg     *logger.Logger
	recorder Recorder
	now      func() time.Time
}

func NewStoreGenerator(store NumberStore, logg *logger.Logger, recorder Recorder) (*StoreGenerator, error) {
	if store == nil {
		return nil, fmt.Errorf("number store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &StoreGenerator{
		store:    store,
		logg:     logg,
		recorder: recorder,
		now:      time.Now,
	}, nil
}

func (g *StoreGenerator) Next(ctx context.Context, year int) (Issued, error) {
	if err := ctx.Err(); err != nil {
		return Issued{}, err
	}
	current, reason, err := g.current(ctx, year)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Issued{}, ctxErr
		}
		return g.fallback(ctx, year, reason, err), nil
	}
	g.recorder.IncIssued(sourceStore)
	return Issued{Number: Format(year, current+1), Year: year, Seq: current + 1}, nil
}

// current returns the highest sequence already issued for year.
func (g *StoreGenerator) current(ctx context.Context, year int) (int, string, error) {
	latest, err := g.store.LatestNumber(ctx, Prefix(year))
	if err != nil {
		return 0, reasonLookupFailed, err
	}
	if latest == "" {
		return 0, "", nil
	}
	parsedYear, seq, ok := Parse(latest)
	if !ok || parsedYear != year {
		return 0, reasonUnparseable, fmt.Errorf("latest manifest number %q is not part of the %d sequence", latest, year)
	}
	return seq, "", nil
}

func (g *StoreGenerator) fallback(ctx context.Context, year int, reason string, cause error) Issued {
	number := Fallback(g.now())
	logCtx := g.logg.WithFields(ctx, map[string]any{
		"year":   year,
		"reason": reason,
		"number": number,
		"error":  cause.Error(),
	})
	g.logg.Warn(logCtx, "sequence.fallback")
	g.recorder.IncFallback(reason)
	g.recorder.IncIssued(sourceFallback)
	return Issued{Number: number, Year: year, Fallback: true}
}
