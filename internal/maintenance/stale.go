package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/branchledger/pkg/logger"
)

const defaultStaleAfter = 72 * time.Hour

type openFollowUpCounter interface {
	CountOpenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StaleFollowUpJob warns when follow-ups have stayed open longer than After.
// It changes nothing; clerks resolve them through the API.
type StaleFollowUpJob struct {
	logg  *logger.Logger
	repo  openFollowUpCounter
	after time.Duration
	now   func() time.Time
}

func NewStaleFollowUpJob(logg *logger.Logger, repo openFollowUpCounter, after time.Duration) (*StaleFollowUpJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("follow-up repository required")
	}
	if after <= 0 {
		after = defaultStaleAfter
	}
	return &StaleFollowUpJob{logg: logg, repo: repo, after: after, now: time.Now}, nil
}

func (j *StaleFollowUpJob) Name() string { return "stale-followups" }

func (j *StaleFollowUpJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	count, err := j.repo.CountOpenBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count stale follow-ups: %w", err)
	}
	if count == 0 {
		return nil
	}
	j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
		"open_before": cutoff,
		"count":       count,
	}), "maintenance.stale_followups")
	return nil
}
