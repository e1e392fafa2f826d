package maintenance

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/pkg/logger"
)

const (
	defaultOutboxRetentionDays   = 30
	defaultFollowUpRetentionDays = 90
	day                          = 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedOutboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type resolvedFollowUpPurger interface {
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRetentionJob deletes outbox rows published more than Days ago.
type OutboxRetentionJob struct {
	logg *logger.Logger
	tx   txRunner
	repo publishedOutboxPurger
	days int
	now  func() time.Time
}

func NewOutboxRetentionJob(logg *logger.Logger, tx txRunner, repo publishedOutboxPurger, days int) (*OutboxRetentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if days <= 0 {
		days = defaultOutboxRetentionDays
	}
	return &OutboxRetentionJob{logg: logg, tx: tx, repo: repo, days: days, now: time.Now}, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.days) * day)
	var deleted int64
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("purge published outbox rows: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "maintenance.outbox_purged")
	return nil
}

// FollowUpRetentionJob deletes follow-ups resolved more than Days ago.
type FollowUpRetentionJob struct {
	logg *logger.Logger
	repo resolvedFollowUpPurger
	days int
	now  func() time.Time
}

func NewFollowUpRetentionJob(logg *logger.Logger, repo resolvedFollowUpPurger, days int) (*FollowUpRetentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("follow-up repository required")
	}
	if days <= 0 {
		days = defaultFollowUpRetentionDays
	}
	return &FollowUpRetentionJob{logg: logg, repo: repo, days: days, now: time.Now}, nil
}

func (j *FollowUpRetentionJob) Name() string { return "followup-retention" }

func (j *FollowUpRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.days) * day)
	deleted, err := j.repo.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge resolved follow-ups: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "maintenance.followups_purged")
	return nil
}
