package followups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/internal/repo"
	"github.com/angelmondragon/branchledger/pkg/db"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/pagination"
)

const sourceEventConstraint = "source_event_id"

// Repository persists pending follow-ups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, followUp *models.PendingFollowUp) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PendingFollowUp, error)
	List(ctx context.Context, query listQuery) ([]models.PendingFollowUp, *pagination.Cursor, error)
	Resolve(ctx context.Context, id uuid.UUID, resolution resolution) (bool, error)
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountOpenBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type listQuery struct {
	Status  enums.FollowUpStatus
	EntryID *uuid.UUID
	Kind    enums.FollowUpKind
	Limit   int
	Cursor  *pagination.Cursor
}

type resolution struct {
	By   string
	Note *string
	At   time.Time
}

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a follow-up repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{Base: r.Base.WithTx(tx)}
}

// Create inserts the follow-up. It reports false without error when a row for
// the same source event already exists.
func (r *repositoryImpl) Create(ctx context.Context, followUp *models.PendingFollowUp) (bool, error) {
	if followUp.ID == uuid.Nil {
		followUp.ID = uuid.New()
	}
	if followUp.Status == "" {
		followUp.Status = enums.FollowUpStatusOpen
	}
	if err := r.DB(ctx).Create(followUp).Error; err != nil {
		if db.IsUniqueViolation(err, sourceEventConstraint) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.PendingFollowUp, error) {
	var followUp models.PendingFollowUp
	if err := r.DB(ctx).Where("id = ?", id).First(&followUp).Error; err != nil {
		return nil, err
	}
	return &followUp, nil
}

func (r *repositoryImpl) List(ctx context.Context, q listQuery) ([]models.PendingFollowUp, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.PendingFollowUp{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.EntryID != nil {
		query = query.Where("entry_id = ?", *q.EntryID)
	}
	if q.Kind != "" {
		query = query.Where("kind = ?", q.Kind)
	}

	var rows []models.PendingFollowUp
	if err := query.Scopes(pagination.Keyset(q.Cursor, q.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, q.Limit, func(f models.PendingFollowUp) pagination.Cursor {
		return pagination.Cursor{CreatedAt: f.CreatedAt, ID: f.ID}
	})
	return page, next, nil
}

// Resolve closes an open follow-up. It reports false when the row is missing
// or was already resolved.
func (r *repositoryImpl) Resolve(ctx context.Context, id uuid.UUID, res resolution) (bool, error) {
	result := r.DB(ctx).
		Model(&models.PendingFollowUp{}).
		Where("id = ? AND status = ?", id, enums.FollowUpStatusOpen).
		Updates(map[string]any{
			"status":          enums.FollowUpStatusResolved,
			"resolved_by":     res.By,
			"resolved_at":     res.At,
			"resolution_note": res.Note,
			"updated_at":      res.At,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteResolvedBefore purges follow-ups resolved before cutoff. Open rows are
// never touched.
func (r *repositoryImpl) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.DB(ctx).
		Where("status = ? AND resolved_at < ?", enums.FollowUpStatusResolved, cutoff).
		Delete(&models.PendingFollowUp{})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) CountOpenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.PendingFollowUp{}).
		Where("status = ? AND requested_at < ?", enums.FollowUpStatusOpen, cutoff).
		Count(&count).Error
	return count, err
}
