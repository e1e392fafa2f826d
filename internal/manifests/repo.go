package manifests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/internal/repo"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/pagination"
	"github.com/angelmondragon/branchledger/pkg/types"
)

// Repository persists branch entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.BranchEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.BranchEntry, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BranchEntry, error)
	FindByNumber(ctx context.Context, number string) (*models.BranchEntry, error)
	List(ctx context.Context, query listQuery) ([]models.BranchEntry, *pagination.Cursor, error)
	Save(ctx context.Context, entry *models.BranchEntry, expectedVersion int) error
	LatestNumber(ctx context.Context, prefix string) (string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type listQuery struct {
	Direction      enums.EntryDirection
	Status         enums.EntryStatus
	OriginBranchID *uuid.UUID
	Year           int
	Limit          int
	Cursor         *pagination.Cursor
}

type repository struct {
	repo.Base
}

// NewRepository binds the branch entry repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.BranchEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Version == 0 {
		entry.Version = 1
	}
	if entry.Items == nil {
		entry.Items = types.ManifestItems{}
	}
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BranchEntry, error) {
	var entry models.BranchEntry
	if err := r.DB(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return normalize(&entry), nil
}

// FindByIDForUpdate loads the entry holding a row lock until the surrounding
// transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.BranchEntry, error) {
	var entry models.BranchEntry
	if err := r.ForUpdate(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return normalize(&entry), nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.BranchEntry, error) {
	var entry models.BranchEntry
	if err := r.DB(ctx).Where("manifest_number = ?", number).First(&entry).Error; err != nil {
		return nil, err
	}
	return normalize(&entry), nil
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.BranchEntry, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.BranchEntry{})
	if q.Direction != "" {
		query = query.Where("direction = ?", q.Direction)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.OriginBranchID != nil {
		query = query.Where("origin_branch_id = ?", *q.OriginBranchID)
	}
	if q.Year > 0 {
		start := time.Date(q.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("created_at >= ? AND created_at < ?", start, start.AddDate(1, 0, 0))
	}

	var entries []models.BranchEntry
	if err := query.Scopes(pagination.Keyset(q.Cursor, q.Limit)).Find(&entries).Error; err != nil {
		return nil, nil, err
	}
	for idx := range entries {
		normalize(&entries[idx])
	}
	page, next := pagination.Trim(entries, q.Limit, func(e models.BranchEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return page, next, nil
}

// Save writes the mutable columns of entry when the stored version still
// equals expectedVersion, then advances entry.Version.
func (r *repository) Save(ctx context.Context, entry *models.BranchEntry, expectedVersion int) error {
	items := entry.Items
	if items == nil {
		items = types.ManifestItems{}
	}
	now := time.Now().UTC()
	result := r.DB(ctx).
		Model(&models.BranchEntry{}).
		Where("id = ? AND version = ?", entry.ID, expectedVersion).
		Updates(map[string]any{
			"items":        items,
			"notes":        entry.Notes,
			"status":       entry.Status,
			"vehicle_link": entry.VehicleLink,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.DB(ctx).Model(&models.BranchEntry{}).Where("id = ?", entry.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return pkgerrors.New(pkgerrors.CodeConcurrency, "manifest was modified concurrently").
			WithDetails(map[string]any{"expected_version": expectedVersion})
	}
	entry.Version = expectedVersion + 1
	entry.UpdatedAt = now
	return nil
}

// LatestNumber returns the greatest manifest number starting with prefix.
// Longer numbers sort first so 1000 follows 999.
func (r *repository) LatestNumber(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.DB(ctx).
		Model(&models.BranchEntry{}).
		Where("manifest_number LIKE ?", prefix+"%").
		Order("length(manifest_number) DESC, manifest_number DESC").
		Limit(1).
		Pluck("manifest_number", &numbers).Error
	if err != nil {
		return "", err
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.DB(ctx).Where("id = ?", id).Delete(&models.BranchEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func normalize(entry *models.BranchEntry) *models.BranchEntry {
	if entry.Items == nil {
		entry.Items = types.ManifestItems{}
	}
	for idx := range entry.Items {
		if entry.Items[idx].DispatchHistory == nil {
			entry.Items[idx].DispatchHistory = []types.DispatchRecord{}
		}
	}
	return entry
}
