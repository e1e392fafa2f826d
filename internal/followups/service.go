package followups

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/pagination"
)

// Service lists and resolves pending follow-ups.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*FollowUpDTO, error)
	Resolve(ctx context.Context, input ResolveInput) (*FollowUpDTO, error)
}

// ListParams filters follow-ups.
type ListParams struct {
	Status  enums.FollowUpStatus
	EntryID *uuid.UUID
	Kind    enums.FollowUpKind
	Limit   int
	Cursor  string
}

// ListResult wraps returned follow-ups and the cursor for the next page.
type ListResult struct {
	Items  []FollowUpDTO `json:"items"`
	Cursor string        `json:"cursor"`
}

// ResolveInput closes a follow-up once the operator acted on it.
type ResolveInput struct {
	ID         uuid.UUID
	OperatorID string
	Note       string
}

// FollowUpDTO is the API view of a pending follow-up.
type FollowUpDTO struct {
	ID               uuid.UUID            `json:"id"`
	EntryID          uuid.UUID            `json:"entry_id"`
	ManifestNumber   string               `json:"manifest_number"`
	ItemID           *uuid.UUID           `json:"item_id,omitempty"`
	ItemOrderIndex   int                  `json:"item_order_index"`
	ItemDescription  string               `json:"item_description"`
	DispatchRecordID uuid.UUID            `json:"dispatch_record_id"`
	Kind             enums.FollowUpKind   `json:"kind"`
	Quantity         int                  `json:"quantity"`
	TargetName       string               `json:"target_name"`
	TargetPhone      string               `json:"target_phone,omitempty"`
	Region           string               `json:"region,omitempty"`
	Message          string               `json:"message"`
	Status           enums.FollowUpStatus `json:"status"`
	RequestedBy      string               `json:"requested_by"`
	RequestedAt      time.Time            `json:"requested_at"`
	ResolvedBy       *string              `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time           `json:"resolved_at,omitempty"`
	ResolutionNote   *string              `json:"resolution_note,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

// NewFollowUpDTO maps a stored follow-up to its API view.
func NewFollowUpDTO(f *models.PendingFollowUp) *FollowUpDTO {
	if f == nil {
		return nil
	}
	return &FollowUpDTO{
		ID:               f.ID,
		EntryID:          f.EntryID,
		ManifestNumber:   f.ManifestNumber,
		ItemID:           f.ItemID,
		ItemOrderIndex:   f.ItemOrderIndex,
		ItemDescription:  f.ItemDescription,
		DispatchRecordID: f.DispatchRecordID,
		Kind:             f.Kind,
		Quantity:         f.Quantity,
		TargetName:       f.TargetName,
		TargetPhone:      f.TargetPhone,
		Region:           f.Region,
		Message:          f.Message,
		Status:           f.Status,
		RequestedBy:      f.RequestedBy,
		RequestedAt:      f.RequestedAt,
		ResolvedBy:       f.ResolvedBy,
		ResolvedAt:       f.ResolvedAt,
		ResolutionNote:   f.ResolutionNote,
		CreatedAt:        f.CreatedAt,
	}
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires follow-up dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "follow-up repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", params.Status)
	}
	if params.Kind != "" && !params.Kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid kind %q", params.Kind)
	}
	query := listQuery{
		Status:  params.Status,
		EntryID: params.EntryID,
		Kind:    params.Kind,
		Limit:   params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list follow-ups")
	}
	items := make([]FollowUpDTO, 0, len(rows))
	for idx := range rows {
		items = append(items, *NewFollowUpDTO(&rows[idx]))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*FollowUpDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "follow-up id required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapErr(err, "load follow-up")
	}
	return NewFollowUpDTO(row), nil
}

// Resolve moves an open follow-up to resolved. Resolving twice is a state
// conflict.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*FollowUpDTO, error) {
	operator := strings.TrimSpace(input.OperatorID)
	if operator == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator identity required")
	}
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "follow-up id required")
	}
	res := resolution{By: operator, At: s.now().UTC()}
	if note := strings.TrimSpace(input.Note); note != "" {
		res.Note = &note
	}

	updated, err := s.repo.Resolve(ctx, input.ID, res)
	if err != nil {
		return nil, mapErr(err, "resolve follow-up")
	}
	row, err := s.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, mapErr(err, "load follow-up")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "follow-up is already resolved").
			WithDetails(map[string]any{"status": row.Status, "resolved_by": row.ResolvedBy})
	}

	logCtx := s.logg.WithFields(s.logg.WithManifestID(ctx, row.EntryID.String()), map[string]any{
		"followup_id": row.ID.String(),
		"kind":        row.Kind,
	})
	s.logg.Info(logCtx, "followup.resolved")
	return NewFollowUpDTO(row), nil
}

func mapErr(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "follow-up not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
