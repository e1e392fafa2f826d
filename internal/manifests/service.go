package manifests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/branchledger/internal/allocation"
	"github.com/angelmondragon/branchledger/internal/sequence"
	"github.com/angelmondragon/branchledger/pkg/db"
	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/outbox"
	"github.com/angelmondragon/branchledger/pkg/outbox/payloads"
	"github.com/angelmondragon/branchledger/pkg/pagination"
	"github.com/angelmondragon/branchledger/pkg/types"
)

const (
	opCreate   = "create"
	opItems    = "items"
	opDispatch = "dispatch"
	opLink     = "link"

	numberConstraint = "manifest_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (uuid.UUID, error)
}

// Recorder receives ledger metrics.
type Recorder interface {
	ObserveDispatch(destination string, quantity int)
	IncConflict(operation string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveDispatch(string, int) {}
func (nopRecorder) IncConflict(string)          {}

// Service exposes the manifest lifecycle and the allocation ledger.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*EntryDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*EntryDTO, error)
	GetByNumber(ctx context.Context, number string) (*EntryDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	AddItem(ctx context.Context, input AddItemInput) (*EntryDTO, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*EntryDTO, error)
	RemoveItem(ctx context.Context, input RemoveItemInput) (*EntryDTO, error)
	Dispatch(ctx context.Context, input DispatchInput) (*DispatchResult, error)
	LinkVehicle(ctx context.Context, input LinkVehicleInput) (*EntryDTO, error)
	Totals(ctx context.Context, id uuid.UUID) (*Totals, error)
	Audit(ctx context.Context, id uuid.UUID) (*AuditReport, error)
	Delete(ctx context.Context, input DeleteInput) error
}

// ServiceParams wires the manifest service.
type ServiceParams struct {
	Repository            Repository
	Tx                    txRunner
	Outbox                outboxEmitter
	Sequence              sequence.Generator
	Metrics               Recorder
	Logger                *logger.Logger
	AllowOutgoingDispatch bool
	Clock                 func() time.Time
}

type service struct {
	repo          Repository
	tx            txRunner
	outbox        outboxEmitter
	sequence      sequence.Generator
	metrics       Recorder
	logg          *logger.Logger
	allowOutgoing bool
	now           func() time.Time
}

// NewService validates dependencies and builds the manifest service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "manifest repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.Sequence == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sequence generator required")
	}
	svc := &service{
		repo:          params.Repository,
		tx:            params.Tx,
		outbox:        params.Outbox,
		sequence:      params.Sequence,
		metrics:       params.Metrics,
		logg:          params.Logger,
		allowOutgoing: params.AllowOutgoingDispatch,
		now:           params.Clock,
	}
	if svc.metrics == nil {
		svc.metrics = nopRecorder{}
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*EntryDTO, error) {
	operator, err := requireOperator(input.Operator)
	if err != nil {
		return nil, err
	}
	if !input.Direction.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid direction %q", input.Direction)
	}
	if input.OriginBranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin branch id required")
	}
	branchName := strings.TrimSpace(input.OriginBranchName)
	if branchName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin branch name required")
	}
	items, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	year := s.now().UTC().Year()
	for attempt := 0; attempt < 2; attempt++ {
		issued, err := s.sequence.Next(ctx, year)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue manifest number")
		}
		entry := &models.BranchEntry{
			ID:               uuid.New(),
			Direction:        input.Direction,
			OriginBranchID:   input.OriginBranchID,
			OriginBranchName: branchName,
			ManifestNumber:   issued.Number,
			Notes:            strings.TrimSpace(input.Notes),
			Status:           enums.EntryStatusPending,
			Items:            items.Clone(),
			Version:          1,
			CreatedBy:        operator.ID,
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
				return err
			}
			_, err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventManifestCreated,
				AggregateType: enums.AggregateBranchEntry,
				AggregateID:   entry.ID,
				Actor:         actorRef(operator),
				Data: payloads.ManifestCreatedEvent{
					EntryID:        entry.ID,
					ManifestNumber: entry.ManifestNumber,
					FallbackNumber: issued.Fallback,
					Direction:      entry.Direction,
					OriginBranchID: entry.OriginBranchID,
					ItemCount:      len(entry.Items),
					CreatedBy:      operator.ID,
				},
			})
			return err
		})
		if err == nil {
			logCtx := s.logg.WithFields(s.logg.WithManifestID(ctx, entry.ID.String()), map[string]any{
				"manifest_number": entry.ManifestNumber,
				"direction":       entry.Direction,
				"item_count":      len(entry.Items),
			})
			s.logg.Info(logCtx, "manifest.created")
			return NewEntryDTO(entry), nil
		}
		if !db.IsUniqueViolation(err, numberConstraint) {
			return nil, s.mapErr(err, "create manifest")
		}
		s.metrics.IncConflict(opCreate)
		s.logg.Warn(s.logg.WithField(ctx, "manifest_number", issued.Number), "manifest.number.collision")
	}
	return nil, pkgerrors.New(pkgerrors.CodeConcurrency, "manifest number was taken concurrently; retry the request")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*EntryDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manifest id required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "load manifest")
	}
	return NewEntryDTO(entry), nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*EntryDTO, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manifest number required")
	}
	entry, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, s.mapErr(err, "load manifest")
	}
	return NewEntryDTO(entry), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Direction != "" && !params.Direction.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid direction %q", params.Direction)
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", params.Status)
	}
	if params.Year < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "year must be positive")
	}
	query := listQuery{
		Direction:      params.Direction,
		Status:         params.Status,
		OriginBranchID: params.OriginBranchID,
		Year:           params.Year,
		Limit:          params.Limit,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list manifests")
	}
	items := make([]EntryDTO, 0, len(rows))
	for idx := range rows {
		items = append(items, *NewEntryDTO(&rows[idx]))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Delete(ctx context.Context, input DeleteInput) error {
	operator, err := requireOperator(input.Operator)
	if err != nil {
		return err
	}
	if !operator.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only administrators may delete manifests")
	}
	if input.EntryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "manifest id required")
	}
	var number string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		entry, err := repo.FindByIDForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		number = entry.ManifestNumber
		if err := repo.Delete(ctx, entry.ID); err != nil {
			return err
		}
		_, err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventManifestDeleted,
			AggregateType: enums.AggregateBranchEntry,
			AggregateID:   entry.ID,
			Actor:         actorRef(operator),
			Data: payloads.ManifestDeletedEvent{
				EntryID:        entry.ID,
				ManifestNumber: entry.ManifestNumber,
				DeletedBy:      operator.ID,
				DeletedAt:      s.now().UTC(),
			},
		})
		return err
	})
	if err != nil {
		return s.mapErr(err, "delete manifest")
	}
	logCtx := s.logg.WithFields(s.logg.WithManifestID(ctx, input.EntryID.String()), map[string]any{
		"manifest_number": number,
	})
	s.logg.Info(logCtx, "manifest.deleted")
	return nil
}

// mutate loads the entry under lock, checks the caller's expected version,
// applies fn and saves with a version check, all in one transaction.
func (s *service) mutate(ctx context.Context, op string, entryID uuid.UUID, expected *int, fn func(tx *gorm.DB, entry *models.BranchEntry) error) (*models.BranchEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manifest id required")
	}
	var saved *models.BranchEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		entry, err := repo.FindByIDForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if expected != nil && *expected != entry.Version {
			return pkgerrors.New(pkgerrors.CodeConcurrency, "manifest version does not match").
				WithDetails(map[string]any{"expected_version": *expected, "current_version": entry.Version})
		}
		version := entry.Version
		if err := fn(tx, entry); err != nil {
			return err
		}
		if err := repo.Save(ctx, entry, version); err != nil {
			return err
		}
		saved = entry
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConcurrency) {
			s.metrics.IncConflict(op)
			s.logg.Warn(s.logg.WithFields(s.logg.WithManifestID(ctx, entryID.String()), map[string]any{
				"operation": op,
			}), "manifest.version_conflict")
		}
		return nil, s.mapErr(err, op+" manifest")
	}
	return saved, nil
}

func (s *service) mapErr(err error, action string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "manifest not found")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action+" interrupted")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func requireOperator(op Operator) (Operator, error) {
	op.ID = strings.TrimSpace(op.ID)
	if op.ID == "" {
		return Operator{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator identity required")
	}
	if op.Role == "" {
		op.Role = enums.OperatorRoleClerk
	}
	return op, nil
}

func actorRef(op Operator) *outbox.ActorRef {
	return &outbox.ActorRef{OperatorID: op.ID, Role: string(op.Role)}
}

// buildItems validates new lines, assigns order indexes to lines without one
// and rejects duplicates.
func buildItems(inputs []ItemInput) (types.ManifestItems, error) {
	items := make(types.ManifestItems, 0, len(inputs))
	seen := make(map[int]bool, len(inputs))
	next := 1
	for _, in := range inputs {
		if in.OrderIndex > 0 {
			if seen[in.OrderIndex] {
				return nil, duplicateIndex(in.OrderIndex)
			}
			seen[in.OrderIndex] = true
			if in.OrderIndex >= next {
				next = in.OrderIndex + 1
			}
		}
	}
	for idx, in := range inputs {
		if in.OrderIndex == 0 {
			in.OrderIndex = next
			seen[next] = true
			next++
		}
		item, err := allocation.NewItem(in.toItem())
		if err != nil {
			return nil, withItemPosition(err, idx)
		}
		items = append(items, item)
	}
	return items, nil
}

func duplicateIndex(orderIndex int) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "order index %d is already used", orderIndex).
		WithDetails(map[string]any{"order_index": orderIndex})
}

func withItemPosition(err error, position int) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	return pkgerrors.New(typed.Code(), fmt.Sprintf("items[%d]: %s", position, typed.Message())).WithDetails(typed.Details())
}
