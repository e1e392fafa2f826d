package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/branchledger/internal/followups"
	"github.com/angelmondragon/branchledger/internal/manifests"
)

type stubManifestService struct {
	create      func(context.Context, manifests.CreateInput) (*manifests.EntryDTO, error)
	get         func(context.Context, uuid.UUID) (*manifests.EntryDTO, error)
	getByNumber func(context.Context, string) (*manifests.EntryDTO, error)
	list        func(context.Context, manifests.ListParams) (*manifests.ListResult, error)
	addItem     func(context.Context, manifests.AddItemInput) (*manifests.EntryDTO, error)
	updateItem  func(context.Context, manifests.UpdateItemInput) (*manifests.EntryDTO, error)
	removeItem  func(context.Context, manifests.RemoveItemInput) (*manifests.EntryDTO, error)
	dispatch    func(context.Context, manifests.DispatchInput) (*manifests.DispatchResult, error)
	link        func(context.Context, manifests.LinkVehicleInput) (*manifests.EntryDTO, error)
	totals      func(context.Context, uuid.UUID) (*manifests.Totals, error)
	audit       func(context.Context, uuid.UUID) (*manifests.AuditReport, error)
	delete      func(context.Context, manifests.DeleteInput) error
}

var _ manifests.Service = (*stubManifestService)(nil)

func (s *stubManifestService) Create(ctx context.Context, in manifests.CreateInput) (*manifests.EntryDTO, error) {
	return s.create(ctx, in)
}

func (s *stubManifestService) Get(ctx context.Context, id uuid.UUID) (*manifests.EntryDTO, error) {
	return s.get(ctx, id)
}

func (s *stubManifestService) GetByNumber(ctx context.Context, number string) (*manifests.EntryDTO, error) {
	return s.getByNumber(ctx, number)
}

func (s *stubManifestService) List(ctx context.Context, params manifests.ListParams) (*manifests.ListResult, error) {
	return s.list(ctx, params)
}

func (s *stubManifestService) AddItem(ctx context.Context, in manifests.AddItemInput) (*manifests.EntryDTO, error) {
	return s.addItem(ctx, in)
}

func (s *stubManifestService) UpdateItem(ctx context.Context, in manifests.UpdateItemInput) (*manifests.EntryDTO, error) {
	return s.updateItem(ctx, in)
}

func (s *stubManifestService) RemoveItem(ctx context.Context, in manifests.RemoveItemInput) (*manifests.EntryDTO, error) {
	return s.removeItem(ctx, in)
}

func (s *stubManifestService) Dispatch(ctx context.Context, in manifests.DispatchInput) (*manifests.DispatchResult, error) {
	return s.dispatch(ctx, in)
}

func (s *stubManifestService) LinkVehicle(ctx context.Context, in manifests.LinkVehicleInput) (*manifests.EntryDTO, error) {
	return s.link(ctx, in)
}

func (s *stubManifestService) Totals(ctx context.Context, id uuid.UUID) (*manifests.Totals, error) {
	return s.totals(ctx, id)
}

func (s *stubManifestService) Audit(ctx context.Context, id uuid.UUID) (*manifests.AuditReport, error) {
	return s.audit(ctx, id)
}

func (s *stubManifestService) Delete(ctx context.Context, in manifests.DeleteInput) error {
	return s.delete(ctx, in)
}

type stubFollowUpService struct {
	list    func(context.Context, followups.ListParams) (*followups.ListResult, error)
	get     func(context.Context, uuid.UUID) (*followups.FollowUpDTO, error)
	resolve func(context.Context, followups.ResolveInput) (*followups.FollowUpDTO, error)
}

var _ followups.Service = (*stubFollowUpService)(nil)

func (s *stubFollowUpService) List(ctx context.Context, params followups.ListParams) (*followups.ListResult, error) {
	return s.list(ctx, params)
}

func (s *stubFollowUpService) Get(ctx context.Context, id uuid.UUID) (*followups.FollowUpDTO, error) {
	return s.get(ctx, id)
}

func (s *stubFollowUpService) Resolve(ctx context.Context, in followups.ResolveInput) (*followups.FollowUpDTO, error) {
	return s.resolve(ctx, in)
}
