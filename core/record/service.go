package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound covers both a missing record and a record the viewer may not
// see; the two are indistinguishable so existence is never leaked.
var ErrNotFound = errors.New("record not found")

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		QueryRecordsByKind(ctx context.Context, kind Kind) ([]Record, error)
		GetRecordByID(ctx context.Context, id string) (Record, error)
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		DeleteRecord(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create makes a new record of the given kind owned by the creator.
// OwnerID is always the creator's id: a record with neither an assigned role
// nor an assigned user therefore stays visible to whoever wrote it, which
// forecloses ghost records at the only place they could be minted.
func (svc *Service) Create(ctx context.Context, viewer Viewer, kind Kind, nr NewRecord) (Record, error) {
	if err := Authorize(viewer.Role, ActionCreate, kind); err != nil {
		return Record{}, err
	}

	now := time.Now().UTC()
	rec := Record{
		ID:             uuid.New().String(),
		Kind:           kind,
		Title:          nr.Title,
		Description:    nr.Description,
		OwnerID:        viewer.ID,
		AssignedRole:   nr.AssignedRole,
		AssignedUserID: nr.AssignedUserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateRecord(ctx, rec)
}

// List returns the records of the given kind visible to viewer. The viewer is
// derived from the validated token upstream; no visibility parameter reaches
// this call from the client.
func (svc *Service) List(ctx context.Context, viewer Viewer, kind Kind) ([]Record, error) {
	if err := Authorize(viewer.Role, ActionList, kind); err != nil {
		return nil, err
	}
	records, err := svc.repo.QueryRecordsByKind(ctx, kind)
	if err != nil {
		return nil, err
	}
	return FilterVisible(records, viewer), nil
}

func (svc *Service) Get(ctx context.Context, viewer Viewer, kind Kind, id string) (Record, error) {
	if err := Authorize(viewer.Role, ActionRead, kind); err != nil {
		return Record{}, err
	}
	rec, err := svc.repo.GetRecordByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Kind != kind || !Visible(rec, viewer) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (svc *Service) Update(ctx context.Context, viewer Viewer, kind Kind, id string, nr NewRecord) (Record, error) {
	if err := Authorize(viewer.Role, ActionUpdate, kind); err != nil {
		return Record{}, err
	}
	rec, err := svc.repo.GetRecordByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Kind != kind || !Visible(rec, viewer) {
		return Record{}, ErrNotFound
	}

	rec.Title = nr.Title
	rec.Description = nr.Description
	rec.AssignedRole = nr.AssignedRole
	rec.AssignedUserID = nr.AssignedUserID
	rec.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRecord(ctx, rec)
}

func (svc *Service) Delete(ctx context.Context, viewer Viewer, kind Kind, id string) error {
	if err := Authorize(viewer.Role, ActionDelete, kind); err != nil {
		return err
	}
	rec, err := svc.repo.GetRecordByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Kind != kind || !Visible(rec, viewer) {
		return ErrNotFound
	}
	return svc.repo.DeleteRecord(ctx, id)
}
