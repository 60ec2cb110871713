// Package service exposes checklist version lookups to the applicant
// flow and the HTTP layer.
package service

import (
	"context"
	"errors"

	"admitdesk/internal/checklist/models"
	"admitdesk/pkg/apperrors"
)

type Store interface {
	Active(ctx context.Context) (*models.Version, error)
	Get(ctx context.Context, id int64) (*models.Version, error)
}

type Service struct {
	store Store
}

func New(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	return &Service{store: store}, nil
}

// Active returns the currently published checklist version with its
// items.
func (s *Service) Active(ctx context.Context) (*models.Version, error) {
	v, err := s.store.Active(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "no active checklist version")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "load active checklist")
	}
	return v, nil
}

// Resolve picks the checklist version a new dossier should pin: the
// requested one when given, otherwise the active version.
func (s *Service) Resolve(ctx context.Context, requestedID int64) (*models.Version, error) {
	if requestedID == 0 {
		return s.Active(ctx)
	}
	v, err := s.store.Get(ctx, requestedID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeBadRequest, "unknown checklist version")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "load checklist version")
	}
	return v, nil
}
