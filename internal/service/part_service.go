package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/cnc-service/internal/model"
)

type PartService struct {
	parts PartRepository
	now   Clock
}

type CreatePartInput struct {
	Name string  `json:"name" validate:"required,max=200"`
	Cost float64 `json:"cost" validate:"gte=0"`

	Principal model.Principal `json:"-"`
}

func NewPartService(parts PartRepository) *PartService {
	return &PartService{parts: parts, now: time.Now}
}

func (s *PartService) List(ctx context.Context, search string) ([]model.Part, error) {
	parts, err := s.parts.List(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, storageErr(err)
	}
	return parts, nil
}

func (s *PartService) Get(ctx context.Context, id uuid.UUID) (*model.Part, error) {
	part, err := s.parts.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return part, nil
}

func (s *PartService) Create(ctx context.Context, input CreatePartInput) (*model.Part, error) {
	if !input.Principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	input.Name = strings.TrimSpace(input.Name)
	errs := fieldErrors{}
	checkStruct(input, errs)
	if err := errs.err(); err != nil {
		return nil, err
	}

	part, err := s.parts.Create(ctx, model.Part{
		ID:        uuid.New(),
		Name:      input.Name,
		Cost:      input.Cost,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return part, nil
}
