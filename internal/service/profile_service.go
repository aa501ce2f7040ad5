package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nurpe/cnc-service/internal/model"
)

type ProfileService struct {
	profiles ProfileRepository
	now      Clock
}

func NewProfileService(profiles ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles, now: time.Now}
}

// Sync mirrors the authenticated caller into the profiles table.
func (s *ProfileService) Sync(ctx context.Context, principal model.Principal) error {
	if strings.TrimSpace(principal.UserID) == "" {
		return ErrInvalidInput
	}
	role, err := model.ParseRole(string(principal.Role))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	name := strings.TrimSpace(principal.DisplayName)
	if name == "" {
		name = principal.Email
	}
	return storageErr(s.profiles.Upsert(ctx, model.Profile{
		ID:        principal.UserID,
		Email:     principal.Email,
		FullName:  name,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}))
}

func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	profile, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return profile, nil
}

// Customers lists client profiles. Admins see every client, a client only
// sees itself.
func (s *ProfileService) Customers(ctx context.Context, principal model.Principal, search string) ([]model.Profile, error) {
	var customers []model.Profile
	switch {
	case principal.IsAdmin():
		all, err := s.profiles.ListByRole(ctx, model.RoleClient)
		if err != nil {
			return nil, storageErr(err)
		}
		customers = all
	case principal.IsClient():
		self, err := s.profiles.Get(ctx, principal.UserID)
		switch storageErr(err) {
		case nil:
			customers = []model.Profile{*self}
		case ErrNotFound:
			customers = []model.Profile{}
		default:
			return nil, storageErr(err)
		}
	default:
		return nil, ErrPermissionDenied
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return customers, nil
	}
	out := make([]model.Profile, 0, len(customers))
	for _, p := range customers {
		if strings.Contains(strings.ToLower(p.FullName+"\x00"+p.Email), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}
