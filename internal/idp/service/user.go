package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/consign/internal/idp/domain"
	"github.com/aussiebroadwan/consign/internal/idp/store"
	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/idx"
)

type UserService struct {
	Store store.Store
	Clock clock.Clock
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}

// CreateUser provisions an account. Role defaults to "clerk".
func (s *UserService) CreateUser(ctx context.Context, email, name, role string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if role = strings.TrimSpace(role); role == "" {
		role = "clerk"
	}

	now := s.Clock.Now()
	u := domain.User{
		ID:        idx.NewAt(now).String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// SeedUsers creates the accounts listed in list, formatted as
// "email|name|role" entries separated by ';'. Existing accounts are left
// alone. It returns how many were created.
func (s *UserService) SeedUsers(ctx context.Context, list string) (int, error) {
	created := 0
	for entry := range strings.SplitSeq(list, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, "|")
		for len(parts) < 3 {
			parts = append(parts, "")
		}

		_, err := s.CreateUser(ctx, parts[0], parts[1], parts[2])
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			continue
		case err != nil:
			return created, fmt.Errorf("seed %q: %w", parts[0], err)
		}
		created++
	}
	return created, nil
}
