package kvstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// CreateUser stores a new user. The email must be unused.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.users.Create(ctx, user.ID, user)
	if errors.Is(err, store.ErrAlreadyExists) {
		return store.ErrEmailExists
	}
	return err
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// GetUserByEmail looks a user up by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetBy(ctx, "email", email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// UpdateUser replaces a stored user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	err := s.users.Update(ctx, user.ID, user)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.ErrUserNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return store.ErrEmailExists
	}
	return err
}

// DeleteUser removes a user together with their sessions, progress and
// preferences.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if _, err := s.DeleteUserSessions(ctx, id); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if _, err := s.DeleteUserProgress(ctx, id); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if err := s.prefs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return s.users.Delete(ctx, id)
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	for u, err := range s.users.List(ctx) {
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	slices.SortStableFunc(users, func(a, b *domain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return users, nil
}
