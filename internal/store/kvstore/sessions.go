package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// CreateSession stores a new auth session.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	return s.sessions.Create(ctx, session.ID, session)
}

// GetSession returns a session by id. Expired sessions are reported as
// store.ErrSessionExpired.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, store.ErrSessionExpired
	}
	return sess, nil
}

// GetSessionByRefreshToken finds the session holding a refresh token hash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	sess, err := s.sessions.GetBy(ctx, "refresh", tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, store.ErrSessionExpired
	}
	return sess, nil
}

// UpdateSession replaces a stored session.
func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	err := s.sessions.Update(ctx, session.ID, session)
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrSessionNotFound
	}
	return err
}

// DeleteSession removes a session. Missing sessions are ignored.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// ListUserSessions returns the unexpired sessions of a user.
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	all, err := s.sessions.ListBy(ctx, "user", userID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, 0, len(all))
	for _, sess := range all {
		if !sess.IsExpired() {
			out = append(out, sess)
		}
	}
	return out, nil
}

// DeleteUserSessions removes every session of a user and returns how many
// were removed.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	all, err := s.sessions.ListBy(ctx, "user", userID)
	if err != nil {
		return 0, err
	}
	for _, sess := range all {
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	now := time.Now()
	var expired []string
	for sess, err := range s.sessions.List(ctx) {
		if err != nil {
			return 0, err
		}
		if now.After(sess.ExpiresAt) {
			expired = append(expired, sess.ID)
		}
	}
	for _, id := range expired {
		if err := s.sessions.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	if len(expired) > 0 {
		s.logger.Info("removed expired sessions", "count", len(expired))
	}
	return len(expired), nil
}
