package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// sessionColumns must match the scan order in scanSession.
const sessionColumns = `id, user_id, refresh_token_hash, expires_at, created_at, last_seen_at,
	ip_address, device_type, platform, client_name, client_version, device_name`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var (
		sess                               domain.Session
		refreshTokenHash                   sql.NullString
		expiresAt, createdAt, lastSeenAt   string
		ipAddress, deviceType, platform    sql.NullString
		clientName, clientVersion, devName sql.NullString
	)
	err := scanner.Scan(
		&sess.ID, &sess.UserID, &refreshTokenHash, &expiresAt, &createdAt, &lastSeenAt,
		&ipAddress, &deviceType, &platform, &clientName, &clientVersion, &devName,
	)
	if err != nil {
		return nil, err
	}

	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.LastSeenAt, err = parseTime(lastSeenAt); err != nil {
		return nil, err
	}
	sess.RefreshTokenHash = refreshTokenHash.String
	sess.IPAddress = ipAddress.String
	sess.DeviceType = deviceType.String
	sess.Platform = platform.String
	sess.ClientName = clientName.String
	sess.ClientVersion = clientVersion.String
	sess.DeviceName = devName.String
	return &sess, nil
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, expires_at, created_at, last_seen_at,
			ip_address, device_type, platform, client_name, client_version, device_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, nullString(sess.RefreshTokenHash),
		formatTime(sess.ExpiresAt), formatTime(sess.CreatedAt), formatTime(sess.LastSeenAt),
		nullString(sess.IPAddress), nullString(sess.DeviceType), nullString(sess.Platform),
		nullString(sess.ClientName), nullString(sess.ClientVersion), nullString(sess.DeviceName),
	)
	switch {
	case isUniqueViolation(err):
		return store.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return store.ErrUserNotFound
	}
	return err
}

// GetSession retrieves a session by ID. Expired sessions are reported as
// store.ErrSessionExpired.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
}

// GetSessionByRefreshToken finds the session holding a refresh token hash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	return s.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, tokenHash)
}

func (s *Store) getSession(ctx context.Context, query, arg string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, arg))
	if noRows(err) {
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

// UpdateSession performs a full row update.
func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			refresh_token_hash = ?, expires_at = ?, last_seen_at = ?, ip_address = ?,
			device_type = ?, platform = ?, client_name = ?, client_version = ?, device_name = ?
		WHERE id = ?`,
		nullString(sess.RefreshTokenHash), formatTime(sess.ExpiresAt), formatTime(sess.LastSeenAt),
		nullString(sess.IPAddress), nullString(sess.DeviceType), nullString(sess.Platform),
		nullString(sess.ClientName), nullString(sess.ClientVersion), nullString(sess.DeviceName),
		sess.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	return affected(res, store.ErrSessionNotFound)
}

// DeleteSession removes a session. Missing sessions are ignored.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// ListUserSessions returns the unexpired sessions of a user, oldest first.
func (s *Store) ListUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND expires_at > ?
		ORDER BY created_at ASC, id ASC`, userID, formatTime(time.Now()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*domain.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteUserSessions removes every session of a user.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	return s.deleteCount(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	n, err := s.deleteCount(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(time.Now()))
	if n > 0 {
		s.logger.Info("removed expired sessions", "count", n)
	}
	return n, err
}

func (s *Store) deleteCount(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
