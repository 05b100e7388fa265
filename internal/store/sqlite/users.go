package sqlite

import (
	"context"
	"database/sql"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, deleted_at, email, password_hash,
	is_root, role, status, approved_by, approved_at, display_name, last_login_at,
	can_download, can_upload`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u                         domain.User
		createdAt, updatedAt      string
		deletedAt, approvedAt     sql.NullString
		lastLoginAt, passwordHash sql.NullString
		approvedBy                sql.NullString
		role, status              string
	)
	err := scanner.Scan(
		&u.ID, &createdAt, &updatedAt, &deletedAt, &u.Email, &passwordHash,
		&u.IsRoot, &role, &status, &approvedBy, &approvedAt, &u.DisplayName, &lastLoginAt,
		&u.Permissions.CanDownload, &u.Permissions.CanUpload,
	)
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	u.PasswordHash = passwordHash.String
	u.ApprovedBy = approvedBy.String
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if u.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	if u.ApprovedAt, err = parseNullableTime(approvedAt); err != nil {
		return nil, err
	}
	if u.LastLoginAt, err = parseNullableTime(lastLoginAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user. Returns store.ErrEmailExists when the id or
// normalized email is taken.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, deleted_at, email, email_normalized, password_hash,
			is_root, role, status, approved_by, approved_at, display_name, last_login_at,
			can_download, can_upload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, formatTime(u.CreatedAt), formatTime(u.UpdatedAt), nullTimeString(u.DeletedAt),
		u.Email, domain.NormalizeEmail(u.Email), nullString(u.PasswordHash),
		u.IsRoot, string(u.Role), string(u.Status), nullString(u.ApprovedBy), nullTimeString(u.ApprovedAt),
		u.DisplayName, nullTimeString(u.LastLoginAt),
		u.Permissions.CanDownload, u.Permissions.CanUpload,
	)
	if isUniqueViolation(err) {
		return store.ErrEmailExists
	}
	return err
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if noRows(err) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_normalized = ?`, domain.NormalizeEmail(email)))
	if noRows(err) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// UpdateUser performs a full row update.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			updated_at = ?, deleted_at = ?, email = ?, email_normalized = ?, password_hash = ?,
			is_root = ?, role = ?, status = ?, approved_by = ?, approved_at = ?,
			display_name = ?, last_login_at = ?, can_download = ?, can_upload = ?
		WHERE id = ?`,
		formatTime(u.UpdatedAt), nullTimeString(u.DeletedAt),
		u.Email, domain.NormalizeEmail(u.Email), nullString(u.PasswordHash),
		u.IsRoot, string(u.Role), string(u.Status), nullString(u.ApprovedBy), nullTimeString(u.ApprovedAt),
		u.DisplayName, nullTimeString(u.LastLoginAt), u.Permissions.CanDownload, u.Permissions.CanUpload,
		u.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrEmailExists
	}
	if err != nil {
		return err
	}
	return affected(res, store.ErrUserNotFound)
}

// DeleteUser removes a user with their sessions, progress and preferences.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM sessions WHERE user_id = ?`,
		`DELETE FROM reading_progress WHERE user_id = ?`,
		`DELETE FROM reader_preferences WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := affected(res, store.ErrUserNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
