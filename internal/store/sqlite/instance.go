package sqlite

import (
	"context"
	"database/sql"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/store"
)

// GetInstance returns the server record.
func (s *Store) GetInstance(ctx context.Context) (*domain.Instance, error) {
	var (
		inst                 domain.Instance
		localURL, remoteURL  sql.NullString
		rootUserID           sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, version, local_url, remote_url, root_user_id,
			open_registration, created_at, updated_at
		FROM instance LIMIT 1`).Scan(
		&inst.ID, &inst.Name, &inst.Version, &localURL, &remoteURL, &rootUserID,
		&inst.OpenRegistration, &createdAt, &updatedAt,
	)
	if noRows(err) {
		return nil, store.ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}

	inst.LocalURL = localURL.String
	inst.RemoteURL = remoteURL.String
	inst.RootUserID = rootUserID.String
	if inst.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inst.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &inst, nil
}

// SaveInstance creates or replaces the server record.
func (s *Store) SaveInstance(ctx context.Context, inst *domain.Instance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM instance WHERE id <> ?`, inst.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO instance (
			id, name, version, local_url, remote_url, root_user_id,
			open_registration, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			local_url = excluded.local_url,
			remote_url = excluded.remote_url,
			root_user_id = excluded.root_user_id,
			open_registration = excluded.open_registration,
			updated_at = excluded.updated_at`,
		inst.ID, inst.Name, inst.Version,
		nullString(inst.LocalURL), nullString(inst.RemoteURL), nullString(inst.RootUserID),
		inst.OpenRegistration, formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}
