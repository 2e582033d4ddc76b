package store

import (
	"context"
	"database/sql"

	"github.com/drivemirror/drivemirror/internal/types"
)

const grantColumns = "id, entry_id, grantee_type, role, email_address, domain, discoverable"

// GetGrant fetches one grant by primary key. Returns (nil, nil) when the
// grant does not exist.
func (s *Store) GetGrant(ctx context.Context, id string) (*types.AccessGrant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM grants WHERE id = ?
	`, id)
	grant, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// ListGrantIDs returns the IDs of all persisted grants
func (s *Store) ListGrantIDs(ctx context.Context) (ids []string, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM grants`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// GrantRef is a grant's identity pair, used by the pruner
type GrantRef struct {
	ID      string
	EntryID string
}

// ListGrantRefs returns the (id, entryId) pair of every persisted grant
func (s *Store) ListGrantRefs(ctx context.Context) (refs []GrantRef, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, entry_id FROM grants`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var ref GrantRef
		if err := rows.Scan(&ref.ID, &ref.EntryID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// ListGrantsByEntry returns all grants scoped to one entry
func (s *Store) ListGrantsByEntry(ctx context.Context, entryID string) (grants []types.AccessGrant, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM grants WHERE entry_id = ?
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// CountGrants returns the number of persisted grants
func (s *Store) CountGrants(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grants`).Scan(&n)
	return n, err
}

// UpsertGrant writes a grant inside the given transaction. The referenced
// entry must already be persisted or the foreign key constraint rejects
// the write.
func (s *Store) UpsertGrant(ctx context.Context, tx *sql.Tx, grant types.AccessGrant) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO grants (id, entry_id, grantee_type, role, email_address, domain, discoverable)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entry_id = excluded.entry_id,
			grantee_type = excluded.grantee_type,
			role = excluded.role,
			email_address = excluded.email_address,
			domain = excluded.domain,
			discoverable = excluded.discoverable
	`, grant.ID, grant.EntryID, string(grant.Type), string(grant.Role),
		nullString(grant.EmailAddress), nullString(grant.Domain), boolToInt(grant.Discoverable))
	return err
}

// DeleteGrants removes the given grants in one transaction
func (s *Store) DeleteGrants(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM grants WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteGrantsWithoutEntry removes grants whose entry no longer exists.
// The cascade constraint should make this a no-op; it exists as a sweep
// against stale cross-references. Returns the number of grants removed.
func (s *Store) DeleteGrantsWithoutEntry(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM grants WHERE entry_id NOT IN (SELECT id FROM entries)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanGrant(scanner interface {
	Scan(dest ...interface{}) error
}) (types.AccessGrant, error) {
	var grant types.AccessGrant
	var granteeType, role string
	var email, domain sql.NullString
	var discoverable int

	err := scanner.Scan(&grant.ID, &grant.EntryID, &granteeType, &role, &email, &domain, &discoverable)
	if err != nil {
		return types.AccessGrant{}, err
	}

	grant.Type = types.GranteeType(granteeType)
	grant.Role = types.GrantRole(role)
	grant.EmailAddress = email.String
	grant.Domain = domain.String
	grant.Discoverable = discoverable != 0
	return grant, nil
}
