package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/drivemirror/drivemirror/internal/types"
)

const entryColumns = "id, name, mime_type, parent_ids, size_bytes, created_at, modified_at, trashed"

// GetEntry fetches one entry by primary key. Returns (nil, nil) when the
// entry does not exist.
func (s *Store) GetEntry(ctx context.Context, id string) (*types.CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries WHERE id = ?
	`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListEntryIDs returns the IDs of all persisted entries
func (s *Store) ListEntryIDs(ctx context.Context) (ids []string, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entries`)
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

// CountEntries returns the number of persisted entries
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// UpsertEntry writes an entry inside the given transaction. The write is
// idempotent: re-applying the same entry converges to the same row.
func (s *Store) UpsertEntry(ctx context.Context, tx *sql.Tx, entry types.CatalogEntry) error {
	parents, err := marshalParents(entry.Parents)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (id, name, mime_type, parent_ids, size_bytes, created_at, modified_at, is_folder, trashed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mime_type = excluded.mime_type,
			parent_ids = excluded.parent_ids,
			size_bytes = excluded.size_bytes,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			is_folder = excluded.is_folder,
			trashed = excluded.trashed
	`, entry.ID, entry.Name, nullString(entry.MimeType), parents, nullInt64(entry.SizeBytes),
		nullString(entry.CreatedTime), nullString(entry.ModifiedTime), boolToInt(entry.IsFolder()), boolToInt(entry.Trashed))
	return err
}

// DeleteEntries removes the given entries in one transaction. Associated
// grants go with them through the cascade constraint.
func (s *Store) DeleteEntries(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM entries WHERE id = ?`)
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

func scanEntry(scanner interface {
	Scan(dest ...interface{}) error
}) (types.CatalogEntry, error) {
	var entry types.CatalogEntry
	var mimeType, parents, createdAt, modifiedAt sql.NullString
	var sizeBytes sql.NullInt64
	var trashed int

	err := scanner.Scan(&entry.ID, &entry.Name, &mimeType, &parents, &sizeBytes, &createdAt, &modifiedAt, &trashed)
	if err != nil {
		return types.CatalogEntry{}, err
	}

	entry.MimeType = mimeType.String
	entry.SizeBytes = sizeBytes.Int64
	entry.CreatedTime = createdAt.String
	entry.ModifiedTime = modifiedAt.String
	entry.Trashed = trashed != 0

	if parents.Valid && parents.String != "" {
		if err := json.Unmarshal([]byte(parents.String), &entry.Parents); err != nil {
			return types.CatalogEntry{}, err
		}
	}
	return entry, nil
}

func marshalParents(parents []string) (sql.NullString, error) {
	if len(parents) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(parents)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
