package store

import (
	"context"
	"database/sql"
)

// RunState is the persisted record of the most recent sync run per scope.
// The total from a completed run seeds the next run's progress estimate.
type RunState struct {
	Scope            string
	RunID            string
	Status           string
	StartedAt        int64
	FinishedAt       int64
	TotalEntries     int
	ProcessedEntries int
	ProcessedGrants  int
	ErrorCount       int
}

// GetRunState fetches the last recorded run for a scope. Returns (nil, nil)
// when no run has been recorded.
func (s *Store) GetRunState(ctx context.Context, scope string) (*RunState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT scope, run_id, status, started_at, finished_at, total_entries, processed_entries, processed_grants, error_count
		FROM sync_state WHERE scope = ?
	`, scope)

	var state RunState
	var finishedAt sql.NullInt64
	err := row.Scan(&state.Scope, &state.RunID, &state.Status, &state.StartedAt, &finishedAt,
		&state.TotalEntries, &state.ProcessedEntries, &state.ProcessedGrants, &state.ErrorCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state.FinishedAt = finishedAt.Int64
	return &state, nil
}

// SaveRunState upserts the run record for a scope
func (s *Store) SaveRunState(ctx context.Context, state RunState) error {
	var finishedAt sql.NullInt64
	if state.FinishedAt != 0 {
		finishedAt = sql.NullInt64{Int64: state.FinishedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (scope, run_id, status, started_at, finished_at, total_entries, processed_entries, processed_grants, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			run_id = excluded.run_id,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			total_entries = excluded.total_entries,
			processed_entries = excluded.processed_entries,
			processed_grants = excluded.processed_grants,
			error_count = excluded.error_count
	`, state.Scope, state.RunID, state.Status, state.StartedAt, finishedAt,
		state.TotalEntries, state.ProcessedEntries, state.ProcessedGrants, state.ErrorCount)
	return err
}
