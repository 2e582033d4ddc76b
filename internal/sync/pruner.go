package sync

import (
	"context"
	"errors"

	"github.com/drivemirror/drivemirror/internal/logging"
	"github.com/drivemirror/drivemirror/internal/store"
)

// ErrIncompleteSnapshot rejects pruning against a partial fetch. An
// incomplete page set is indistinguishable from legitimate deletions and
// pruning on it would destroy live data.
var ErrIncompleteSnapshot = errors.New("sync: refusing to prune from an incomplete fetch snapshot")

// Snapshot is the identity set of one full remote fetch. Complete must be
// set by the fetch loop only after the last page arrived.
type Snapshot struct {
	EntryIDs map[string]struct{}
	GrantIDs map[string]struct{}

	// GrantsUnlisted holds entry IDs whose grant listing failed this run.
	// Their persisted grants are left alone rather than treated as removed.
	GrantsUnlisted map[string]struct{}

	Complete bool
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		EntryIDs:       make(map[string]struct{}),
		GrantIDs:       make(map[string]struct{}),
		GrantsUnlisted: make(map[string]struct{}),
	}
}

// PruneResult reports what pruning removed
type PruneResult struct {
	EntriesRemoved  int
	GrantsRemoved   int
	DanglingRemoved int64
}

// Pruner removes persisted records whose upstream counterpart is gone
type Pruner struct {
	store  *store.Store
	logger logging.Logger
}

// NewPruner creates a pruner over the given store
func NewPruner(st *store.Store, logger logging.Logger) *Pruner {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Pruner{store: st, logger: logger}
}

// Prune deletes every persisted entry and grant absent from the snapshot.
// Entry deletion cascades to grants through the store's referential
// constraint; a final sweep removes any grant pointing at no entry.
func (p *Pruner) Prune(ctx context.Context, snap *Snapshot) (PruneResult, error) {
	var result PruneResult
	if snap == nil || !snap.Complete {
		return result, ErrIncompleteSnapshot
	}

	persistedEntries, err := p.store.ListEntryIDs(ctx)
	if err != nil {
		return result, err
	}

	var orphanEntries []string
	for _, id := range persistedEntries {
		if _, ok := snap.EntryIDs[id]; !ok {
			orphanEntries = append(orphanEntries, id)
		}
	}
	if err := p.store.DeleteEntries(ctx, orphanEntries); err != nil {
		return result, err
	}
	result.EntriesRemoved = len(orphanEntries)

	grantRefs, err := p.store.ListGrantRefs(ctx)
	if err != nil {
		return result, err
	}

	var orphanGrants []string
	for _, ref := range grantRefs {
		if _, ok := snap.GrantIDs[ref.ID]; ok {
			continue
		}
		if _, ok := snap.GrantsUnlisted[ref.EntryID]; ok {
			// grant listing failed for this entry; keep its grants
			continue
		}
		orphanGrants = append(orphanGrants, ref.ID)
	}
	if err := p.store.DeleteGrants(ctx, orphanGrants); err != nil {
		return result, err
	}
	result.GrantsRemoved = len(orphanGrants)

	dangling, err := p.store.DeleteGrantsWithoutEntry(ctx)
	if err != nil {
		return result, err
	}
	result.DanglingRemoved = dangling

	if result.EntriesRemoved > 0 || result.GrantsRemoved > 0 || result.DanglingRemoved > 0 {
		p.logger.Info("pruned orphaned records",
			logging.F("entries", result.EntriesRemoved),
			logging.F("grants", result.GrantsRemoved),
			logging.F("dangling", result.DanglingRemoved),
		)
	}

	return result, nil
}
