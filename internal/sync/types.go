package sync

import (
	"context"

	"github.com/drivemirror/drivemirror/internal/types"
)

// Source is the remote catalog the engine mirrors from. It is a pure data
// source: paginated entry listing plus per-entry grant listing.
type Source interface {
	ListPage(ctx context.Context, parentID, pageToken string) (types.CatalogPage, error)
	ListGrants(ctx context.Context, entryID string) ([]types.AccessGrant, error)
}

// Op is the outcome of reconciling one incoming record against the store
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpSkip   Op = "skip"
)

// Decision is one reconciled write. Exactly one of Entry or Grant is set.
type Decision struct {
	Op    Op
	Entry *types.CatalogEntry
	Grant *types.AccessGrant
}

// BatchResult reports what one committed batch did
type BatchResult struct {
	Created int
	Updated int
	Skipped int
	Errors  int
}

// Add accumulates another batch result
func (r *BatchResult) Add(other BatchResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors += other.Errors
}

// Processed returns the number of records the batch handled
func (r BatchResult) Processed() int {
	return r.Created + r.Updated + r.Skipped + r.Errors
}
