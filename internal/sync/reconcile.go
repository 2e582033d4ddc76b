package sync

import (
	"context"
	"sort"

	"github.com/drivemirror/drivemirror/internal/store"
	"github.com/drivemirror/drivemirror/internal/types"
	"github.com/drivemirror/drivemirror/internal/utils"
)

// Reconciler decides, per incoming record, whether the store needs a
// create, an update, or nothing. Decisions are pure outcomes; all writes
// happen in the committer.
type Reconciler struct {
	store *store.Store
}

// NewReconciler creates a reconciler over the given store
func NewReconciler(st *store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// ReconcileEntry compares an incoming entry against its persisted state.
// Both sides are normalized before the comparison so that defaulted names
// and parent ordering can never register as a change.
func (r *Reconciler) ReconcileEntry(ctx context.Context, incoming types.CatalogEntry) (Decision, error) {
	incoming = NormalizeEntry(incoming)

	existing, err := r.store.GetEntry(ctx, incoming.ID)
	if err != nil {
		return Decision{}, err
	}
	if existing == nil {
		return Decision{Op: OpCreate, Entry: &incoming}, nil
	}

	normalized := NormalizeEntry(*existing)
	if entriesEqual(normalized, incoming) {
		return Decision{Op: OpSkip, Entry: &incoming}, nil
	}
	return Decision{Op: OpUpdate, Entry: &incoming}, nil
}

// ReconcileGrant compares an incoming grant against its persisted state
func (r *Reconciler) ReconcileGrant(ctx context.Context, incoming types.AccessGrant) (Decision, error) {
	incoming = NormalizeGrant(incoming)

	existing, err := r.store.GetGrant(ctx, incoming.ID)
	if err != nil {
		return Decision{}, err
	}
	if existing == nil {
		return Decision{Op: OpCreate, Grant: &incoming}, nil
	}

	normalized := NormalizeGrant(*existing)
	if grantsEqual(normalized, incoming) {
		return Decision{Op: OpSkip, Grant: &incoming}, nil
	}
	return Decision{Op: OpUpdate, Grant: &incoming}, nil
}

// NormalizeEntry applies the fixed defaults and canonical field ordering
// an entry must have before it is compared or persisted: unnamed entries
// get the placeholder name, parent IDs are sorted.
func NormalizeEntry(entry types.CatalogEntry) types.CatalogEntry {
	if entry.Name == "" {
		entry.Name = utils.UntitledName
	}
	if len(entry.Parents) > 0 {
		parents := make([]string, len(entry.Parents))
		copy(parents, entry.Parents)
		sort.Strings(parents)
		entry.Parents = parents
	} else {
		entry.Parents = nil
	}
	return entry
}

// NormalizeGrant applies the fixed grantee defaults before comparison
func NormalizeGrant(grant types.AccessGrant) types.AccessGrant {
	if grant.Type == "" {
		grant.Type = types.GranteeUser
	}
	if grant.Role == "" {
		grant.Role = types.RoleReader
	}
	return grant
}

// entriesEqual is a field-by-field comparison over normalized entries.
// Every tracked field participates; the parent set is compared as a
// sorted slice so ordering can't produce a spurious diff.
func entriesEqual(a, b types.CatalogEntry) bool {
	if a.ID != b.ID ||
		a.Name != b.Name ||
		a.MimeType != b.MimeType ||
		a.SizeBytes != b.SizeBytes ||
		a.CreatedTime != b.CreatedTime ||
		a.ModifiedTime != b.ModifiedTime ||
		a.Trashed != b.Trashed {
		return false
	}
	if len(a.Parents) != len(b.Parents) {
		return false
	}
	for i := range a.Parents {
		if a.Parents[i] != b.Parents[i] {
			return false
		}
	}
	return true
}

func grantsEqual(a, b types.AccessGrant) bool {
	return a.ID == b.ID &&
		a.EntryID == b.EntryID &&
		a.Type == b.Type &&
		a.Role == b.Role &&
		a.EmailAddress == b.EmailAddress &&
		a.Domain == b.Domain &&
		a.Discoverable == b.Discoverable
}
