package sync

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/drivemirror/drivemirror/internal/store"
	"github.com/drivemirror/drivemirror/internal/types"
)

// fakeSource serves a fixed catalog, optionally failing page or grant
// listings and blocking until released.
type fakeSource struct {
	pages     []types.CatalogPage
	grants    map[string][]types.AccessGrant
	grantErrs map[string]error
	pageErr   error
	release   chan struct{}
}

func (f *fakeSource) ListPage(ctx context.Context, parentID, pageToken string) (types.CatalogPage, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return types.CatalogPage{}, ctx.Err()
		}
	}
	if f.pageErr != nil {
		return types.CatalogPage{}, f.pageErr
	}
	idx := 0
	if pageToken != "" {
		idx, _ = strconv.Atoi(pageToken)
	}
	if idx >= len(f.pages) {
		return types.CatalogPage{}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeSource) ListGrants(ctx context.Context, entryID string) ([]types.AccessGrant, error) {
	if err := f.grantErrs[entryID]; err != nil {
		return nil, err
	}
	return f.grants[entryID], nil
}

// pagesOf splits entries into pages of the given size, chaining tokens
func pagesOf(entries []types.CatalogEntry, pageSize int) []types.CatalogPage {
	var pages []types.CatalogPage
	for start := 0; start < len(entries); start += pageSize {
		end := start + pageSize
		if end > len(entries) {
			end = len(entries)
		}
		pages = append(pages, types.CatalogPage{Entries: entries[start:end]})
	}
	for i := range pages {
		if i+1 < len(pages) {
			pages[i].NextPageToken = strconv.Itoa(i + 1)
		}
	}
	if len(pages) == 0 {
		pages = []types.CatalogPage{{}}
	}
	return pages
}

func waitForRun(t *testing.T, handle *RunHandle) {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

func newTestOrchestrator(t *testing.T, source Source, st *store.Store) (*Orchestrator, *Broadcaster) {
	t.Helper()
	b := NewBroadcaster(0)
	t.Cleanup(b.Close)
	return NewOrchestrator(source, st, b, nil, Options{BatchSize: 3}), b
}

func TestOrchestratorFreshSync(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	source := &fakeSource{
		pages: pagesOf([]types.CatalogEntry{
			{ID: "root", Name: "Mirror", MimeType: types.MimeTypeFolder},
			{ID: "f1", Name: "a.txt", Parents: []string{"root"}, SizeBytes: 3},
			{ID: "f2", Name: "b.txt", Parents: []string{"root"}, SizeBytes: 5},
		}, 2),
		grants: map[string][]types.AccessGrant{
			"f1": {{ID: "g1", EntryID: "f1", Type: types.GranteeUser, Role: types.RoleWriter, EmailAddress: "a@example.com"}},
		},
	}
	o, b := newTestOrchestrator(t, source, st)

	events, cancel := b.Subscribe()
	defer cancel()

	handle, err := o.Start(ctx, "root")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForRun(t, handle)

	if handle.Err() != nil {
		t.Fatalf("run failed: %v", handle.Err())
	}
	if handle.State() != StateComplete {
		t.Errorf("State = %q, want %q", handle.State(), StateComplete)
	}

	stats := handle.Stats()
	if stats.TotalEntries != 3 || stats.Created != 4 {
		t.Errorf("stats = %+v, want 3 entries created plus 1 grant", stats)
	}

	count, err := st.CountEntries(ctx)
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if count != 3 {
		t.Errorf("persisted entries = %d, want 3", count)
	}
	grants, err := st.ListGrantsByEntry(ctx, "f1")
	if err != nil {
		t.Fatalf("ListGrantsByEntry: %v", err)
	}
	if len(grants) != 1 {
		t.Errorf("persisted grants = %d, want 1", len(grants))
	}

	state, err := st.GetRunState(ctx, "root")
	if err != nil {
		t.Fatalf("GetRunState: %v", err)
	}
	if state == nil || state.Status != "complete" || state.TotalEntries != 3 {
		t.Errorf("run state = %+v, want complete with 3 entries", state)
	}

	// The event stream must be monotonic and end at 100.
	last := -1
	terminal := false
	deadline := time.After(5 * time.Second)
	for !terminal {
		select {
		case event := <-events:
			if event.Percent < last {
				t.Fatalf("percent decreased: %d after %d (phase %s)", event.Percent, last, event.Phase)
			}
			last = event.Percent
			if event.Phase == PhaseComplete {
				terminal = true
				if event.Percent != 100 {
					t.Errorf("terminal percent = %d, want 100", event.Percent)
				}
				if _, ok := event.Payload.(SyncStats); !ok {
					t.Errorf("terminal payload = %T, want SyncStats", event.Payload)
				}
			}
			if event.Phase == PhaseError {
				t.Fatalf("unexpected error event: %s", event.Message)
			}
		case <-deadline:
			t.Fatal("no terminal event")
		}
	}
}

func TestOrchestratorSecondRunSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	source := &fakeSource{
		pages: pagesOf([]types.CatalogEntry{
			{ID: "f1", Name: "a.txt", SizeBytes: 3},
			{ID: "f2", Name: "b.txt", SizeBytes: 5},
		}, 10),
	}
	o, _ := newTestOrchestrator(t, source, st)

	for i := 0; i < 2; i++ {
		handle, err := o.Start(ctx, "")
		if err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		waitForRun(t, handle)
		if handle.Err() != nil {
			t.Fatalf("run %d failed: %v", i, handle.Err())
		}

		stats := handle.Stats()
		if i == 0 && stats.Created != 2 {
			t.Errorf("first run Created = %d, want 2", stats.Created)
		}
		if i == 1 && (stats.Created != 0 || stats.Updated != 0 || stats.Skipped != 2) {
			t.Errorf("second run stats = %+v, want everything skipped", stats)
		}
	}
}

func TestOrchestratorPrunesDeletions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	full := &fakeSource{
		pages: pagesOf([]types.CatalogEntry{
			{ID: "f1", Name: "a.txt"},
			{ID: "f2", Name: "b.txt"},
		}, 10),
		grants: map[string][]types.AccessGrant{
			"f2": {{ID: "g2", EntryID: "f2", Type: types.GranteeUser, Role: types.RoleReader}},
		},
	}
	o, _ := newTestOrchestrator(t, full, st)
	handle, err := o.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForRun(t, handle)

	// f2 disappears upstream; the next sync must remove it and its grant.
	shrunk := &fakeSource{
		pages: pagesOf([]types.CatalogEntry{{ID: "f1", Name: "a.txt"}}, 10),
	}
	o2, _ := newTestOrchestrator(t, shrunk, st)
	handle, err = o2.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForRun(t, handle)
	if handle.Err() != nil {
		t.Fatalf("run failed: %v", handle.Err())
	}

	stats := handle.Stats()
	if stats.PrunedEntries != 1 {
		t.Errorf("PrunedEntries = %d, want 1", stats.PrunedEntries)
	}
	if entry, _ := st.GetEntry(ctx, "f2"); entry != nil {
		t.Error("deleted entry survived the sync")
	}
	if grant, _ := st.GetGrant(ctx, "g2"); grant != nil {
		t.Error("grant of deleted entry survived the sync")
	}
	if entry, _ := st.GetEntry(ctx, "f1"); entry == nil {
		t.Error("live entry was pruned")
	}
}

func TestOrchestratorSingleFlightPerScope(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	source := &fakeSource{
		pages:   pagesOf([]types.CatalogEntry{{ID: "f1", Name: "a"}}, 10),
		release: make(chan struct{}),
	}
	o, _ := newTestOrchestrator(t, source, st)

	handle, err := o.Start(ctx, "root")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := o.Start(ctx, "root"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second start err = %v, want ErrRunInProgress", err)
	}
	if o.Active("root") == nil {
		t.Error("Active returned nil during a run")
	}

	close(source.release)
	waitForRun(t, handle)

	// The scope is free again once the run finishes.
	handle, err = o.Start(ctx, "root")
	if err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
	waitForRun(t, handle)
}

func TestOrchestratorGrantListingFailureIsRecoverable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	// Seed a grant from an earlier run, then fail f1's grant listing.
	seedEntry(t, st, types.CatalogEntry{ID: "f1", Name: "a.txt"})
	seedGrant(t, st, types.AccessGrant{ID: "g1", EntryID: "f1", Type: types.GranteeUser, Role: types.RoleReader})

	source := &fakeSource{
		pages: pagesOf([]types.CatalogEntry{
			{ID: "f1", Name: "a.txt"},
			{ID: "f2", Name: "b.txt"},
		}, 10),
		grants: map[string][]types.AccessGrant{
			"f2": {{ID: "g2", EntryID: "f2", Type: types.GranteeUser, Role: types.RoleReader}},
		},
		grantErrs: map[string]error{"f1": errors.New("permissions unavailable")},
	}
	o, _ := newTestOrchestrator(t, source, st)

	handle, err := o.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForRun(t, handle)
	if handle.Err() != nil {
		t.Fatalf("run failed: %v", handle.Err())
	}
	if handle.State() != StateComplete {
		t.Errorf("State = %q, want %q", handle.State(), StateComplete)
	}

	stats := handle.Stats()
	if stats.ErrorCount == 0 {
		t.Error("failed grant listing not counted as an error")
	}

	// g1 was absent from the run's snapshot only because its listing
	// failed; it must survive.
	if grant, _ := st.GetGrant(ctx, "g1"); grant == nil {
		t.Error("grant of failed listing was pruned")
	}
	if grant, _ := st.GetGrant(ctx, "g2"); grant == nil {
		t.Error("grant of successful listing missing")
	}
}

func TestOrchestratorFetchFailureAbortsWithoutPruning(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedEntry(t, st, types.CatalogEntry{ID: "f1", Name: "a.txt"})

	source := &fakeSource{pageErr: errors.New("upstream unavailable")}
	o, b := newTestOrchestrator(t, source, st)

	events, cancel := b.Subscribe()
	defer cancel()

	handle, err := o.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForRun(t, handle)

	if handle.Err() == nil {
		t.Fatal("run succeeded against a failing source")
	}
	if handle.State() != StateErrored {
		t.Errorf("State = %q, want %q", handle.State(), StateErrored)
	}

	// A failed fetch must never be treated as a full snapshot.
	if entry, _ := st.GetEntry(ctx, "f1"); entry == nil {
		t.Error("existing entry pruned after a failed fetch")
	}

	sawError := false
	deadline := time.After(5 * time.Second)
	for !sawError {
		select {
		case event := <-events:
			if event.Phase == PhaseError {
				sawError = true
				if event.Message == "" {
					t.Error("error event carries no message")
				}
			}
		case <-deadline:
			t.Fatal("no error event published")
		}
	}

	state, err := st.GetRunState(ctx, "")
	if err != nil {
		t.Fatalf("GetRunState: %v", err)
	}
	if state == nil || state.Status != "errored" {
		t.Errorf("run state = %+v, want errored", state)
	}
}
