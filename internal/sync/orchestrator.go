package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drivemirror/drivemirror/internal/logging"
	"github.com/drivemirror/drivemirror/internal/store"
	"github.com/drivemirror/drivemirror/internal/types"
	"github.com/google/uuid"
)

// State is the lifecycle state of one sync run
type State string

const (
	StateIdle          State = "idle"
	StateCounting      State = "counting"
	StateFetching      State = "fetching"
	StatePersisting    State = "persisting"
	StateSyncingGrants State = "syncing-grants"
	StatePruning       State = "pruning"
	StateComplete      State = "complete"
	StateErrored       State = "errored"
)

// ErrRunInProgress is returned when a start request races an active run
// for the same scope. The conflict is reported, never queued.
var ErrRunInProgress = errors.New("sync: run already in progress")

// Options configures an orchestrator
type Options struct {
	BatchSize int
}

// Orchestrator sequences a sync run: count, fetch, persist, sync grants,
// prune. At most one run may be active per target scope.
type Orchestrator struct {
	source      Source
	store       *store.Store
	broadcaster *Broadcaster
	logger      logging.Logger

	reconciler *Reconciler
	committer  *Committer
	pruner     *Pruner

	mu     sync.Mutex
	active map[string]*RunHandle
}

// NewOrchestrator wires a sync engine over a source, a store and a
// progress broadcaster
func NewOrchestrator(source Source, st *store.Store, broadcaster *Broadcaster, logger logging.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Orchestrator{
		source:      source,
		store:       st,
		broadcaster: broadcaster,
		logger:      logger,
		reconciler:  NewReconciler(st),
		committer:   NewCommitter(st, logger, opts.BatchSize),
		pruner:      NewPruner(st, logger),
		active:      make(map[string]*RunHandle),
	}
}

// RunHandle tracks one sync run. Callers may snapshot stats and wait on
// Done; the run itself continues server-side regardless of the caller.
type RunHandle struct {
	ID    string
	Scope string

	counters *runCounters
	done     chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

// Done is closed when the run reaches a terminal state
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Err returns the run's terminal error, nil on success
func (h *RunHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// State returns the run's current state
func (h *RunHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Stats returns a point-in-time copy of the run counters
func (h *RunHandle) Stats() SyncStats {
	return h.counters.snapshot()
}

func (h *RunHandle) setState(state State) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

func (h *RunHandle) fail(err error) {
	h.mu.Lock()
	h.state = StateErrored
	h.err = err
	h.mu.Unlock()
}

// Start begins a sync run for the given scope (a root folder ID, or ""
// for the whole corpus). A second start for a scope with an active run
// returns ErrRunInProgress.
func (o *Orchestrator) Start(ctx context.Context, scope string) (*RunHandle, error) {
	handle := &RunHandle{
		ID:       uuid.New().String(),
		Scope:    scope,
		counters: newRunCounters(),
		done:     make(chan struct{}),
		state:    StateIdle,
	}

	o.mu.Lock()
	if _, exists := o.active[scope]; exists {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: scope %q", ErrRunInProgress, scope)
	}
	o.active[scope] = handle
	o.mu.Unlock()

	go o.run(ctx, handle)
	return handle, nil
}

// Active returns the running handle for a scope, if any
func (o *Orchestrator) Active(scope string) *RunHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[scope]
}

func (o *Orchestrator) run(ctx context.Context, handle *RunHandle) {
	logger := o.logger.WithTraceID(handle.ID)

	defer func() {
		o.mu.Lock()
		delete(o.active, handle.Scope)
		o.mu.Unlock()
		close(handle.done)
	}()

	logger.Info("sync run starting", logging.F("scope", handle.Scope))

	// Counting: a best-effort estimate for percentage math only. The
	// previous completed run's total is the estimate; a first run has none.
	handle.setState(StateCounting)
	estimate := 0
	if prev, err := o.store.GetRunState(ctx, handle.Scope); err == nil && prev != nil {
		estimate = prev.TotalEntries
	}
	o.saveRunState(ctx, handle, "running", 0)
	o.broadcaster.Publish(ProgressEvent{
		Phase:   PhaseCounting,
		Total:   estimate,
		Percent: bandCountingEnd,
	})

	// Fetching: drain every page before anything downstream may prune.
	handle.setState(StateFetching)
	snap := NewSnapshot()
	var entries []types.CatalogEntry

	pageToken := ""
	for {
		page, err := o.source.ListPage(ctx, handle.Scope, pageToken)
		if err != nil {
			o.abort(ctx, handle, logger, fmt.Errorf("catalog fetch failed: %w", err))
			return
		}
		for _, entry := range page.Entries {
			entries = append(entries, entry)
			snap.EntryIDs[entry.ID] = struct{}{}
		}

		fetchTotal := estimate
		if len(entries) > fetchTotal {
			fetchTotal = len(entries)
		}
		o.broadcaster.Publish(ProgressEvent{
			Phase:   PhasePageLoaded,
			Total:   fetchTotal,
			Done:    len(entries),
			Percent: bandPercent(bandCountingEnd, bandFetchEnd, len(entries), fetchTotal),
		})

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	handle.counters.update(func(stats *SyncStats) {
		stats.TotalEntries = len(entries)
	})

	// Persisting: reconcile every entry, commit in bounded batches.
	handle.setState(StatePersisting)
	decisions := make([]Decision, 0, len(entries))
	for _, entry := range entries {
		decision, err := o.reconciler.ReconcileEntry(ctx, entry)
		if err != nil {
			o.abort(ctx, handle, logger, fmt.Errorf("store read failed: %w", err))
			return
		}
		decisions = append(decisions, decision)
	}

	entryResult, err := o.committer.CommitAll(ctx, decisions, func(processed int) {
		handle.counters.update(func(stats *SyncStats) {
			stats.ProcessedEntries = processed
		})
		o.broadcaster.Publish(ProgressEvent{
			Phase:   PhaseEntryProcessed,
			Total:   len(decisions),
			Done:    processed,
			Percent: bandPercent(bandFetchEnd, bandPersistEnd, processed, len(decisions)),
		})
	})
	handle.counters.update(func(stats *SyncStats) {
		stats.Created += entryResult.Created
		stats.Updated += entryResult.Updated
		stats.Skipped += entryResult.Skipped
		stats.ErrorCount += entryResult.Errors
	})
	if err != nil {
		o.abort(ctx, handle, logger, fmt.Errorf("entry commit failed: %w", err))
		return
	}

	// SyncingGrants: per-entry grant listing. A failed listing counts as
	// an error and leaves that entry's persisted grants untouched.
	handle.setState(StateSyncingGrants)
	for i, entry := range entries {
		grants, err := o.source.ListGrants(ctx, entry.ID)
		if err != nil {
			snap.GrantsUnlisted[entry.ID] = struct{}{}
			handle.counters.update(func(stats *SyncStats) {
				stats.ErrorCount++
			})
			logger.Warn("grant listing failed, continuing",
				logging.F("entryId", entry.ID),
				logging.F("error", err.Error()),
			)
			continue
		}

		grantDecisions := make([]Decision, 0, len(grants))
		for _, grant := range grants {
			snap.GrantIDs[grant.ID] = struct{}{}
			decision, err := o.reconciler.ReconcileGrant(ctx, grant)
			if err != nil {
				o.abort(ctx, handle, logger, fmt.Errorf("store read failed: %w", err))
				return
			}
			grantDecisions = append(grantDecisions, decision)
		}

		grantResult, err := o.committer.CommitAll(ctx, grantDecisions, nil)
		handle.counters.update(func(stats *SyncStats) {
			stats.TotalGrants += len(grants)
			stats.ProcessedGrants += grantResult.Processed() - grantResult.Errors
			stats.Created += grantResult.Created
			stats.Updated += grantResult.Updated
			stats.Skipped += grantResult.Skipped
			stats.ErrorCount += grantResult.Errors
		})
		if err != nil {
			o.abort(ctx, handle, logger, fmt.Errorf("grant commit failed: %w", err))
			return
		}

		o.broadcaster.Publish(ProgressEvent{
			Phase:   PhaseEntryProcessed,
			Total:   len(entries),
			Done:    i + 1,
			Message: "grants",
			Percent: bandPercent(bandPersistEnd, bandGrantsEnd, i+1, len(entries)),
		})
	}

	// Pruning: the fetch and grant passes are complete, so absence now
	// means deletion upstream.
	handle.setState(StatePruning)
	snap.Complete = true
	pruneResult, err := o.pruner.Prune(ctx, snap)
	if err != nil {
		o.abort(ctx, handle, logger, fmt.Errorf("prune failed: %w", err))
		return
	}
	handle.counters.update(func(stats *SyncStats) {
		stats.PrunedEntries = pruneResult.EntriesRemoved
		stats.PrunedGrants = pruneResult.GrantsRemoved + int(pruneResult.DanglingRemoved)
	})

	handle.setState(StateComplete)
	o.saveRunState(ctx, handle, "complete", time.Now().Unix())

	stats := handle.counters.snapshot()
	logger.Info("sync run complete",
		logging.F("entries", stats.ProcessedEntries),
		logging.F("grants", stats.ProcessedGrants),
		logging.F("errors", stats.ErrorCount),
		logging.F("duration", stats.Duration),
	)
	o.broadcaster.Publish(ProgressEvent{
		Phase:   PhaseComplete,
		Total:   stats.TotalEntries,
		Done:    stats.ProcessedEntries,
		Percent: 100,
		Payload: stats,
	})
}

// abort handles a fatal failure: the run transitions to Errored, an error
// event carries the reason, and partial counters survive in the handle.
func (o *Orchestrator) abort(ctx context.Context, handle *RunHandle, logger logging.Logger, err error) {
	handle.fail(err)
	o.saveRunState(ctx, handle, "errored", time.Now().Unix())

	stats := handle.counters.snapshot()
	logger.Error("sync run aborted",
		logging.F("error", err.Error()),
		logging.F("entriesProcessed", stats.ProcessedEntries),
		logging.F("errors", stats.ErrorCount),
	)
	o.broadcaster.Publish(ProgressEvent{
		Phase:   PhaseError,
		Total:   stats.TotalEntries,
		Done:    stats.ProcessedEntries,
		Message: err.Error(),
		Payload: stats,
	})
}

func (o *Orchestrator) saveRunState(ctx context.Context, handle *RunHandle, status string, finishedAt int64) {
	stats := handle.counters.snapshot()
	state := store.RunState{
		Scope:            handle.Scope,
		RunID:            handle.ID,
		Status:           status,
		StartedAt:        stats.StartedAt.Unix(),
		FinishedAt:       finishedAt,
		TotalEntries:     stats.TotalEntries,
		ProcessedEntries: stats.ProcessedEntries,
		ProcessedGrants:  stats.ProcessedGrants,
		ErrorCount:       stats.ErrorCount,
	}
	if err := o.store.SaveRunState(ctx, state); err != nil {
		o.logger.Warn("failed to record run state", logging.F("error", err.Error()))
	}
}
