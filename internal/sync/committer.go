package sync

import (
	"context"
	"database/sql"

	"github.com/drivemirror/drivemirror/internal/logging"
	"github.com/drivemirror/drivemirror/internal/store"
	"github.com/drivemirror/drivemirror/internal/utils"
)

// Committer applies reconciled decisions in bounded transactions. Records
// within a batch execute in submission order; a failing record is counted
// and skipped without aborting the rest of the batch.
type Committer struct {
	store     *store.Store
	logger    logging.Logger
	batchSize int
}

// NewCommitter creates a committer. batchSize <= 0 selects the default.
func NewCommitter(st *store.Store, logger logging.Logger, batchSize int) *Committer {
	if batchSize <= 0 {
		batchSize = utils.DefaultBatchSize
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Committer{
		store:     st,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Commit applies one batch inside a single transaction. The returned error
// is transaction-level only (begin/commit failure); per-record failures
// land in BatchResult.Errors.
func (c *Committer) Commit(ctx context.Context, batch []Decision) (BatchResult, error) {
	var result BatchResult
	if len(batch) == 0 {
		return result, nil
	}

	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, decision := range batch {
			if decision.Op == OpSkip {
				result.Skipped++
				continue
			}
			if err := c.apply(ctx, tx, decision); err != nil {
				result.Errors++
				c.logger.Warn("record write failed",
					logging.F("op", decision.Op),
					logging.F("id", decisionID(decision)),
					logging.F("error", err.Error()),
				)
				continue
			}
			switch decision.Op {
			case OpCreate:
				result.Created++
			case OpUpdate:
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// CommitAll splits decisions into bounded batches, committing each in its
// own transaction. onBatch, when set, is called with the cumulative
// processed count after every committed batch.
func (c *Committer) CommitAll(ctx context.Context, decisions []Decision, onBatch func(processed int)) (BatchResult, error) {
	var total BatchResult

	for start := 0; start < len(decisions); start += c.batchSize {
		end := start + c.batchSize
		if end > len(decisions) {
			end = len(decisions)
		}

		result, err := c.Commit(ctx, decisions[start:end])
		total.Add(result)
		if err != nil {
			return total, err
		}
		if onBatch != nil {
			onBatch(total.Processed())
		}
	}

	return total, nil
}

func (c *Committer) apply(ctx context.Context, tx *sql.Tx, decision Decision) error {
	if decision.Entry != nil {
		return c.store.UpsertEntry(ctx, tx, *decision.Entry)
	}
	return c.store.UpsertGrant(ctx, tx, *decision.Grant)
}

func decisionID(decision Decision) string {
	if decision.Entry != nil {
		return decision.Entry.ID
	}
	if decision.Grant != nil {
		return decision.Grant.ID
	}
	return ""
}
