package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/drivemirror/drivemirror/internal/api"
	"github.com/drivemirror/drivemirror/internal/auth"
	"github.com/drivemirror/drivemirror/internal/catalog"
	"github.com/drivemirror/drivemirror/internal/config"
	"github.com/drivemirror/drivemirror/internal/store"
	syncengine "github.com/drivemirror/drivemirror/internal/sync"
	"github.com/drivemirror/drivemirror/internal/types"
	"github.com/drivemirror/drivemirror/internal/utils"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror Drive metadata into the local catalog",
	Long:  "Commands for running and inspecting metadata sync runs",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a metadata sync",
	Long: `Fetch the Drive catalog page by page, reconcile each entry and its
permission grants against the local store, and prune records that are no
longer present upstream. Unchanged records are skipped.`,
	RunE: runSyncRun,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the mirror state",
	Long:  "Display local catalog counts and the outcome of the last sync run",
	RunE:  runSyncStatus,
}

var (
	syncRoot      string
	syncBatchSize int
	syncPageSize  int
)

func init() {
	syncRunCmd.Flags().StringVar(&syncRoot, "root", "", "Folder ID to mirror (default: entire corpus)")
	syncRunCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "Records per commit batch (default from config)")
	syncRunCmd.Flags().IntVar(&syncPageSize, "page-size", 0, "Entries per listing page (default from config)")

	syncStatusCmd.Flags().StringVar(&syncRoot, "root", "", "Folder ID scope to report on")

	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSyncRun(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	ctx := context.Background()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, err := config.Load()
	if err != nil {
		return out.WriteError("sync.run", utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build())
	}

	source, err := buildCatalogSource(ctx, flags, cfg)
	if err != nil {
		if appErr, ok := err.(*utils.AppError); ok {
			return out.WriteError("sync.run", appErr.CLIError)
		}
		return out.WriteError("sync.run", utils.NewCLIError(utils.ErrCodeAuthRequired, err.Error()).Build())
	}

	st, err := openMirrorStore(cfg)
	if err != nil {
		return out.WriteError("sync.run", utils.NewCLIError(utils.ErrCodeStoreError, err.Error()).Build())
	}
	defer st.Close()

	batchSize := syncBatchSize
	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}

	broadcaster := syncengine.NewBroadcaster(cfg.GetHeartbeatInterval())
	defer broadcaster.Close()

	orch := syncengine.NewOrchestrator(source, st, broadcaster, GetLogger(), syncengine.Options{
		BatchSize: batchSize,
	})

	events, cancel := broadcaster.Subscribe()
	defer cancel()

	handle, err := orch.Start(ctx, syncRoot)
	if err != nil {
		if errors.Is(err, syncengine.ErrRunInProgress) {
			return out.WriteError("sync.run", utils.NewCLIError(utils.ErrCodeRunInProgress, err.Error()).Build())
		}
		return out.WriteError("sync.run", utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build())
	}

	renderProgress(out, events, handle)

	if err := handle.Err(); err != nil {
		return out.WriteError("sync.run", utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build())
	}

	stats := handle.Stats()
	if stats.ErrorCount > 0 {
		out.AddWarning(utils.ErrCodePartialFailure,
			fmt.Sprintf("%d records failed and were skipped", stats.ErrorCount), "warning")
	}

	return out.WriteSuccess("sync.run", map[string]interface{}{
		"runId": handle.ID,
		"scope": handle.Scope,
		"state": handle.State(),
		"stats": stats,
	})
}

// renderProgress drains progress events until the run finishes. Events
// are rendered to stderr so table or JSON output stays clean.
func renderProgress(out *OutputWriter, events <-chan syncengine.ProgressEvent, handle *syncengine.RunHandle) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				<-handle.Done()
				return
			}
			switch event.Phase {
			case syncengine.PhaseHeartbeat:
				out.Verbose("still %s at %d%%", handle.State(), event.Percent)
			case syncengine.PhaseError:
				out.Log("sync failed: %s", event.Message)
			default:
				out.WriteProgressLine(string(event.Phase), event.Percent, event.Message)
			}
		case <-handle.Done():
			return
		}
	}
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	ctx := context.Background()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	cfg, err := config.Load()
	if err != nil {
		return out.WriteError("sync.status", utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build())
	}

	st, err := openMirrorStore(cfg)
	if err != nil {
		return out.WriteError("sync.status", utils.NewCLIError(utils.ErrCodeStoreError, err.Error()).Build())
	}
	defer st.Close()

	entryCount, err := st.CountEntries(ctx)
	if err != nil {
		return out.WriteError("sync.status", utils.NewCLIError(utils.ErrCodeStoreError, err.Error()).Build())
	}
	grantCount, err := st.CountGrants(ctx)
	if err != nil {
		return out.WriteError("sync.status", utils.NewCLIError(utils.ErrCodeStoreError, err.Error()).Build())
	}

	status := map[string]interface{}{
		"scope":   syncRoot,
		"entries": entryCount,
		"grants":  grantCount,
	}

	lastRun, err := st.GetRunState(ctx, syncRoot)
	if err != nil {
		return out.WriteError("sync.status", utils.NewCLIError(utils.ErrCodeStoreError, err.Error()).Build())
	}
	if lastRun != nil {
		status["lastRun"] = map[string]interface{}{
			"runId":            lastRun.RunID,
			"status":           lastRun.Status,
			"startedAt":        lastRun.StartedAt,
			"finishedAt":       lastRun.FinishedAt,
			"totalEntries":     lastRun.TotalEntries,
			"processedEntries": lastRun.ProcessedEntries,
			"processedGrants":  lastRun.ProcessedGrants,
			"errorCount":       lastRun.ErrorCount,
		}
	}

	return out.WriteSuccess("sync.status", status)
}

// buildCatalogSource authenticates the profile and wires a catalog client
// on top of the retrying API client.
func buildCatalogSource(ctx context.Context, flags types.GlobalFlags, cfg *config.Config) (*catalog.Client, error) {
	configDir := getConfigDir()
	mgr := auth.NewManager(configDir)

	creds, err := mgr.GetValidCredentials(ctx, flags.Profile)
	if err != nil {
		return nil, err
	}
	if err := mgr.ValidateMirrorScopes(creds); err != nil {
		return nil, err
	}

	service, err := mgr.GetServiceFactory().CreateDriveService(ctx, creds)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(service, cfg.MaxRetries, cfg.RetryBaseDelay, GetLogger())

	pageSize := syncPageSize
	if pageSize <= 0 {
		pageSize = cfg.PageSize
	}

	return catalog.NewClient(client, catalog.Options{
		Profile:  flags.Profile,
		DriveID:  flags.DriveID,
		PageSize: pageSize,
	}), nil
}

func openMirrorStore(cfg *config.Config) (*store.Store, error) {
	dbPath, err := cfg.GetDatabasePath()
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath)
}
