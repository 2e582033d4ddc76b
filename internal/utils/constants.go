package utils

// OAuth scopes
const (
	ScopeFull             = "https://www.googleapis.com/auth/drive"
	ScopeReadonly         = "https://www.googleapis.com/auth/drive.readonly"
	ScopeMetadataReadonly = "https://www.googleapis.com/auth/drive.metadata.readonly"
)

// ScopesMirror is the default scope set for the mirror: metadata plus
// permission listing, no content access.
var ScopesMirror = []string{
	ScopeReadonly,
	ScopeMetadataReadonly,
}

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Sync engine defaults
const (
	// DefaultBatchSize bounds how many reconciled decisions go into one
	// transaction. Small batches keep transactions short.
	DefaultBatchSize = 10

	// DefaultPageSize is the page size requested from the Drive listing API.
	DefaultPageSize = 100

	// DefaultHeartbeatSeconds is the idle interval after which the progress
	// broadcaster emits a keep-alive event.
	DefaultHeartbeatSeconds = 15

	// UntitledName is persisted for remote items that carry no name.
	UntitledName = "Untitled"
)

// Schema version
const SchemaVersion = "1.0"
