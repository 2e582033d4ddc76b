package types

import "time"

// OutputFormat determines how command results are rendered
type OutputFormat string

const (
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// RequestType categorizes API operations for logging and shaping
type RequestType string

const (
	RequestTypeListOrSearch RequestType = "list_or_search"
	RequestTypeMetadata     RequestType = "metadata"
	RequestTypePermissions  RequestType = "permissions"
)

// RequestContext carries per-request metadata through the API layer
type RequestContext struct {
	Profile           string      `json:"profile"`
	DriveID           string      `json:"driveId,omitempty"`
	InvolvedFileIDs   []string    `json:"involvedFileIds,omitempty"`
	InvolvedParentIDs []string    `json:"involvedParentIds,omitempty"`
	RequestType       RequestType `json:"requestType"`
	TraceID           string      `json:"traceId"`
}

// GlobalFlags holds flags shared by every command
type GlobalFlags struct {
	Profile      string
	DriveID      string
	OutputFormat OutputFormat
	Quiet        bool
	Verbose      bool
	Debug        bool
	Config       string
	LogFile      string
	JSON         bool
}

// CLIError is the structured error shape emitted in JSON output
type CLIError struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	HTTPStatus  int                    `json:"httpStatus,omitempty"`
	DriveReason string                 `json:"driveReason,omitempty"`
	Retryable   bool                   `json:"retryable,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// CLIWarning is a non-fatal notice included in command output
type CLIWarning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// CLIOutput is the envelope for JSON command output
type CLIOutput struct {
	SchemaVersion string       `json:"schemaVersion"`
	TraceID       string       `json:"traceId,omitempty"`
	Command       string       `json:"command"`
	Data          interface{}  `json:"data"`
	Warnings      []CLIWarning `json:"warnings"`
	Errors        []CLIError   `json:"errors"`
}

// TableRenderer supplies rows for tabular output
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
	EmptyMessage() string
}

// TableRenderable converts a result into a TableRenderer
type TableRenderable interface {
	AsTableRenderer() TableRenderer
}

// Credentials holds a usable OAuth token set for one profile
type Credentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiryDate   time.Time `json:"expiryDate"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// StoredCredentials is the on-disk/keyring form of Credentials. The expiry
// is stored as RFC 3339 text.
type StoredCredentials struct {
	Profile      string   `json:"profile"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	ExpiryDate   string   `json:"expiryDate"`
	Scopes       []string `json:"scopes,omitempty"`
}
