package types

// Google Drive MIME types that change how an entry is classified
const (
	MimeTypeFolder   = "application/vnd.google-apps.folder"
	MimeTypeShortcut = "application/vnd.google-apps.shortcut"
)

// EntryKind classifies a catalog entry by its MIME type
type EntryKind string

const (
	KindFile     EntryKind = "file"
	KindFolder   EntryKind = "folder"
	KindShortcut EntryKind = "shortcut"
)

// ClassifyEntryKind maps a MIME type to an entry kind. The folder and
// shortcut mappings are the only special cases Drive defines; everything
// else is a plain file.
func ClassifyEntryKind(mimeType string) EntryKind {
	switch mimeType {
	case MimeTypeFolder:
		return KindFolder
	case MimeTypeShortcut:
		return KindShortcut
	default:
		return KindFile
	}
}

// CatalogEntry is the persisted representation of a remote Drive item.
// ID is the Drive file ID and is stable across syncs.
type CatalogEntry struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType,omitempty"`
	Parents      []string `json:"parents,omitempty"`
	SizeBytes    int64    `json:"sizeBytes,omitempty"`
	CreatedTime  string   `json:"createdTime,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Trashed      bool     `json:"trashed,omitempty"`
}

// Kind returns the classified kind of the entry
func (e *CatalogEntry) Kind() EntryKind {
	return ClassifyEntryKind(e.MimeType)
}

// IsFolder reports whether the entry is a folder
func (e *CatalogEntry) IsFolder() bool {
	return e.Kind() == KindFolder
}

// CatalogPage is one page of a catalog listing
type CatalogPage struct {
	Entries       []CatalogEntry `json:"entries"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

// GranteeType identifies who a grant applies to
type GranteeType string

const (
	GranteeUser   GranteeType = "user"
	GranteeGroup  GranteeType = "group"
	GranteeDomain GranteeType = "domain"
	GranteeAnyone GranteeType = "anyone"
)

// GrantRole is the access level of a grant
type GrantRole string

const (
	RoleReader    GrantRole = "reader"
	RoleCommenter GrantRole = "commenter"
	RoleWriter    GrantRole = "writer"
	RoleOrganizer GrantRole = "organizer"
	RoleOwner     GrantRole = "owner"
)

// AccessGrant is a permission record scoped to one catalog entry.
// Grant IDs are unique across the whole store, not just per entry.
type AccessGrant struct {
	ID           string      `json:"id"`
	EntryID      string      `json:"entryId"`
	Type         GranteeType `json:"type"`
	Role         GrantRole   `json:"role"`
	EmailAddress string      `json:"emailAddress,omitempty"`
	Domain       string      `json:"domain,omitempty"`
	Discoverable bool        `json:"discoverable,omitempty"`
}
