// Package catalog wraps the Drive API as a read-only metadata source.
// It exposes paginated entry listing and per-entry permission listing;
// the sync engine consumes it through the sync.Source interface.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/drivemirror/drivemirror/internal/api"
	"github.com/drivemirror/drivemirror/internal/types"
	"github.com/drivemirror/drivemirror/internal/utils"
	"google.golang.org/api/drive/v3"
)

const (
	entryFields = "nextPageToken, files(id,name,mimeType,size,createdTime,modifiedTime,parents,trashed)"
	grantFields = "nextPageToken, permissions(id,type,role,emailAddress,domain,allowFileDiscovery)"
)

// Client lists Drive entries and their permission grants
type Client struct {
	client   *api.Client
	profile  string
	driveID  string
	pageSize int64
}

// Options configures a catalog client
type Options struct {
	Profile  string
	DriveID  string
	PageSize int
}

// NewClient creates a catalog client on top of an API client
func NewClient(client *api.Client, opts Options) *Client {
	pageSize := int64(opts.PageSize)
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	return &Client{
		client:   client,
		profile:  opts.Profile,
		driveID:  opts.DriveID,
		pageSize: pageSize,
	}
}

// ListPage fetches one page of non-trashed entries. An empty parentID lists
// the whole corpus; a non-empty one restricts to direct children.
func (c *Client) ListPage(ctx context.Context, parentID, pageToken string) (types.CatalogPage, error) {
	reqCtx := api.NewRequestContext(c.profile, c.driveID, types.RequestTypeListOrSearch)
	if parentID != "" {
		reqCtx.InvolvedParentIDs = append(reqCtx.InvolvedParentIDs, parentID)
	}

	query := "trashed = false"
	if parentID != "" {
		query = fmt.Sprintf("'%s' in parents and trashed = false", parentID)
	}

	call := c.client.Service().Files.List().
		Q(query).
		PageSize(c.pageSize).
		Fields(entryFields).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)
	if c.driveID != "" {
		call = call.DriveId(c.driveID).Corpora("drive")
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	result, err := api.ExecuteWithRetry(ctx, c.client, reqCtx, func() (*drive.FileList, error) {
		return call.Do()
	})
	if err != nil {
		return types.CatalogPage{}, err
	}

	page := types.CatalogPage{
		Entries:       make([]types.CatalogEntry, 0, len(result.Files)),
		NextPageToken: result.NextPageToken,
	}
	for _, f := range result.Files {
		page.Entries = append(page.Entries, EntryFromFile(f))
	}
	return page, nil
}

// ListGrants lists all permission grants on one entry, draining pagination.
func (c *Client) ListGrants(ctx context.Context, entryID string) ([]types.AccessGrant, error) {
	reqCtx := api.NewRequestContext(c.profile, c.driveID, types.RequestTypePermissions)
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, entryID)

	var grants []types.AccessGrant
	pageToken := ""

	for {
		call := c.client.Service().Permissions.List(entryID).
			Fields(grantFields).
			SupportsAllDrives(true)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := api.ExecuteWithRetry(ctx, c.client, reqCtx, func() (*drive.PermissionList, error) {
			return call.Do()
		})
		if err != nil {
			return nil, err
		}

		for _, p := range result.Permissions {
			grants = append(grants, GrantFromPermission(entryID, p))
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	return grants, nil
}

// EntryFromFile converts a Drive file into a catalog entry. Name and parent
// normalization happens here so every downstream comparison sees the same
// shape: unnamed items get the fixed placeholder, parents are sorted.
func EntryFromFile(f *drive.File) types.CatalogEntry {
	name := f.Name
	if name == "" {
		name = utils.UntitledName
	}

	var parents []string
	if len(f.Parents) > 0 {
		parents = make([]string, len(f.Parents))
		copy(parents, f.Parents)
		sort.Strings(parents)
	}

	return types.CatalogEntry{
		ID:           f.Id,
		Name:         name,
		MimeType:     f.MimeType,
		Parents:      parents,
		SizeBytes:    f.Size,
		CreatedTime:  f.CreatedTime,
		ModifiedTime: f.ModifiedTime,
		Trashed:      f.Trashed,
	}
}

// GrantFromPermission converts a Drive permission into an access grant.
// Missing type and role default to "user"/"reader" here, before any
// comparison ever sees the record.
func GrantFromPermission(entryID string, p *drive.Permission) types.AccessGrant {
	granteeType := types.GranteeType(p.Type)
	if granteeType == "" {
		granteeType = types.GranteeUser
	}
	role := types.GrantRole(p.Role)
	if role == "" {
		role = types.RoleReader
	}

	return types.AccessGrant{
		ID:           p.Id,
		EntryID:      entryID,
		Type:         granteeType,
		Role:         role,
		EmailAddress: p.EmailAddress,
		Domain:       p.Domain,
		Discoverable: p.AllowFileDiscovery,
	}
}
