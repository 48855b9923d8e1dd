package storage

import (
	"context"
	"errors"

	"github.com/reportdeck/reportdeck/internal/model"
)

var (
	// ErrTokenUnusable means the access token is invalid and could not be
	// refreshed. The integration needs to be reconnected.
	ErrTokenUnusable = errors.New("storage token invalid and not refreshable")

	// ErrFolderNotFound means the client folder (or a subfolder) is missing
	// in the tenant's storage.
	ErrFolderNotFound = errors.New("storage folder not found")
)

// Subfolder names inside every client's root folder.
const (
	SubfolderTemplates = "templates"
	SubfolderData      = "data"
	SubfolderReports   = "reports"
)

// TokenResult is a usable access token plus whether it was just refreshed.
// Callers persist the token when WasRefreshed is set.
type TokenResult struct {
	Token        string
	WasRefreshed bool
}

// Folder locates a directory in the tenant's storage. ID is set on Google
// Drive, Path on SharePoint; URL is a browser link when the provider has one.
type Folder struct {
	ID   string
	Path string
	URL  string
}

// ClientFolders is the result of provisioning a client's directory tree.
type ClientFolders struct {
	Root      Folder
	Templates Folder
	Data      Folder
	Reports   Folder
}

// Provider abstracts a tenant-connected cloud drive (Google Drive,
// SharePoint). Implementations never mutate integration rows; token refresh
// results are reported back for the caller to persist.
type Provider interface {
	// Name returns the provider identifier ("google_drive", "sharepoint").
	Name() string

	// EnsureToken validates the access token, refreshing it once if the
	// provider rejects it. Returns ErrTokenUnusable when neither works.
	EnsureToken(ctx context.Context, accessToken, refreshToken string) (*TokenResult, error)

	// ProvisionClient creates the client's root folder and the templates,
	// data and reports subfolders under the agency's configured location.
	ProvisionClient(ctx context.Context, token, clientName string) (*ClientFolders, error)

	// ResolveFolder finds an existing subfolder for the client, creating it
	// when the client root exists but the subfolder does not. Returns
	// ErrFolderNotFound when the client root itself is missing.
	ResolveFolder(ctx context.Context, token, clientName, subfolder string) (*Folder, error)

	// Upload stores content in the given folder. It does not fail: any
	// error is logged and a zero FileRef returned, so a broken storage
	// connection degrades rather than aborts the calling flow.
	Upload(ctx context.Context, token string, folder *Folder, filename, mimeType string, content []byte) model.FileRef

	// Delete removes a file by reference, best effort.
	Delete(ctx context.Context, token string, ref model.FileRef)
}
