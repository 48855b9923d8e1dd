package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/model"
)

// SharePoint talks to Microsoft Graph using path addressing inside one drive.
// Folders are identified by their path under the drive root; the agency's
// configured folder path is the root for all client folders.
type SharePoint struct {
	clientID     string
	clientSecret string
	graphBaseURL string
	tokenURL     string
	siteID       string
	driveID      string
	rootPath     string
	httpClient   *http.Client
}

func NewSharePoint(cfg *config.Config, siteID, driveID, rootPath string) *SharePoint {
	return &SharePoint{
		clientID:     cfg.MicrosoftClientID,
		clientSecret: cfg.MicrosoftClientSecret,
		graphBaseURL: cfg.GraphBaseURL,
		tokenURL:     cfg.MicrosoftTokenURL,
		siteID:       siteID,
		driveID:      driveID,
		rootPath:     strings.Trim(rootPath, "/"),
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *SharePoint) Name() string {
	return model.ProviderSharePoint
}

func (s *SharePoint) EnsureToken(ctx context.Context, accessToken, refreshToken string) (*TokenResult, error) {
	if s.validateToken(ctx, accessToken) {
		return &TokenResult{Token: accessToken}, nil
	}

	if refreshToken == "" {
		return nil, ErrTokenUnusable
	}

	refreshed, err := s.refreshToken(ctx, refreshToken)
	if err != nil {
		slog.Warn("sharepoint token refresh failed", "error", err)
		return nil, ErrTokenUnusable
	}

	return &TokenResult{Token: refreshed, WasRefreshed: true}, nil
}

func (s *SharePoint) validateToken(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.graphBaseURL+"/v1.0/me", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (s *SharePoint) refreshToken(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {"offline_access Files.ReadWrite.All Sites.ReadWrite.All"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}

	return payload.AccessToken, nil
}

func (s *SharePoint) ProvisionClient(ctx context.Context, token, clientName string) (*ClientFolders, error) {
	rootPath := s.childPath(s.rootPath, clientName)
	root, err := s.ensureFolder(ctx, token, rootPath)
	if err != nil {
		return nil, fmt.Errorf("create client folder: %w", err)
	}

	folders := &ClientFolders{Root: *root}
	for _, sub := range []struct {
		name string
		dst  *Folder
	}{
		{SubfolderTemplates, &folders.Templates},
		{SubfolderData, &folders.Data},
		{SubfolderReports, &folders.Reports},
	} {
		folder, err := s.ensureFolder(ctx, token, s.childPath(root.Path, sub.name))
		if err != nil {
			return nil, fmt.Errorf("provision %s folder: %w", sub.name, err)
		}
		*sub.dst = *folder
	}

	return folders, nil
}

func (s *SharePoint) ResolveFolder(ctx context.Context, token, clientName, subfolder string) (*Folder, error) {
	clientPath := s.childPath(s.rootPath, clientName)
	if _, err := s.getFolder(ctx, token, clientPath); err != nil {
		return nil, err
	}

	subPath := s.childPath(clientPath, subfolder)
	folder, err := s.getFolder(ctx, token, subPath)
	if err == ErrFolderNotFound {
		return s.ensureFolder(ctx, token, subPath)
	}
	return folder, err
}

func (s *SharePoint) childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func (s *SharePoint) itemURL(path string) string {
	escaped := strings.ReplaceAll(url.PathEscape(path), "%2F", "/")
	return fmt.Sprintf("%s/v1.0/sites/%s/drives/%s/root:/%s", s.graphBaseURL, s.siteID, s.driveID, escaped)
}

func (s *SharePoint) getFolder(ctx context.Context, token, path string) (*Folder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.itemURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrFolderNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("graph get item returned %d: %s", resp.StatusCode, body)
	}

	var item struct {
		ID     string `json:"id"`
		WebURL string `json:"webUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}

	return &Folder{ID: item.ID, Path: path, URL: item.WebURL}, nil
}

// ensureFolder creates the folder at path. The rename conflict behavior
// makes the call idempotent enough for provisioning; an existing folder at
// the path is fetched first so we never fork a "data 1" copy.
func (s *SharePoint) ensureFolder(ctx context.Context, token, path string) (*Folder, error) {
	if existing, err := s.getFolder(ctx, token, path); err == nil {
		return existing, nil
	} else if err != ErrFolderNotFound {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"folder":                            map[string]any{},
		"@microsoft.graph.conflictBehavior": "rename",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.itemURL(path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("graph create folder returned %d: %s", resp.StatusCode, b)
	}

	var item struct {
		ID     string `json:"id"`
		WebURL string `json:"webUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, err
	}

	return &Folder{ID: item.ID, Path: path, URL: item.WebURL}, nil
}

func (s *SharePoint) Upload(ctx context.Context, token string, folder *Folder, filename, mimeType string, content []byte) model.FileRef {
	u := s.itemURL(s.childPath(folder.Path, filename)) + ":/content"

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(content))
	if err != nil {
		slog.Error("sharepoint upload request", "file", filename, "error", err)
		return model.FileRef{}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mimeType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("sharepoint upload", "file", filename, "error", err)
		return model.FileRef{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("sharepoint upload", "file", filename, "status", resp.StatusCode, "body", string(body))
		return model.FileRef{}
	}

	var item struct {
		ID     string `json:"id"`
		WebURL string `json:"webUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil || item.ID == "" {
		slog.Error("sharepoint upload decode", "file", filename, "error", err)
		return model.FileRef{}
	}

	return model.NewFileRef(item.ID, item.WebURL)
}

func (s *SharePoint) Delete(ctx context.Context, token string, ref model.FileRef) {
	if ref.ID == nil {
		return
	}

	u := fmt.Sprintf("%s/v1.0/sites/%s/drives/%s/items/%s", s.graphBaseURL, s.siteID, s.driveID, *ref.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Warn("sharepoint delete", "file_id", *ref.ID, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		slog.Warn("sharepoint delete", "file_id", *ref.ID, "status", resp.StatusCode)
	}
}

// Site is a SharePoint site with its default document drive, as surfaced to
// the settings UI when an agency picks where client folders should live.
type Site struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	WebURL  string `json:"web_url"`
	DriveID string `json:"drive_id"`
}

// ListSites searches the tenant's sites and resolves each site's default
// drive. Sites whose drive cannot be resolved are skipped.
func ListSites(ctx context.Context, cfg *config.Config, token string) ([]Site, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.GraphBaseURL+"/v1.0/sites?search=*", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("graph sites search returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Value []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			WebURL      string `json:"webUrl"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(payload.Value))
	for _, v := range payload.Value {
		driveID, err := defaultDriveID(ctx, client, cfg.GraphBaseURL, token, v.ID)
		if err != nil {
			slog.Warn("sharepoint site drive lookup failed", "site", v.ID, "error", err)
			continue
		}
		sites = append(sites, Site{ID: v.ID, Name: v.DisplayName, WebURL: v.WebURL, DriveID: driveID})
	}

	return sites, nil
}

func defaultDriveID(ctx context.Context, client *http.Client, graphBaseURL, token, siteID string) (string, error) {
	u := fmt.Sprintf("%s/v1.0/sites/%s/drive", graphBaseURL, siteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("graph site drive returned %d: %s", resp.StatusCode, body)
	}

	var drive struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&drive); err != nil {
		return "", err
	}
	return drive.ID, nil
}
