package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/model"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

// GoogleDrive talks to the Drive v3 API on behalf of one agency. The root
// folder ID comes from the agency's settings; all client folders live under it.
type GoogleDrive struct {
	clientID      string
	clientSecret  string
	baseURL       string
	uploadBaseURL string
	tokenURL      string
	slidesBaseURL string
	rootFolderID  string
	httpClient    *http.Client
}

func NewGoogleDrive(cfg *config.Config, rootFolderID string) *GoogleDrive {
	return &GoogleDrive{
		clientID:      cfg.GoogleClientID,
		clientSecret:  cfg.GoogleClientSecret,
		baseURL:       cfg.GoogleDriveBaseURL,
		uploadBaseURL: cfg.GoogleUploadBaseURL,
		tokenURL:      cfg.GoogleTokenURL,
		slidesBaseURL: cfg.GoogleSlidesBaseURL,
		rootFolderID:  rootFolderID,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GoogleDrive) Name() string {
	return model.ProviderGoogleDrive
}

// EnsureToken checks the access token against the About endpoint and falls
// back to a refresh-token exchange when Drive rejects it.
func (g *GoogleDrive) EnsureToken(ctx context.Context, accessToken, refreshToken string) (*TokenResult, error) {
	if g.validateToken(ctx, accessToken) {
		return &TokenResult{Token: accessToken}, nil
	}

	if refreshToken == "" {
		return nil, ErrTokenUnusable
	}

	refreshed, err := g.refreshToken(ctx, refreshToken)
	if err != nil {
		slog.Warn("google drive token refresh failed", "error", err)
		return nil, ErrTokenUnusable
	}

	return &TokenResult{Token: refreshed, WasRefreshed: true}, nil
}

func (g *GoogleDrive) validateToken(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/drive/v3/about?fields=user", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (g *GoogleDrive) refreshToken(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
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

func (g *GoogleDrive) ProvisionClient(ctx context.Context, token, clientName string) (*ClientFolders, error) {
	root, err := g.findFolder(ctx, token, clientName, g.rootFolderID)
	if err != nil && err != ErrFolderNotFound {
		return nil, err
	}
	if root == nil {
		root, err = g.createFolder(ctx, token, clientName, g.rootFolderID)
		if err != nil {
			return nil, fmt.Errorf("create client folder: %w", err)
		}
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
		folder, err := g.findOrCreateFolder(ctx, token, sub.name, root.ID)
		if err != nil {
			return nil, fmt.Errorf("provision %s folder: %w", sub.name, err)
		}
		*sub.dst = *folder
	}

	return folders, nil
}

// ResolveRootFolder finds or creates a folder at the drive root, used once
// during agency setup before a root folder ID exists.
func (g *GoogleDrive) ResolveRootFolder(ctx context.Context, token, name string) (*Folder, error) {
	return g.findOrCreateFolder(ctx, token, name, "")
}

// ResolveFolder locates clientName under the agency root, then the subfolder
// under it. The subfolder is created when missing; the client root is not.
func (g *GoogleDrive) ResolveFolder(ctx context.Context, token, clientName, subfolder string) (*Folder, error) {
	root, err := g.findFolder(ctx, token, clientName, g.rootFolderID)
	if err != nil {
		return nil, err
	}

	return g.findOrCreateFolder(ctx, token, subfolder, root.ID)
}

func (g *GoogleDrive) findOrCreateFolder(ctx context.Context, token, name, parentID string) (*Folder, error) {
	folder, err := g.findFolder(ctx, token, name, parentID)
	if err == nil {
		return folder, nil
	}
	if err != ErrFolderNotFound {
		return nil, err
	}
	return g.createFolder(ctx, token, name, parentID)
}

// findFolder returns the first non-trashed folder matching name. Drive allows
// duplicate names; first match wins.
func (g *GoogleDrive) findFolder(ctx context.Context, token, name, parentID string) (*Folder, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false",
		strings.ReplaceAll(name, "'", `\'`), driveFolderMimeType)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	u := fmt.Sprintf("%s/drive/v3/files?q=%s&fields=files(id,name,webViewLink)", g.baseURL, url.QueryEscape(q))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("drive search returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Files []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			WebViewLink string `json:"webViewLink"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Files) == 0 {
		return nil, ErrFolderNotFound
	}

	f := payload.Files[0]
	return &Folder{ID: f.ID, URL: f.WebViewLink}, nil
}

func (g *GoogleDrive) createFolder(ctx context.Context, token, name, parentID string) (*Folder, error) {
	meta := map[string]any{
		"name":     name,
		"mimeType": driveFolderMimeType,
	}
	if parentID != "" {
		meta["parents"] = []string{parentID}
	}

	body, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	u := g.baseURL + "/drive/v3/files?fields=id,name,webViewLink"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("drive create folder returned %d: %s", resp.StatusCode, b)
	}

	var created struct {
		ID          string `json:"id"`
		WebViewLink string `json:"webViewLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, err
	}

	return &Folder{ID: created.ID, URL: created.WebViewLink}, nil
}

// Upload stores the file via the multipart endpoint. Failures are logged and
// reported as a zero FileRef so callers can continue without the file.
func (g *GoogleDrive) Upload(ctx context.Context, token string, folder *Folder, filename, mimeType string, content []byte) model.FileRef {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	meta := map[string]any{
		"name":    filename,
		"parents": []string{folder.ID},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		slog.Error("google drive upload metadata", "file", filename, "error", err)
		return model.FileRef{}
	}

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := writer.CreatePart(metaHeader)
	if err == nil {
		_, err = part.Write(metaJSON)
	}
	if err == nil {
		contentHeader := textproto.MIMEHeader{}
		contentHeader.Set("Content-Type", mimeType)
		part, err = writer.CreatePart(contentHeader)
	}
	if err == nil {
		_, err = part.Write(content)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		slog.Error("google drive upload body", "file", filename, "error", err)
		return model.FileRef{}
	}

	u := g.uploadBaseURL + "/upload/drive/v3/files?uploadType=multipart"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		slog.Error("google drive upload request", "file", filename, "error", err)
		return model.FileRef{}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Error("google drive upload", "file", filename, "error", err)
		return model.FileRef{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("google drive upload", "file", filename, "status", resp.StatusCode, "body", string(body))
		return model.FileRef{}
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil || uploaded.ID == "" {
		slog.Error("google drive upload decode", "file", filename, "error", err)
		return model.FileRef{}
	}

	return model.NewFileRef(uploaded.ID, fmt.Sprintf("https://drive.google.com/file/d/%s/view", uploaded.ID))
}

func (g *GoogleDrive) Delete(ctx context.Context, token string, ref model.FileRef) {
	if ref.ID == nil {
		return
	}

	u := fmt.Sprintf("%s/drive/v3/files/%s", g.baseURL, *ref.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Warn("google drive delete", "file_id", *ref.ID, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		slog.Warn("google drive delete", "file_id", *ref.ID, "status", resp.StatusCode)
	}
}

// ExtractSlides fetches the raw presentation document for a Slides file.
// Used to snapshot a slides template as JSON next to it.
func (g *GoogleDrive) ExtractSlides(ctx context.Context, token, presentationID string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/presentations/%s", g.slidesBaseURL, presentationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("slides api returned %d: %s", resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}
