package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportdeck/reportdeck/internal/config"
)

const (
	goodToken    = "good-token"
	goodRefresh  = "good-refresh"
	refreshedTok = "refreshed-token"
)

// fakeDrive is an in-memory Drive v3 API good enough for folder search,
// folder creation and multipart uploads.
type fakeDrive struct {
	folders map[string]fakeFolder // id -> folder
	nextID  int
	uploads []string // filenames received
}

type fakeFolder struct {
	name   string
	parent string
}

func (f *fakeDrive) addFolder(name, parent string) string {
	f.nextID++
	id := fmt.Sprintf("folder-%d", f.nextID)
	f.folders[id] = fakeFolder{name: name, parent: parent}
	return id
}

func newDriveServer(t *testing.T, drive *fakeDrive) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer "+goodToken ||
			r.Header.Get("Authorization") == "Bearer "+refreshedTok
	}

	mux.HandleFunc("GET /drive/v3/about", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"user":{"displayName":"Test"}}`)
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("grant_type") != "refresh_token" || r.FormValue("refresh_token") != goodRefresh {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":%q}`, refreshedTok)
	})

	mux.HandleFunc("GET /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query().Get("q")

		type file struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			WebViewLink string `json:"webViewLink"`
		}
		var matches []file
		for id, folder := range drive.folders {
			if !strings.Contains(q, fmt.Sprintf("name='%s'", folder.name)) {
				continue
			}
			if strings.Contains(q, "in parents") && !strings.Contains(q, fmt.Sprintf("'%s' in parents", folder.parent)) {
				continue
			}
			matches = append(matches, file{ID: id, Name: folder.name, WebViewLink: "https://drive.google.com/drive/folders/" + id})
		}
		json.NewEncoder(w).Encode(map[string]any{"files": matches})
	})

	mux.HandleFunc("POST /drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var meta struct {
			Name    string   `json:"name"`
			Parents []string `json:"parents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&meta))

		parent := ""
		if len(meta.Parents) > 0 {
			parent = meta.Parents[0]
		}
		id := drive.addFolder(meta.Name, parent)
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	mux.HandleFunc("POST /upload/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		drive.uploads = append(drive.uploads, r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{"id":"uploaded-1"}`)
	})

	mux.HandleFunc("DELETE /drive/v3/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func driveConfig(srv *httptest.Server) *config.Config {
	return &config.Config{
		GoogleClientID:      "client-id",
		GoogleClientSecret:  "client-secret",
		GoogleDriveBaseURL:  srv.URL,
		GoogleUploadBaseURL: srv.URL,
		GoogleTokenURL:      srv.URL + "/token",
		GoogleSlidesBaseURL: srv.URL,
	}
}

func TestGoogleDriveEnsureToken(t *testing.T) {
	drive := &fakeDrive{folders: map[string]fakeFolder{}}
	srv := newDriveServer(t, drive)
	g := NewGoogleDrive(driveConfig(srv), "root-1")

	t.Run("valid token passes through", func(t *testing.T) {
		result, err := g.EnsureToken(context.Background(), goodToken, goodRefresh)
		require.NoError(t, err)
		assert.Equal(t, goodToken, result.Token)
		assert.False(t, result.WasRefreshed)
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		result, err := g.EnsureToken(context.Background(), "expired", goodRefresh)
		require.NoError(t, err)
		assert.Equal(t, refreshedTok, result.Token)
		assert.True(t, result.WasRefreshed)
	})

	t.Run("dead token without working refresh is unusable", func(t *testing.T) {
		_, err := g.EnsureToken(context.Background(), "expired", "bad-refresh")
		assert.ErrorIs(t, err, ErrTokenUnusable)
	})

	t.Run("dead token without refresh token is unusable", func(t *testing.T) {
		_, err := g.EnsureToken(context.Background(), "expired", "")
		assert.ErrorIs(t, err, ErrTokenUnusable)
	})
}

func TestGoogleDriveProvisionClient(t *testing.T) {
	drive := &fakeDrive{folders: map[string]fakeFolder{}}
	srv := newDriveServer(t, drive)

	rootID := drive.addFolder("tis-agency_integration", "")
	g := NewGoogleDrive(driveConfig(srv), rootID)

	folders, err := g.ProvisionClient(context.Background(), goodToken, "Acme")
	require.NoError(t, err)

	// Root plus one client folder plus three subfolders
	require.Len(t, drive.folders, 5)
	assert.Equal(t, "Acme", drive.folders[folders.Root.ID].name)
	assert.Equal(t, rootID, drive.folders[folders.Root.ID].parent)

	for name, folder := range map[string]Folder{
		SubfolderTemplates: folders.Templates,
		SubfolderData:      folders.Data,
		SubfolderReports:   folders.Reports,
	} {
		require.NotEmpty(t, folder.ID, name)
		assert.Equal(t, name, drive.folders[folder.ID].name)
		assert.Equal(t, folders.Root.ID, drive.folders[folder.ID].parent)
	}
}

func TestGoogleDriveProvisionClientIsIdempotent(t *testing.T) {
	drive := &fakeDrive{folders: map[string]fakeFolder{}}
	srv := newDriveServer(t, drive)

	rootID := drive.addFolder("agency-root", "")
	g := NewGoogleDrive(driveConfig(srv), rootID)

	first, err := g.ProvisionClient(context.Background(), goodToken, "Acme")
	require.NoError(t, err)

	second, err := g.ProvisionClient(context.Background(), goodToken, "Acme")
	require.NoError(t, err)

	assert.Equal(t, first.Root.ID, second.Root.ID)
	assert.Equal(t, first.Data.ID, second.Data.ID)
	assert.Len(t, drive.folders, 5)
}

func TestGoogleDriveResolveFolder(t *testing.T) {
	drive := &fakeDrive{folders: map[string]fakeFolder{}}
	srv := newDriveServer(t, drive)

	rootID := drive.addFolder("agency-root", "")
	clientID := drive.addFolder("Acme", rootID)
	g := NewGoogleDrive(driveConfig(srv), rootID)

	t.Run("creates missing subfolder under existing client", func(t *testing.T) {
		folder, err := g.ResolveFolder(context.Background(), goodToken, "Acme", SubfolderData)
		require.NoError(t, err)
		assert.Equal(t, SubfolderData, drive.folders[folder.ID].name)
		assert.Equal(t, clientID, drive.folders[folder.ID].parent)
	})

	t.Run("missing client folder is an error", func(t *testing.T) {
		_, err := g.ResolveFolder(context.Background(), goodToken, "Globex", SubfolderData)
		assert.ErrorIs(t, err, ErrFolderNotFound)
	})
}

func TestGoogleDriveUpload(t *testing.T) {
	drive := &fakeDrive{folders: map[string]fakeFolder{}}
	srv := newDriveServer(t, drive)
	g := NewGoogleDrive(driveConfig(srv), "root-1")

	folder := &Folder{ID: "folder-x"}
	ref := g.Upload(context.Background(), goodToken, folder, "plan.csv", "text/csv", []byte("a,b\n1,2\n"))

	require.True(t, ref.Valid())
	require.False(t, ref.IsZero())
	assert.Equal(t, "uploaded-1", *ref.ID)
	assert.Equal(t, "https://drive.google.com/file/d/uploaded-1/view", *ref.URL)

	require.Len(t, drive.uploads, 1)
	assert.Contains(t, drive.uploads[0], "multipart/related")
}

func TestGoogleDriveUploadFailureReturnsZeroRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	g := NewGoogleDrive(driveConfig(srv), "root-1")
	ref := g.Upload(context.Background(), goodToken, &Folder{ID: "folder-x"}, "plan.csv", "text/csv", []byte("data"))

	assert.True(t, ref.IsZero())
	assert.True(t, ref.Valid())
}
