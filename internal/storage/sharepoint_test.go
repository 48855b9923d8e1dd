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

// fakeGraph is an in-memory Graph drive keyed by item path.
type fakeGraph struct {
	folders map[string]string // path -> id
	files   map[string]string // path -> id
	nextID  int
}

func (f *fakeGraph) id() string {
	f.nextID++
	return fmt.Sprintf("item-%d", f.nextID)
}

func newGraphServer(t *testing.T, graph *fakeGraph) *httptest.Server {
	t.Helper()

	const drivePrefix = "/v1.0/sites/site-1/drives/drive-1/root:/"

	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Path == "/v1.0/me" {
			fmt.Fprint(w, `{"id":"user-1"}`)
			return
		}

		if !strings.HasPrefix(r.URL.Path, drivePrefix) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, drivePrefix)

		switch {
		case r.Method == http.MethodGet:
			id, ok := graph.folders[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":{"code":"itemNotFound"}}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"id":     id,
				"webUrl": "https://tenant.sharepoint.com/" + path,
			})

		case r.Method == http.MethodPut && strings.HasSuffix(path, ":/content"):
			filePath := strings.TrimSuffix(path, ":/content")
			id := graph.id()
			graph.files[filePath] = id
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"id":     id,
				"webUrl": "https://tenant.sharepoint.com/" + filePath,
			})

		case r.Method == http.MethodPut:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Contains(t, body, "folder")

			id := graph.id()
			graph.folders[path] = id
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"id":     id,
				"webUrl": "https://tenant.sharepoint.com/" + path,
			})

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func graphConfig(srv *httptest.Server) *config.Config {
	return &config.Config{
		MicrosoftClientID:     "client-id",
		MicrosoftClientSecret: "client-secret",
		GraphBaseURL:          srv.URL,
		MicrosoftTokenURL:     srv.URL + "/token",
	}
}

func TestSharePointProvisionClient(t *testing.T) {
	graph := &fakeGraph{folders: map[string]string{}, files: map[string]string{}}
	srv := newGraphServer(t, graph)

	sp := NewSharePoint(graphConfig(srv), "site-1", "drive-1", "ReportDeck")

	folders, err := sp.ProvisionClient(context.Background(), goodToken, "Acme")
	require.NoError(t, err)

	assert.Equal(t, "ReportDeck/Acme", folders.Root.Path)
	assert.Equal(t, "ReportDeck/Acme/templates", folders.Templates.Path)
	assert.Equal(t, "ReportDeck/Acme/data", folders.Data.Path)
	assert.Equal(t, "ReportDeck/Acme/reports", folders.Reports.Path)

	for _, path := range []string{"ReportDeck/Acme", "ReportDeck/Acme/templates", "ReportDeck/Acme/data", "ReportDeck/Acme/reports"} {
		assert.Contains(t, graph.folders, path)
	}
}

func TestSharePointResolveFolder(t *testing.T) {
	graph := &fakeGraph{folders: map[string]string{}, files: map[string]string{}}
	srv := newGraphServer(t, graph)

	graph.folders["ReportDeck/Acme"] = graph.id()
	sp := NewSharePoint(graphConfig(srv), "site-1", "drive-1", "ReportDeck")

	t.Run("creates missing subfolder", func(t *testing.T) {
		folder, err := sp.ResolveFolder(context.Background(), goodToken, "Acme", SubfolderData)
		require.NoError(t, err)
		assert.Equal(t, "ReportDeck/Acme/data", folder.Path)
		assert.Contains(t, graph.folders, "ReportDeck/Acme/data")
	})

	t.Run("missing client folder is an error", func(t *testing.T) {
		_, err := sp.ResolveFolder(context.Background(), goodToken, "Globex", SubfolderReports)
		assert.ErrorIs(t, err, ErrFolderNotFound)
	})
}

func TestSharePointUpload(t *testing.T) {
	graph := &fakeGraph{folders: map[string]string{}, files: map[string]string{}}
	srv := newGraphServer(t, graph)

	sp := NewSharePoint(graphConfig(srv), "site-1", "drive-1", "ReportDeck")
	folder := &Folder{Path: "ReportDeck/Acme/data"}

	ref := sp.Upload(context.Background(), goodToken, folder, "123.media_plan.csv", "text/csv", []byte("a,b\n"))

	require.True(t, ref.Valid())
	require.False(t, ref.IsZero())
	assert.Contains(t, graph.files, "ReportDeck/Acme/data/123.media_plan.csv")
	assert.Equal(t, "https://tenant.sharepoint.com/ReportDeck/Acme/data/123.media_plan.csv", *ref.URL)
}

func TestSharePointUploadFailureReturnsZeroRef(t *testing.T) {
	graph := &fakeGraph{folders: map[string]string{}, files: map[string]string{}}
	srv := newGraphServer(t, graph)

	sp := NewSharePoint(graphConfig(srv), "site-1", "drive-1", "ReportDeck")

	// Bad token makes every call fail; uploads degrade to a zero ref
	ref := sp.Upload(context.Background(), "bad-token", &Folder{Path: "ReportDeck/Acme/data"}, "f.csv", "text/csv", []byte("x"))
	assert.True(t, ref.IsZero())
}

func TestSharePointEnsureTokenRefresh(t *testing.T) {
	graph := &fakeGraph{folders: map[string]string{}, files: map[string]string{}}
	srv := newGraphServer(t, graph)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("refresh_token") != goodRefresh {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"access_token":%q}`, goodToken)
	})
	tokenSrv := httptest.NewServer(mux)
	t.Cleanup(tokenSrv.Close)

	cfg := graphConfig(srv)
	cfg.MicrosoftTokenURL = tokenSrv.URL + "/token"
	sp := NewSharePoint(cfg, "site-1", "drive-1", "ReportDeck")

	result, err := sp.EnsureToken(context.Background(), "expired", goodRefresh)
	require.NoError(t, err)
	assert.Equal(t, goodToken, result.Token)
	assert.True(t, result.WasRefreshed)

	_, err = sp.EnsureToken(context.Background(), "expired", "bad-refresh")
	assert.ErrorIs(t, err, ErrTokenUnusable)
}
