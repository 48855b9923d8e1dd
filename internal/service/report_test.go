package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
)

func newReportService(t *testing.T, env *testEnv, webhookURL string) *ReportService {
	t.Helper()

	env.cfg.AutomationWebhookURL = webhookURL
	env.cfg.AutomationAPIKey = "automation-key"

	automation := NewAutomationService(env.cfg)
	email := NewEmailService("", "noreply@example.com", env.cfg.AppURL, env.cfg.AppName, true)

	return NewReportService(env.reportRepo, env.clientRepo, env.userRepo, env.integrationService, automation, email)
}

func createTestClient(t *testing.T, env *testEnv) *model.Client {
	t.Helper()

	client, err := env.clientService.Create(context.Background(), env.agency, ClientInput{
		Name:      "Acme",
		MediaPlan: &TemplateUpload{Filename: "tmpl.csv", MimeType: "text/csv", Content: []byte("a")},
	})
	require.NoError(t, err)

	env.provider.uploads = nil
	return client
}

func csvUpload(name string) *TemplateUpload {
	return &TemplateUpload{Filename: name, MimeType: "text/csv", Content: []byte("col\nval\n")}
}

func TestReportServiceCreateDispatches(t *testing.T) {
	env := newTestEnv(t)

	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies <- body
		received <- r
	}))
	t.Cleanup(webhook.Close)

	svc := newReportService(t, env, webhook.URL)
	client := createTestClient(t, env)

	report, err := svc.Create(context.Background(), env.agency, env.user, client.ID, "Q3 Report",
		csvUpload("plan.csv"), csvUpload("results.csv"))
	require.NoError(t, err)

	assert.Equal(t, model.ReportStatusInProcess, report.Status)
	assert.Equal(t, env.user.ID, report.GeneratedBy)

	// Both CSVs landed in the data folder under timestamped names
	require.Len(t, env.provider.uploads, 2)
	assert.Equal(t, "client-data", env.provider.uploads[0].Folder)
	assert.True(t, strings.HasSuffix(env.provider.uploads[0].Filename, ".media_plan.csv"))
	assert.True(t, strings.HasSuffix(env.provider.uploads[1].Filename, ".media_plan_results.csv"))

	require.True(t, report.MediaPlan().Valid())
	require.False(t, report.MediaPlan().IsZero())

	select {
	case r := <-received:
		assert.Equal(t, "automation-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload ReportPayload
		require.NoError(t, json.Unmarshal(<-bodies, &payload))
		assert.Equal(t, report.ID, payload.Report.ID)
		assert.Equal(t, client.ID, payload.Client.ID)
		assert.Equal(t, env.agency.ID, payload.Agency.ID)
		assert.Equal(t, model.ProviderGoogleDrive, payload.Storage.Provider)
		assert.Equal(t, "access-token", payload.Storage.AccessToken)
		assert.Equal(t, "https://app.example.com/api/v1/reports/callback", payload.CallbackURL)
		require.NotNil(t, payload.Templates.MediaPlan.ID)
		require.NotNil(t, payload.DataFiles.MediaPlan.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("automation webhook was not called")
	}
}

func TestReportServiceCreateRequiresBothFiles(t *testing.T) {
	env := newTestEnv(t)
	svc := newReportService(t, env, "")
	client := createTestClient(t, env)

	_, err := svc.Create(context.Background(), env.agency, env.user, client.ID, "R", csvUpload("plan.csv"), nil)
	assert.ErrorIs(t, err, ErrDataFilesRequired)

	_, err = svc.Create(context.Background(), env.agency, env.user, client.ID, "R", nil, csvUpload("results.csv"))
	assert.ErrorIs(t, err, ErrDataFilesRequired)

	// No row was written and nothing was uploaded
	count, err := env.reportRepo.CountByAgency(env.agency.ID, repository.ReportFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, env.provider.uploads)
}

func TestReportServiceCreateUnknownClient(t *testing.T) {
	env := newTestEnv(t)
	svc := newReportService(t, env, "")

	_, err := svc.Create(context.Background(), env.agency, env.user, "missing", "R",
		csvUpload("plan.csv"), csvUpload("results.csv"))
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestReportServiceMonthlyLimit(t *testing.T) {
	env := newTestEnv(t)
	svc := newReportService(t, env, "")
	client := createTestClient(t, env)

	env.agency.ReportLimit = 1

	now := time.Now()
	require.NoError(t, env.reportRepo.Create(&model.Report{
		ID:          "existing",
		AgencyID:    env.agency.ID,
		ClientID:    client.ID,
		Name:        "Earlier",
		Status:      model.ReportStatusReady,
		GeneratedBy: env.user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	_, err := svc.Create(context.Background(), env.agency, env.user, client.ID, "Over",
		csvUpload("plan.csv"), csvUpload("results.csv"))
	assert.ErrorIs(t, err, ErrReportLimitReached)
}

func TestReportServiceHandleCallback(t *testing.T) {
	env := newTestEnv(t)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(webhook.Close)

	svc := newReportService(t, env, webhook.URL)
	client := createTestClient(t, env)

	newInProcess := func(t *testing.T) *model.Report {
		report, err := svc.Create(context.Background(), env.agency, env.user, client.ID, "R",
			csvUpload("plan.csv"), csvUpload("results.csv"))
		require.NoError(t, err)
		return report
	}

	t.Run("ready stores the link", func(t *testing.T) {
		report := newInProcess(t)

		updated, err := svc.HandleCallback(CallbackInput{
			ReportID:   report.ID,
			Status:     model.ReportStatusReady,
			ReportLink: "https://drive.google.com/file/d/final/view",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusReady, updated.Status)
		require.NotNil(t, updated.ReportLink)
		assert.Equal(t, "https://drive.google.com/file/d/final/view", *updated.ReportLink)
		assert.Nil(t, updated.ErrorMessage)
	})

	t.Run("failed stores the error message", func(t *testing.T) {
		report := newInProcess(t)

		updated, err := svc.HandleCallback(CallbackInput{
			ReportID:     report.ID,
			Status:       model.ReportStatusFailed,
			ErrorMessage: "template missing",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusFailed, updated.Status)
		require.NotNil(t, updated.ErrorMessage)
		assert.Equal(t, "template missing", *updated.ErrorMessage)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		report := newInProcess(t)

		_, err := svc.HandleCallback(CallbackInput{ReportID: report.ID, Status: "done"})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("unknown report id", func(t *testing.T) {
		_, err := svc.HandleCallback(CallbackInput{ReportID: "missing", Status: model.ReportStatusReady})
		assert.ErrorIs(t, err, ErrReportNotFound)
	})

	t.Run("settled reports keep their result", func(t *testing.T) {
		report := newInProcess(t)

		_, err := svc.HandleCallback(CallbackInput{
			ReportID:   report.ID,
			Status:     model.ReportStatusReady,
			ReportLink: "https://example.com/first",
		})
		require.NoError(t, err)

		again, err := svc.HandleCallback(CallbackInput{
			ReportID:     report.ID,
			Status:       model.ReportStatusFailed,
			ErrorMessage: "late duplicate",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusReady, again.Status)
		require.NotNil(t, again.ReportLink)
		assert.Equal(t, "https://example.com/first", *again.ReportLink)
	})
}

func TestReportServiceList(t *testing.T) {
	env := newTestEnv(t)

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(webhook.Close)

	svc := newReportService(t, env, webhook.URL)
	client := createTestClient(t, env)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), env.agency, env.user, client.ID, "R",
			csvUpload("plan.csv"), csvUpload("results.csv"))
		require.NoError(t, err)
	}

	reports, total, err := svc.List(env.agency.ID, repository.ReportFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Acme", reports[0].ClientName)
}
