package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/model"
)

// ReportPayload is the document posted to the automation engine. It carries
// everything the engine needs to build the report without calling back in:
// file links, templates and a storage access token.
type ReportPayload struct {
	Report      PayloadReport    `json:"report"`
	Client      PayloadClient    `json:"client"`
	Agency      PayloadAgency    `json:"agency"`
	DataFiles   PayloadDataFiles `json:"data_files"`
	Templates   PayloadTemplates `json:"templates"`
	Storage     PayloadStorage   `json:"storage"`
	CallbackURL string           `json:"callback_url"`
}

type PayloadReport struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PayloadClient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PayloadAgency struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PayloadDataFiles struct {
	MediaPlan    model.FileRef `json:"media_plan"`
	MediaResults model.FileRef `json:"media_plan_results"`
}

type PayloadTemplates struct {
	MediaPlan        model.FileRef `json:"media_plan"`
	MediaPlanResults model.FileRef `json:"media_plan_results"`
	Slides           model.FileRef `json:"slides"`
	SlidesJSON       model.FileRef `json:"slides_json"`
}

type PayloadStorage struct {
	Provider    string                `json:"provider"`
	AccessToken string                `json:"access_token"`
	Settings    *model.AgencySettings `json:"settings"`
}

// AutomationService dispatches report jobs to the external automation
// webhook. Dispatch is fire and forget: the engine reports the outcome
// through the callback endpoint, never through this request's response.
type AutomationService struct {
	webhookURL    string
	apiKey        string
	signingSecret string
	callbackURL   string
	httpClient    *http.Client
}

func NewAutomationService(cfg *config.Config) *AutomationService {
	return &AutomationService{
		webhookURL:    cfg.AutomationWebhookURL,
		apiKey:        cfg.AutomationAPIKey,
		signingSecret: cfg.AutomationSigningSecret,
		callbackURL:   cfg.AppURL + "/api/v1/reports/callback",
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Dispatch sends the payload in a goroutine. Failures are logged; the report
// stays in-process until the engine calls back or an operator intervenes.
func (s *AutomationService) Dispatch(payload *ReportPayload) {
	payload.CallbackURL = s.callbackURL

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.send(ctx, payload); err != nil {
			slog.Error("automation dispatch failed", "report_id", payload.Report.ID, "error", err)
			return
		}
		slog.Info("report dispatched to automation", "report_id", payload.Report.ID)
	}()
}

func (s *AutomationService) send(ctx context.Context, payload *ReportPayload) error {
	if s.webhookURL == "" {
		return fmt.Errorf("automation webhook not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	if s.signingSecret != "" {
		if err := s.signRequest(req, payload.Report.ID, body); err != nil {
			return fmt.Errorf("failed to sign payload: %w", err)
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("automation webhook returned %d", resp.StatusCode)
	}
	return nil
}

// signRequest adds Standard Webhooks headers so engines that verify
// signatures can do better than the shared API key.
func (s *AutomationService) signRequest(req *http.Request, reportID string, body []byte) error {
	wh, err := standardwebhooks.NewWebhookRaw([]byte(s.signingSecret))
	if err != nil {
		return err
	}

	now := time.Now()
	msgID := "report_" + reportID
	signature, err := wh.Sign(msgID, now, body)
	if err != nil {
		return err
	}

	req.Header.Set("webhook-id", msgID)
	req.Header.Set("webhook-timestamp", fmt.Sprintf("%d", now.Unix()))
	req.Header.Set("webhook-signature", signature)
	return nil
}
