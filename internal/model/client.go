package model

import (
	"encoding/json"
	"time"
)

// Client is a marketing client managed by an agency. Template columns come
// in url/id pairs that map to FileRef values in the client's cloud folder.
type Client struct {
	ID       string `db:"id"`
	AgencyID string `db:"agency_id"`
	Name     string `db:"name"`

	MediaPlanTemplateURL        *string `db:"media_plan_template"`
	MediaPlanTemplateID         *string `db:"media_plan_template_id"`
	MediaPlanResultsTemplateURL *string `db:"media_plan_results_template"`
	MediaPlanResultsTemplateID  *string `db:"media_plan_results_template_id"`
	SlidesTemplateURL           *string `db:"slides_template"`
	SlidesTemplateID            *string `db:"slides_template_id"`
	SlidesJSONURL               *string `db:"slides_template_json"`
	SlidesJSONID                *string `db:"slides_template_json_id"`

	SettingsRaw *string   `db:"settings"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ClientFolderSettings records the provisioned subfolder locations. Values
// are folder IDs on Google Drive and folder paths on SharePoint.
type ClientFolderSettings struct {
	Templates *string `json:"templates,omitempty"`
	Data      *string `json:"data,omitempty"`
	Reports   *string `json:"reports,omitempty"`
}

func (c *Client) MediaPlanTemplate() FileRef {
	return FileRef{ID: c.MediaPlanTemplateID, URL: c.MediaPlanTemplateURL}
}

func (c *Client) MediaPlanResultsTemplate() FileRef {
	return FileRef{ID: c.MediaPlanResultsTemplateID, URL: c.MediaPlanResultsTemplateURL}
}

func (c *Client) SlidesTemplate() FileRef {
	return FileRef{ID: c.SlidesTemplateID, URL: c.SlidesTemplateURL}
}

func (c *Client) SlidesJSON() FileRef {
	return FileRef{ID: c.SlidesJSONID, URL: c.SlidesJSONURL}
}

func (c *Client) SetMediaPlanTemplate(ref FileRef) {
	c.MediaPlanTemplateID = ref.ID
	c.MediaPlanTemplateURL = ref.URL
}

func (c *Client) SetMediaPlanResultsTemplate(ref FileRef) {
	c.MediaPlanResultsTemplateID = ref.ID
	c.MediaPlanResultsTemplateURL = ref.URL
}

func (c *Client) SetSlidesTemplate(ref FileRef) {
	c.SlidesTemplateID = ref.ID
	c.SlidesTemplateURL = ref.URL
}

func (c *Client) SetSlidesJSON(ref FileRef) {
	c.SlidesJSONID = ref.ID
	c.SlidesJSONURL = ref.URL
}

func (c *Client) FolderSettings() (*ClientFolderSettings, error) {
	settings := &ClientFolderSettings{}
	if c.SettingsRaw == nil || *c.SettingsRaw == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(*c.SettingsRaw), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (c *Client) SetFolderSettings(settings *ClientFolderSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	s := string(raw)
	c.SettingsRaw = &s
	return nil
}
