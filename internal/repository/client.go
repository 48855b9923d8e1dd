package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/reportdeck/reportdeck/internal/model"
)

var (
	ErrClientNotFound = errors.New("client not found")
)

type ClientRepository interface {
	Create(client *model.Client) error
	ByID(id, agencyID string) (*model.Client, error)
	ByAgency(agencyID string) ([]*model.Client, error)
	Update(client *model.Client) error
}

type clientRepository struct {
	db *sqlx.DB
}

func NewClientRepository(db *sqlx.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(client *model.Client) error {
	query := `INSERT INTO clients (
	            id, agency_id, name,
	            media_plan_template, media_plan_template_id,
	            media_plan_results_template, media_plan_results_template_id,
	            slides_template, slides_template_id,
	            slides_template_json, slides_template_json_id,
	            settings, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(query,
		client.ID,
		client.AgencyID,
		client.Name,
		client.MediaPlanTemplateURL,
		client.MediaPlanTemplateID,
		client.MediaPlanResultsTemplateURL,
		client.MediaPlanResultsTemplateID,
		client.SlidesTemplateURL,
		client.SlidesTemplateID,
		client.SlidesJSONURL,
		client.SlidesJSONID,
		client.SettingsRaw,
		client.CreatedAt,
		client.UpdatedAt,
	)
	return err
}

// ByID is agency-scoped: a client id from another tenant is not found.
func (r *clientRepository) ByID(id, agencyID string) (*model.Client, error) {
	client := &model.Client{}
	query := `SELECT * FROM clients WHERE id = $1 AND agency_id = $2`

	err := r.db.Get(client, query, id, agencyID)
	if err == sql.ErrNoRows {
		return nil, ErrClientNotFound
	}

	return client, err
}

func (r *clientRepository) ByAgency(agencyID string) ([]*model.Client, error) {
	var clients []*model.Client
	query := `SELECT * FROM clients WHERE agency_id = $1 ORDER BY created_at DESC`

	err := r.db.Select(&clients, query, agencyID)
	if err != nil {
		return nil, err
	}

	return clients, nil
}

func (r *clientRepository) Update(client *model.Client) error {
	query := `UPDATE clients SET
	            name = $1,
	            media_plan_template = $2, media_plan_template_id = $3,
	            media_plan_results_template = $4, media_plan_results_template_id = $5,
	            slides_template = $6, slides_template_id = $7,
	            slides_template_json = $8, slides_template_json_id = $9,
	            updated_at = $10
	          WHERE id = $11 AND agency_id = $12`

	_, err := r.db.Exec(query,
		client.Name,
		client.MediaPlanTemplateURL,
		client.MediaPlanTemplateID,
		client.MediaPlanResultsTemplateURL,
		client.MediaPlanResultsTemplateID,
		client.SlidesTemplateURL,
		client.SlidesTemplateID,
		client.SlidesJSONURL,
		client.SlidesJSONID,
		client.UpdatedAt,
		client.ID,
		client.AgencyID,
	)
	return err
}
