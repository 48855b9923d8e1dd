package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/reportdeck/reportdeck/internal/model"
)

var (
	ErrIntegrationNotFound = errors.New("storage integration not found")
)

type IntegrationRepository interface {
	Create(integration *model.StorageIntegration) error
	ByID(id string) (*model.StorageIntegration, error)
	ActiveByAgency(agencyID string) (*model.StorageIntegration, error)
	ByAgency(agencyID string) ([]*model.StorageIntegration, error)
	UpdateAccessToken(id, accessToken string) error
	UpdateStatus(id, status string) error
}

type integrationRepository struct {
	db *sqlx.DB
}

func NewIntegrationRepository(db *sqlx.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) Create(integration *model.StorageIntegration) error {
	query := `INSERT INTO storage_integrations (id, agency_id, provider, access_token, refresh_token, expires_at, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		integration.ID,
		integration.AgencyID,
		integration.Provider,
		integration.AccessToken,
		integration.RefreshToken,
		integration.ExpiresAt,
		integration.Status,
		integration.CreatedAt,
		integration.UpdatedAt,
	)
	return err
}

func (r *integrationRepository) ByID(id string) (*model.StorageIntegration, error) {
	integration := &model.StorageIntegration{}
	query := `SELECT * FROM storage_integrations WHERE id = $1`

	err := r.db.Get(integration, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrIntegrationNotFound
	}

	return integration, err
}

// ActiveByAgency returns the newest active integration. One active row per
// agency is expected by convention, not enforced by a constraint.
func (r *integrationRepository) ActiveByAgency(agencyID string) (*model.StorageIntegration, error) {
	integration := &model.StorageIntegration{}
	query := `SELECT * FROM storage_integrations WHERE agency_id = $1 AND status = 'active' ORDER BY created_at DESC LIMIT 1`

	err := r.db.Get(integration, query, agencyID)
	if err == sql.ErrNoRows {
		return nil, ErrIntegrationNotFound
	}

	return integration, err
}

func (r *integrationRepository) ByAgency(agencyID string) ([]*model.StorageIntegration, error) {
	var integrations []*model.StorageIntegration
	query := `SELECT * FROM storage_integrations WHERE agency_id = $1 ORDER BY created_at DESC`

	err := r.db.Select(&integrations, query, agencyID)
	if err != nil {
		return nil, err
	}

	return integrations, nil
}

func (r *integrationRepository) UpdateAccessToken(id, accessToken string) error {
	query := `UPDATE storage_integrations SET access_token = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.Exec(query, accessToken, time.Now(), id)
	return err
}

func (r *integrationRepository) UpdateStatus(id, status string) error {
	query := `UPDATE storage_integrations SET status = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.Exec(query, status, time.Now(), id)
	return err
}
