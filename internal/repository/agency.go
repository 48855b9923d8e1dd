package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/reportdeck/reportdeck/internal/model"
)

var (
	ErrAgencyNotFound = errors.New("agency not found")
)

type AgencyRepository interface {
	Create(agency *model.Agency) error
	ByID(id string) (*model.Agency, error)
	FirstByUser(userID string) (*model.Agency, error)
	UpdateSettings(agency *model.Agency) error
	AddMember(member *model.AgencyUser) error
	IsMember(agencyID, userID string) (bool, error)
}

type agencyRepository struct {
	db *sqlx.DB
}

func NewAgencyRepository(db *sqlx.DB) AgencyRepository {
	return &agencyRepository{db: db}
}

func (r *agencyRepository) Create(agency *model.Agency) error {
	query := `INSERT INTO agencies (id, name, slug, status, settings, report_limit, created_by, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		agency.ID,
		agency.Name,
		agency.Slug,
		agency.Status,
		agency.SettingsRaw,
		agency.ReportLimit,
		agency.CreatedBy,
		agency.CreatedAt,
		agency.UpdatedAt,
	)
	return err
}

func (r *agencyRepository) ByID(id string) (*model.Agency, error) {
	agency := &model.Agency{}
	query := `SELECT * FROM agencies WHERE id = $1`

	err := r.db.Get(agency, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrAgencyNotFound
	}

	return agency, err
}

// FirstByUser returns the oldest agency the user belongs to. Users belong to
// a single agency in practice; the ordering makes the choice deterministic.
func (r *agencyRepository) FirstByUser(userID string) (*model.Agency, error) {
	agency := &model.Agency{}
	query := `SELECT a.* FROM agencies a
	          JOIN agency_users au ON au.agency_id = a.id
	          WHERE au.user_id = $1
	          ORDER BY a.created_at ASC LIMIT 1`

	err := r.db.Get(agency, query, userID)
	if err == sql.ErrNoRows {
		return nil, ErrAgencyNotFound
	}

	return agency, err
}

func (r *agencyRepository) UpdateSettings(agency *model.Agency) error {
	query := `UPDATE agencies SET settings = $1, status = $2, updated_at = $3 WHERE id = $4`

	_, err := r.db.Exec(query, agency.SettingsRaw, agency.Status, agency.UpdatedAt, agency.ID)
	return err
}

func (r *agencyRepository) AddMember(member *model.AgencyUser) error {
	query := `INSERT INTO agency_users (agency_id, user_id, role, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(query, member.AgencyID, member.UserID, member.Role, member.CreatedAt)
	return err
}

func (r *agencyRepository) IsMember(agencyID, userID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM agency_users WHERE agency_id = $1 AND user_id = $2`

	err := r.db.Get(&count, query, agencyID, userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
