package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/reportdeck/reportdeck/internal/model"
)

var (
	ErrReportNotFound = errors.New("report not found")
)

// ReportFilter narrows report listings. Zero values mean "no constraint".
type ReportFilter struct {
	ClientID  string
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type ReportRepository interface {
	Create(report *model.Report) error
	ByID(id string) (*model.Report, error)
	ByAgency(agencyID string, filter ReportFilter) ([]*model.Report, error)
	CountByAgency(agencyID string, filter ReportFilter) (int, error)
	UpdateOutcome(report *model.Report) error
}

type reportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(report *model.Report) error {
	query := `INSERT INTO reports (
	            id, agency_id, client_id, name, status,
	            media_plan_link, media_plan_id, media_results_link, media_results_id,
	            generated_by, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(query,
		report.ID,
		report.AgencyID,
		report.ClientID,
		report.Name,
		report.Status,
		report.MediaPlanURL,
		report.MediaPlanID,
		report.MediaResultsURL,
		report.MediaResultsID,
		report.GeneratedBy,
		report.CreatedAt,
		report.UpdatedAt,
	)
	return err
}

func (r *reportRepository) ByID(id string) (*model.Report, error) {
	report := &model.Report{}
	query := `SELECT r.*, c.name AS client_name FROM reports r
	          JOIN clients c ON c.id = r.client_id
	          WHERE r.id = $1`

	err := r.db.Get(report, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrReportNotFound
	}

	return report, err
}

func (r *reportRepository) ByAgency(agencyID string, filter ReportFilter) ([]*model.Report, error) {
	where, args := buildReportWhere(agencyID, filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`SELECT r.*, c.name AS client_name FROM reports r
	          JOIN clients c ON c.id = r.client_id
	          WHERE %s
	          ORDER BY r.created_at DESC
	          LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var reports []*model.Report
	err := r.db.Select(&reports, query, args...)
	if err != nil {
		return nil, err
	}

	return reports, nil
}

func (r *reportRepository) CountByAgency(agencyID string, filter ReportFilter) (int, error) {
	where, args := buildReportWhere(agencyID, filter)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM reports r WHERE %s`, where)

	var count int
	err := r.db.Get(&count, query, args...)
	return count, err
}

// UpdateOutcome persists the callback result fields and status.
func (r *reportRepository) UpdateOutcome(report *model.Report) error {
	query := `UPDATE reports SET status = $1, report_link = $2, report_file_id = $3, error_message = $4, updated_at = $5 WHERE id = $6`

	result, err := r.db.Exec(query,
		report.Status,
		report.ReportLink,
		report.ReportFileID,
		report.ErrorMessage,
		report.UpdatedAt,
		report.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrReportNotFound
	}
	return nil
}

func buildReportWhere(agencyID string, filter ReportFilter) (string, []any) {
	conds := []string{"r.agency_id = $1"}
	args := []any{agencyID}

	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conds = append(conds, fmt.Sprintf("r.client_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conds = append(conds, fmt.Sprintf("r.created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conds = append(conds, fmt.Sprintf("r.created_at <= $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}
