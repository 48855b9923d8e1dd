package model

import "time"

const (
	ReportStatusInProcess = "in-process"
	ReportStatusReady     = "ready"
	ReportStatusFailed    = "failed"
)

type Report struct {
	ID       string `db:"id"`
	AgencyID string `db:"agency_id"`
	ClientID string `db:"client_id"`
	Name     string `db:"name"`
	Status   string `db:"status"`

	MediaPlanURL    *string `db:"media_plan_link"`
	MediaPlanID     *string `db:"media_plan_id"`
	MediaResultsURL *string `db:"media_results_link"`
	MediaResultsID  *string `db:"media_results_id"`

	ReportLink   *string `db:"report_link"`
	ReportFileID *string `db:"report_file_id"`
	ErrorMessage *string `db:"error_message"`

	GeneratedBy string    `db:"generated_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`

	// Joined from clients, not a reports column
	ClientName string `db:"client_name"`
}

func (r *Report) MediaPlan() FileRef {
	return FileRef{ID: r.MediaPlanID, URL: r.MediaPlanURL}
}

func (r *Report) MediaResults() FileRef {
	return FileRef{ID: r.MediaResultsID, URL: r.MediaResultsURL}
}

func (r *Report) SetMediaPlan(ref FileRef) {
	r.MediaPlanID = ref.ID
	r.MediaPlanURL = ref.URL
}

func (r *Report) SetMediaResults(ref FileRef) {
	r.MediaResultsID = ref.ID
	r.MediaResultsURL = ref.URL
}
