package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"survey-analytics-service/internal/domain"
)

type exportJobModel struct {
	bun.BaseModel `bun:"table:export_jobs"`

	ID                 string     `bun:"id,pk"`
	SurveyID           string     `bun:"survey_id,notnull"`
	CreatedBy          string     `bun:"created_by,notnull"`
	Format             string     `bun:"format,notnull"`
	IncludeMetadata    bool       `bun:"include_metadata,notnull"`
	AnonymizeResponses bool       `bun:"anonymize_responses,notnull"`
	RangeStart         *time.Time `bun:"range_start"`
	RangeEnd           *time.Time `bun:"range_end"`
	Completed          bool       `bun:"completed,notnull"`
	ErrorMessage       string     `bun:"error_message,notnull"`
	Location           string     `bun:"location,notnull"`
	CreatedAt          time.Time  `bun:"created_at,notnull"`
	CompletedAt        *time.Time `bun:"completed_at"`
}

func toExportModel(job domain.ExportJob) *exportJobModel {
	return &exportJobModel{
		ID:                 job.ID,
		SurveyID:           job.SurveyID,
		CreatedBy:          job.CreatedBy,
		Format:             string(job.Format),
		IncludeMetadata:    job.IncludeMetadata,
		AnonymizeResponses: job.AnonymizeResponses,
		RangeStart:         job.RangeStart,
		RangeEnd:           job.RangeEnd,
		Completed:          job.Completed,
		ErrorMessage:       job.ErrorMessage,
		Location:           job.Location,
		CreatedAt:          job.CreatedAt,
		CompletedAt:        job.CompletedAt,
	}
}

func (m *exportJobModel) toDomain() domain.ExportJob {
	return domain.ExportJob{
		ID:                 m.ID,
		SurveyID:           m.SurveyID,
		CreatedBy:          m.CreatedBy,
		Format:             domain.ExportFormat(m.Format),
		IncludeMetadata:    m.IncludeMetadata,
		AnonymizeResponses: m.AnonymizeResponses,
		RangeStart:         m.RangeStart,
		RangeEnd:           m.RangeEnd,
		Completed:          m.Completed,
		ErrorMessage:       m.ErrorMessage,
		Location:           m.Location,
		CreatedAt:          m.CreatedAt,
		CompletedAt:        m.CompletedAt,
	}
}

// ExportJobRepository stores export jobs with the bun ORM.
type ExportJobRepository struct {
	db *bun.DB
}

func NewExportJobRepository(db *bun.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

func (r *ExportJobRepository) Create(ctx context.Context, job domain.ExportJob) error {
	if _, err := r.db.NewInsert().Model(toExportModel(job)).Exec(ctx); err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

func (r *ExportJobRepository) Get(ctx context.Context, jobID string) (domain.ExportJob, error) {
	m := new(exportJobModel)
	err := r.db.NewSelect().Model(m).Where("id = ?", jobID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExportJob{}, domain.ErrExportNotFound
	}
	if err != nil {
		return domain.ExportJob{}, fmt.Errorf("select export job: %w", err)
	}
	return m.toDomain(), nil
}

func (r *ExportJobRepository) ListByUser(ctx context.Context, userID string) ([]domain.ExportJob, error) {
	var models []exportJobModel
	err := r.db.NewSelect().Model(&models).
		Where("created_by = ?", userID).
		OrderExpr("created_at DESC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	out := make([]domain.ExportJob, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func (r *ExportJobRepository) Update(ctx context.Context, job domain.ExportJob) error {
	res, err := r.db.NewUpdate().Model(toExportModel(job)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrExportNotFound
	}
	return nil
}
