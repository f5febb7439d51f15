package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"survey-analytics-service/internal/domain"
)

// ExportJobRepository persists export job records.
type ExportJobRepository interface {
	Create(ctx context.Context, job domain.ExportJob) error
	Get(ctx context.Context, jobID string) (domain.ExportJob, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ExportJob, error)
	Update(ctx context.Context, job domain.ExportJob) error
}

// ExportRequest is the user's description of an export.
type ExportRequest struct {
	SurveyID           string              `json:"surveyId"`
	Format             domain.ExportFormat `json:"format"`
	IncludeMetadata    bool                `json:"includeMetadata"`
	AnonymizeResponses bool                `json:"anonymizeResponses"`
	RangeStart         *time.Time          `json:"rangeStart,omitempty"`
	RangeEnd           *time.Time          `json:"rangeEnd,omitempty"`
}

// ExportRow is one response session with its answers keyed by question id.
type ExportRow struct {
	SessionID      string         `json:"sessionId"`
	RespondentID   string         `json:"respondentId,omitempty"`
	UserAgent      string         `json:"userAgent,omitempty"`
	StartedAt      time.Time      `json:"startedAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	Completed      bool           `json:"completed"`
	ElapsedSeconds float64        `json:"elapsedSeconds"`
	Answers        map[string]any `json:"answers"`
}

// ExportDataset is what the export worker serializes for a job.
type ExportDataset struct {
	Job       domain.ExportJob           `json:"job"`
	Survey    domain.Survey              `json:"survey"`
	Questions []domain.Question          `json:"questions"`
	Summary   *domain.SurveyAggregate    `json:"summary,omitempty"`
	Breakdown []domain.QuestionAggregate `json:"questionAnalytics,omitempty"`
	Rows      []ExportRow                `json:"rows"`
}

// ExportService manages export job records and assembles their data.
type ExportService struct {
	jobs      ExportJobRepository
	defs      DefinitionSource
	responses ResponseSource
	analytics *AnalyticsService
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewExportService(jobs ExportJobRepository, defs DefinitionSource, responses ResponseSource, analytics *AnalyticsService, log logrus.FieldLogger) *ExportService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExportService{
		jobs:      jobs,
		defs:      defs,
		responses: responses,
		analytics: analytics,
		now:       time.Now,
		log:       log,
	}
}

func (s *ExportService) Create(ctx context.Context, userID string, req ExportRequest) (domain.ExportJob, error) {
	if !req.Format.Valid() {
		return domain.ExportJob{}, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidExport, req.Format)
	}
	if req.RangeStart != nil && req.RangeEnd != nil && req.RangeEnd.Before(*req.RangeStart) {
		return domain.ExportJob{}, fmt.Errorf("%w: range end before start", domain.ErrInvalidExport)
	}
	if _, err := s.ownedSurvey(ctx, userID, req.SurveyID); err != nil {
		return domain.ExportJob{}, err
	}

	job := domain.ExportJob{
		ID:                 uuid.NewString(),
		SurveyID:           req.SurveyID,
		CreatedBy:          userID,
		Format:             req.Format,
		IncludeMetadata:    req.IncludeMetadata,
		AnonymizeResponses: req.AnonymizeResponses,
		RangeStart:         req.RangeStart,
		RangeEnd:           req.RangeEnd,
		CreatedAt:          s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return domain.ExportJob{}, fmt.Errorf("create export job: %w", err)
	}
	s.log.WithFields(logrus.Fields{"job": job.ID, "survey": job.SurveyID, "format": job.Format}).Info("export job created")
	return job, nil
}

// Get returns a job owned by userID; other users' jobs are reported as not found.
func (s *ExportService) Get(ctx context.Context, userID, jobID string) (domain.ExportJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.ExportJob{}, err
	}
	if job.CreatedBy != userID {
		return domain.ExportJob{}, domain.ErrExportNotFound
	}
	return job, nil
}

func (s *ExportService) List(ctx context.Context, userID string) ([]domain.ExportJob, error) {
	return s.jobs.ListByUser(ctx, userID)
}

// Dataset assembles the rows and analytics of an export job.
func (s *ExportService) Dataset(ctx context.Context, userID, jobID string) (ExportDataset, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return ExportDataset{}, err
	}
	survey, err := s.ownedSurvey(ctx, userID, job.SurveyID)
	if err != nil {
		return ExportDataset{}, err
	}
	questions, err := s.defs.QuestionsBySurvey(ctx, survey.ID)
	if err != nil {
		return ExportDataset{}, err
	}
	sessions, err := s.responses.SessionsBySurvey(ctx, survey.ID)
	if err != nil {
		return ExportDataset{}, err
	}

	rows := make([]ExportRow, 0, len(sessions))
	index := make(map[string]int, len(sessions))
	for _, sess := range sessions {
		if !job.Contains(sess.StartedAt) {
			continue
		}
		row := ExportRow{
			SessionID:      sess.ID,
			StartedAt:      sess.StartedAt,
			CompletedAt:    sess.CompletedAt,
			Completed:      sess.Completed,
			ElapsedSeconds: sess.ElapsedSeconds,
			Answers:        make(map[string]any),
		}
		if !job.AnonymizeResponses {
			row.RespondentID = sess.RespondentID
			row.UserAgent = sess.UserAgent
		}
		index[sess.ID] = len(rows)
		rows = append(rows, row)
	}
	for _, q := range questions {
		answers, err := s.responses.AnswersByQuestion(ctx, q.ID)
		if err != nil {
			return ExportDataset{}, err
		}
		for _, a := range answers {
			if i, ok := index[a.SessionID]; ok {
				rows[i].Answers[q.ID] = a.Value
			}
		}
	}

	ds := ExportDataset{Job: job, Survey: survey, Questions: questions, Rows: rows}
	if job.IncludeMetadata {
		summary, err := s.analytics.SurveyAnalytics(ctx, survey.ID)
		if err != nil && summary.SurveyID == "" {
			return ExportDataset{}, err
		}
		ds.Summary = &summary
		if ds.Breakdown, err = s.analytics.SurveyQuestionAnalytics(ctx, survey.ID); err != nil {
			return ExportDataset{}, err
		}
	}
	return ds, nil
}

// Complete records the location of the finished export file.
func (s *ExportService) Complete(ctx context.Context, jobID, location string) (domain.ExportJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.ExportJob{}, err
	}
	done := s.now()
	job.Completed = true
	job.CompletedAt = &done
	job.Location = location
	job.ErrorMessage = ""
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.ExportJob{}, fmt.Errorf("complete export job: %w", err)
	}
	return job, nil
}

// Fail records a worker error; the job stays incomplete.
func (s *ExportService) Fail(ctx context.Context, jobID, message string) (domain.ExportJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.ExportJob{}, err
	}
	job.ErrorMessage = message
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.ExportJob{}, fmt.Errorf("fail export job: %w", err)
	}
	s.log.WithFields(logrus.Fields{"job": jobID, "reason": message}).Warn("export job failed")
	return job, nil
}

// Download returns the file location of a completed export.
func (s *ExportService) Download(ctx context.Context, userID, jobID string) (string, error) {
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return "", err
	}
	if !job.Completed || job.Location == "" {
		return "", domain.ErrExportNotReady
	}
	return job.Location, nil
}

func (s *ExportService) ownedSurvey(ctx context.Context, userID, surveyID string) (domain.Survey, error) {
	survey, err := s.defs.Survey(ctx, surveyID)
	if err != nil {
		return domain.Survey{}, err
	}
	if survey.OwnerID != userID {
		return domain.Survey{}, fmt.Errorf("survey %q: %w", surveyID, domain.ErrTargetNotFound)
	}
	return survey, nil
}
