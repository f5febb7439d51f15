package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"survey-analytics-service/internal/domain"
)

// RecordSource reads survey definitions, raw responses and the activity log
// from Postgres. The analytics service never writes to these tables.
type RecordSource struct {
	pool *pgxpool.Pool
}

func NewRecordSource(pool *pgxpool.Pool) *RecordSource {
	return &RecordSource{pool: pool}
}

func (s *RecordSource) Survey(ctx context.Context, surveyID string) (domain.Survey, error) {
	var sv domain.Survey
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, status, updated_at FROM surveys WHERE id=$1`, surveyID,
	).Scan(&sv.ID, &sv.OwnerID, &sv.Title, &sv.Status, &sv.UpdatedAt)
	if err != nil {
		return domain.Survey{}, notFound(err, "load survey %q", surveyID)
	}
	return sv, nil
}

func (s *RecordSource) QuestionsBySurvey(ctx context.Context, surveyID string) ([]domain.Question, error) {
	if _, err := s.Survey(ctx, surveyID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, survey_id, text, type, options FROM questions WHERE survey_id=$1 ORDER BY position, id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// LoadQuestion satisfies the question cache loader.
func (s *RecordSource) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, survey_id, text, type, options FROM questions WHERE id=$1`, questionID)
	q, err := scanQuestion(row)
	if err != nil {
		return domain.Question{}, notFound(err, "load question %q", questionID)
	}
	return q, nil
}

func (s *RecordSource) SurveysByOwner(ctx context.Context, userID string) ([]domain.Survey, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("user %q: %w", userID, domain.ErrTargetNotFound)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, title, status, updated_at FROM surveys WHERE owner_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query surveys: %w", err)
	}
	defer rows.Close()

	var out []domain.Survey
	for rows.Next() {
		var sv domain.Survey
		if err := rows.Scan(&sv.ID, &sv.OwnerID, &sv.Title, &sv.Status, &sv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan survey: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// SessionsBySurvey derives the elapsed time of completed sessions in SQL;
// incomplete sessions report 0.
func (s *RecordSource) SessionsBySurvey(ctx context.Context, surveyID string) ([]domain.ResponseSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, survey_id, COALESCE(respondent_id, ''), COALESCE(user_agent, ''),
		       started_at, completed_at, is_complete,
		       CASE WHEN is_complete AND completed_at IS NOT NULL
		            THEN EXTRACT(EPOCH FROM (completed_at - started_at))::float8
		            ELSE 0 END
		FROM response_sessions WHERE survey_id=$1 ORDER BY id`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.ResponseSession
	for rows.Next() {
		var sess domain.ResponseSession
		if err := rows.Scan(&sess.ID, &sess.SurveyID, &sess.RespondentID, &sess.UserAgent,
			&sess.StartedAt, &sess.CompletedAt, &sess.Completed, &sess.ElapsedSeconds); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AnswersByQuestion decodes each JSONB value; a value that is not valid JSON is
// kept as its raw text so the aggregator can count it as invalid.
func (s *RecordSource) AnswersByQuestion(ctx context.Context, questionID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, question_id, value, submitted_at FROM answers WHERE question_id=$1 ORDER BY id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var (
			a   domain.Answer
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &raw, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &a.Value); err != nil {
				a.Value = string(raw)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *RecordSource) RecentActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT activity_type, description, created_at FROM user_activities
		 WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := []domain.Activity{}
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.Type, &a.Description, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q       domain.Question
		options []byte
	)
	if err := row.Scan(&q.ID, &q.SurveyID, &q.Text, &q.Type, &options); err != nil {
		return domain.Question{}, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal options of %q: %w", q.ID, err)
		}
	}
	return q, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, domain.ErrTargetNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
