package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"survey-analytics-service/internal/domain"
)

// RecordStore keeps raw survey records in memory. It serves as the definition,
// response and activity source when no database is configured, and in tests.
type RecordStore struct {
	mu        sync.RWMutex
	users     map[string]struct{}
	surveys   map[string]domain.Survey
	questions map[string]domain.Question
	sessions  map[string]domain.ResponseSession
	answers   map[string]domain.Answer
	// answered indexes session+question pairs to reject duplicate answers.
	answered map[[2]string]struct{}
	activity map[string][]domain.Activity
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		users:     make(map[string]struct{}),
		surveys:   make(map[string]domain.Survey),
		questions: make(map[string]domain.Question),
		sessions:  make(map[string]domain.ResponseSession),
		answers:   make(map[string]domain.Answer),
		answered:  make(map[[2]string]struct{}),
		activity:  make(map[string][]domain.Activity),
	}
}

func (s *RecordStore) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

// AddSurvey stores or replaces a survey definition; its owner becomes a known user.
func (s *RecordStore) AddSurvey(survey domain.Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys[survey.ID] = survey
	if survey.OwnerID != "" {
		s.users[survey.OwnerID] = struct{}{}
	}
}

func (s *RecordStore) AddQuestion(q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[q.SurveyID]; !ok {
		return fmt.Errorf("survey %q: %w", q.SurveyID, domain.ErrTargetNotFound)
	}
	s.questions[q.ID] = q
	return nil
}

func (s *RecordStore) AddSession(sess domain.ResponseSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.surveys[sess.SurveyID]; !ok {
		return fmt.Errorf("survey %q: %w", sess.SurveyID, domain.ErrTargetNotFound)
	}
	s.sessions[sess.ID] = sess
	return nil
}

// UpdateSession replaces a stored session, e.g. when it completes.
func (s *RecordStore) UpdateSession(sess domain.ResponseSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return fmt.Errorf("session %q: %w", sess.ID, domain.ErrTargetNotFound)
	}
	s.sessions[sess.ID] = sess
	return nil
}

// AddAnswer stores an answer. A session answers each question at most once.
func (s *RecordStore) AddAnswer(a domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[a.SessionID]; !ok {
		return fmt.Errorf("session %q: %w", a.SessionID, domain.ErrTargetNotFound)
	}
	if _, ok := s.questions[a.QuestionID]; !ok {
		return fmt.Errorf("question %q: %w", a.QuestionID, domain.ErrTargetNotFound)
	}
	pair := [2]string{a.SessionID, a.QuestionID}
	if _, dup := s.answered[pair]; dup {
		return fmt.Errorf("session %q question %q: %w", a.SessionID, a.QuestionID, domain.ErrDuplicateAnswer)
	}
	if _, dup := s.answers[a.ID]; dup {
		return fmt.Errorf("answer %q: %w", a.ID, domain.ErrDuplicateAnswer)
	}
	s.answers[a.ID] = a
	s.answered[pair] = struct{}{}
	return nil
}

// AddActivity appends to the user's activity log.
func (s *RecordStore) AddActivity(userID string, a domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[userID] = append(s.activity[userID], a)
}

func (s *RecordStore) Survey(_ context.Context, surveyID string) (domain.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	survey, ok := s.surveys[surveyID]
	if !ok {
		return domain.Survey{}, fmt.Errorf("survey %q: %w", surveyID, domain.ErrTargetNotFound)
	}
	return survey, nil
}

func (s *RecordStore) QuestionsBySurvey(_ context.Context, surveyID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.surveys[surveyID]; !ok {
		return nil, fmt.Errorf("survey %q: %w", surveyID, domain.ErrTargetNotFound)
	}
	var out []domain.Question
	for _, q := range s.questions {
		if q.SurveyID == surveyID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RecordStore) SurveysByOwner(_ context.Context, userID string) ([]domain.Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("user %q: %w", userID, domain.ErrTargetNotFound)
	}
	var out []domain.Survey
	for _, survey := range s.surveys {
		if survey.OwnerID == userID {
			out = append(out, survey)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadQuestion satisfies QuestionLoader so the store can back a QuestionCache.
func (s *RecordStore) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, fmt.Errorf("question %q: %w", questionID, domain.ErrTargetNotFound)
	}
	return q, nil
}

func (s *RecordStore) SessionsBySurvey(_ context.Context, surveyID string) ([]domain.ResponseSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ResponseSession
	for _, sess := range s.sessions {
		if sess.SurveyID == surveyID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RecordStore) AnswersByQuestion(_ context.Context, questionID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for _, a := range s.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecentActivity returns up to limit entries, newest first.
func (s *RecordStore) RecentActivity(_ context.Context, userID string, limit int) ([]domain.Activity, error) {
	s.mu.RLock()
	log := append([]domain.Activity(nil), s.activity[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(log, func(i, j int) bool { return log[i].Timestamp.After(log[j].Timestamp) })
	if limit > 0 && len(log) > limit {
		log = log[:limit]
	}
	return log, nil
}
