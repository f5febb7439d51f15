package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"survey-analytics-service/internal/aggregate"
	"survey-analytics-service/internal/domain"
)

// DefinitionSource reads survey definitions owned by the survey service.
type DefinitionSource interface {
	Survey(ctx context.Context, surveyID string) (domain.Survey, error)
	QuestionsBySurvey(ctx context.Context, surveyID string) ([]domain.Question, error)
	SurveysByOwner(ctx context.Context, userID string) ([]domain.Survey, error)
}

// QuestionCatalog resolves a question's type tag and options (cached in infra).
type QuestionCatalog interface {
	Question(ctx context.Context, questionID string) (domain.Question, error)
}

// ResponseSource reads raw response records, ordered by id.
type ResponseSource interface {
	SessionsBySurvey(ctx context.Context, surveyID string) ([]domain.ResponseSession, error)
	AnswersByQuestion(ctx context.Context, questionID string) ([]domain.Answer, error)
}

// ActivityFeed is the user activity log, newest first.
type ActivityFeed interface {
	RecentActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error)
}

// Stores groups the committed-aggregate stores for the three target kinds.
type Stores struct {
	Surveys    AggregateStore[domain.SurveyAggregate]
	Questions  AggregateStore[domain.QuestionAggregate]
	Dashboards AggregateStore[domain.DashboardAggregate]
}

// Options tunes an AnalyticsService. Zero values fall back to defaults.
type Options struct {
	Location             *time.Location
	MaxAge               time.Duration
	DashboardConcurrency int
	Classifier           aggregate.DeviceClassifier
	Logger               logrus.FieldLogger
	Now                  func() time.Time
	// StaleMarkers returns the shared marker store for a target kind; nil keeps markers in-process.
	StaleMarkers func(kind string) StaleMarkers
	// Leases returns the cross-process lease store for a target kind; nil serializes in-process only.
	Leases func(kind string) TargetLeases
}

const (
	KindSurvey    = "survey"
	KindQuestion  = "question"
	KindDashboard = "dashboard"

	recentActivityLimit = 10
	defaultTrendHours   = 24
	maxTrendHours       = 24 * 7
)

// DashboardView is the dashboard aggregate plus the external activity feed.
type DashboardView struct {
	domain.DashboardAggregate
	RecentActivity []domain.Activity `json:"recentActivity"`
}

// AnalyticsService exposes get-or-recompute, trigger and read accessors for
// survey, question and dashboard aggregates.
type AnalyticsService struct {
	defs      DefinitionSource
	questions QuestionCatalog
	responses ResponseSource
	activity  ActivityFeed

	surveys    *Coordinator[domain.SurveyAggregate]
	questionsC *Coordinator[domain.QuestionAggregate]
	dashboards *Coordinator[domain.DashboardAggregate]

	loc         *time.Location
	classifier  aggregate.DeviceClassifier
	concurrency int
	now         func() time.Time
	log         logrus.FieldLogger
}

func NewAnalyticsService(defs DefinitionSource, questions QuestionCatalog, responses ResponseSource, activity ActivityFeed, stores Stores, opts Options) *AnalyticsService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DashboardConcurrency <= 0 {
		opts.DashboardConcurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &AnalyticsService{
		defs:        defs,
		questions:   questions,
		responses:   responses,
		activity:    activity,
		loc:         opts.Location,
		classifier:  opts.Classifier,
		concurrency: opts.DashboardConcurrency,
		now:         opts.Now,
		log:         opts.Logger,
	}

	coordOpts := func(kind string) []CoordinatorOption {
		o := []CoordinatorOption{WithLogger(opts.Logger), WithClock(opts.Now), WithMaxAge(opts.MaxAge)}
		if opts.StaleMarkers != nil {
			o = append(o, WithStaleMarkers(opts.StaleMarkers(kind)))
		}
		if opts.Leases != nil {
			o = append(o, WithTargetLeases(opts.Leases(kind)))
		}
		return o
	}
	s.surveys = NewCoordinator(KindSurvey, s.computeSurvey, stores.Surveys, coordOpts(KindSurvey)...)
	s.questionsC = NewCoordinator(KindQuestion, s.computeQuestion, stores.Questions, coordOpts(KindQuestion)...)
	s.dashboards = NewCoordinator(KindDashboard, s.computeDashboard, stores.Dashboards, coordOpts(KindDashboard)...)
	return s
}

// SurveyAnalytics returns the survey aggregate, recomputing it when missing or stale.
func (s *AnalyticsService) SurveyAnalytics(ctx context.Context, surveyID string) (domain.SurveyAggregate, error) {
	return s.surveys.GetOrRecompute(ctx, surveyID)
}

// QuestionAnalytics returns the question aggregate, recomputing it when missing or stale.
func (s *AnalyticsService) QuestionAnalytics(ctx context.Context, questionID string) (domain.QuestionAggregate, error) {
	return s.questionsC.GetOrRecompute(ctx, questionID)
}

// SurveyQuestionAnalytics returns the aggregate of every question in a survey,
// most answered first.
func (s *AnalyticsService) SurveyQuestionAnalytics(ctx context.Context, surveyID string) ([]domain.QuestionAggregate, error) {
	if _, err := s.defs.Survey(ctx, surveyID); err != nil {
		return nil, err
	}
	questions, err := s.defs.QuestionsBySurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.QuestionAggregate, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, q := range questions {
		g.Go(func() error {
			agg, err := s.questionsC.GetOrRecompute(gctx, q.ID)
			if err != nil && agg.QuestionID == "" {
				return err
			}
			out[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalResponses != out[j].TotalResponses {
			return out[i].TotalResponses > out[j].TotalResponses
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

// Dashboard returns the user's dashboard aggregate with the recent activity feed.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID string) (DashboardView, error) {
	agg, err := s.dashboards.GetOrRecompute(ctx, userID)
	if err != nil && agg.UserID == "" {
		return DashboardView{}, err
	}
	activity, actErr := s.RecentActivity(ctx, userID)
	if actErr != nil {
		s.log.WithError(actErr).WithField("user", userID).Warn("load recent activity")
		activity = []domain.Activity{}
	}
	return DashboardView{DashboardAggregate: agg, RecentActivity: activity}, err
}

// RecentActivity returns the newest activity log entries for the user.
func (s *AnalyticsService) RecentActivity(ctx context.Context, userID string) ([]domain.Activity, error) {
	return s.activity.RecentActivity(ctx, userID, recentActivityLimit)
}

// HourlyTrend counts a survey's sessions per hour over the last hours, oldest first.
// It reads raw sessions directly and does not touch the committed aggregates.
func (s *AnalyticsService) HourlyTrend(ctx context.Context, surveyID string, hours int) (domain.Trend, error) {
	if hours <= 0 {
		hours = defaultTrendHours
	}
	hours = min(hours, maxTrendHours)

	if _, err := s.defs.Survey(ctx, surveyID); err != nil {
		return domain.Trend{}, err
	}
	sessions, err := s.responses.SessionsBySurvey(ctx, surveyID)
	if err != nil {
		return domain.Trend{}, err
	}
	times := make([]time.Time, 0, len(sessions))
	for _, sess := range sessions {
		times = append(times, sess.StartedAt)
	}
	now := s.now()
	return domain.Trend{
		SurveyID:        surveyID,
		RecentResponses: aggregate.CountInWindow(times, now, s.loc, aggregate.LastHours(hours)),
		Buckets:         aggregate.HourlyBuckets(times, now, s.loc, hours),
		GeneratedAt:     now,
	}, nil
}

// TriggerSurvey starts a background recomputation. An unknown survey is
// reported immediately and never scheduled.
func (s *AnalyticsService) TriggerSurvey(ctx context.Context, surveyID string) (*Handle[domain.SurveyAggregate], error) {
	if _, err := s.defs.Survey(ctx, surveyID); err != nil {
		return nil, err
	}
	return s.surveys.Trigger(surveyID), nil
}

func (s *AnalyticsService) TriggerQuestion(ctx context.Context, questionID string) (*Handle[domain.QuestionAggregate], error) {
	if _, err := s.questions.Question(ctx, questionID); err != nil {
		return nil, err
	}
	return s.questionsC.Trigger(questionID), nil
}

func (s *AnalyticsService) TriggerDashboard(ctx context.Context, userID string) (*Handle[domain.DashboardAggregate], error) {
	if _, err := s.defs.SurveysByOwner(ctx, userID); err != nil {
		return nil, err
	}
	return s.dashboards.Trigger(userID), nil
}

func (s *AnalyticsService) RecomputeSurvey(ctx context.Context, surveyID string) (domain.SurveyAggregate, error) {
	return s.surveys.Recompute(ctx, surveyID)
}

func (s *AnalyticsService) RecomputeQuestion(ctx context.Context, questionID string) (domain.QuestionAggregate, error) {
	return s.questionsC.Recompute(ctx, questionID)
}

func (s *AnalyticsService) RecomputeDashboard(ctx context.Context, userID string) (domain.DashboardAggregate, error) {
	return s.dashboards.Recompute(ctx, userID)
}

// ResponseSubmitted handles the "new response" event: the survey, its questions and
// the owner's dashboard are marked stale and recomputed in the background.
func (s *AnalyticsService) ResponseSubmitted(ctx context.Context, surveyID string) error {
	survey, err := s.defs.Survey(ctx, surveyID)
	if err != nil {
		return err
	}
	questions, err := s.defs.QuestionsBySurvey(ctx, surveyID)
	if err != nil {
		return err
	}

	var errs []error
	errs = append(errs, s.surveys.Invalidate(ctx, surveyID))
	s.surveys.Trigger(surveyID)
	for _, q := range questions {
		errs = append(errs, s.questionsC.Invalidate(ctx, q.ID))
		s.questionsC.Trigger(q.ID)
	}
	if survey.OwnerID != "" {
		errs = append(errs, s.dashboards.Invalidate(ctx, survey.OwnerID))
		s.dashboards.Trigger(survey.OwnerID)
	}
	return errors.Join(errs...)
}

// SubscribeSurvey streams every committed aggregate of a survey.
func (s *AnalyticsService) SubscribeSurvey(surveyID string) (<-chan domain.SurveyAggregate, func()) {
	return s.surveys.Subscribe(surveyID)
}

// Refresh re-triggers every target seen so far; used by the periodic refresher.
func (s *AnalyticsService) Refresh() int {
	return len(s.surveys.Refresh()) + len(s.questionsC.Refresh()) + len(s.dashboards.Refresh())
}

// Close cancels in-flight recomputations without committing them.
func (s *AnalyticsService) Close() {
	s.surveys.Close()
	s.questionsC.Close()
	s.dashboards.Close()
}

func (s *AnalyticsService) computeSurvey(ctx context.Context, surveyID string) (domain.SurveyAggregate, error) {
	if _, err := s.defs.Survey(ctx, surveyID); err != nil {
		return domain.SurveyAggregate{}, err
	}
	sessions, err := s.responses.SessionsBySurvey(ctx, surveyID)
	if err != nil {
		return domain.SurveyAggregate{}, err
	}
	return aggregate.SummarizeSurvey(surveyID, sessions, s.classifier, s.now()), nil
}

func (s *AnalyticsService) computeQuestion(ctx context.Context, questionID string) (domain.QuestionAggregate, error) {
	q, err := s.questions.Question(ctx, questionID)
	if err != nil {
		return domain.QuestionAggregate{}, err
	}
	sessions, err := s.responses.SessionsBySurvey(ctx, q.SurveyID)
	if err != nil {
		return domain.QuestionAggregate{}, err
	}
	answers, err := s.responses.AnswersByQuestion(ctx, questionID)
	if err != nil {
		return domain.QuestionAggregate{}, err
	}

	res := aggregate.SummarizeQuestion(q, answers, len(sessions), s.now())
	logger := s.log.WithFields(logrus.Fields{"question": questionID, "survey": q.SurveyID})
	for _, bad := range res.Invalid {
		logger.WithError(bad.Err).WithField("answer", bad.AnswerID).Debug("answer excluded from statistics")
	}
	if res.SkipClamped {
		logger.WithFields(logrus.Fields{"answers": len(answers), "sessions": len(sessions)}).
			Warn("more answers than sessions; skipped count clamped to 0")
	}
	return res.Aggregate, nil
}

func (s *AnalyticsService) computeDashboard(ctx context.Context, userID string) (domain.DashboardAggregate, error) {
	surveys, err := s.defs.SurveysByOwner(ctx, userID)
	if err != nil {
		return domain.DashboardAggregate{}, err
	}

	aggs := make([]domain.SurveyAggregate, len(surveys))
	sessionGroups := make([][]domain.ResponseSession, len(surveys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, survey := range surveys {
		g.Go(func() error {
			agg, err := s.surveyForDashboard(gctx, survey.ID)
			if err != nil {
				return err
			}
			sessions, err := s.responses.SessionsBySurvey(gctx, survey.ID)
			if err != nil {
				return err
			}
			aggs[i] = agg
			sessionGroups[i] = sessions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.DashboardAggregate{}, err
	}

	byID := make(map[string]domain.SurveyAggregate, len(surveys))
	for i, survey := range surveys {
		byID[survey.ID] = aggs[i]
	}
	times := aggregate.MergeSessionTimes(sessionGroups...)
	return aggregate.ComposeDashboard(userID, surveys, byID, times, s.now(), s.loc), nil
}

// surveyForDashboard falls back to the last committed survey aggregate when a
// refresh fails; the dashboard tolerates surveys of differing recency.
func (s *AnalyticsService) surveyForDashboard(ctx context.Context, surveyID string) (domain.SurveyAggregate, error) {
	agg, err := s.surveys.GetOrRecompute(ctx, surveyID)
	if err == nil {
		return agg, nil
	}
	if errors.Is(err, domain.ErrComputationFailed) {
		if cur, ok, loadErr := s.surveys.Current(ctx, surveyID); loadErr == nil && ok {
			s.log.WithError(err).WithField("survey", surveyID).Warn("using last committed survey aggregate for dashboard")
			return cur, nil
		}
	}
	return domain.SurveyAggregate{}, err
}
