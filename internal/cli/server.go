package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"survey-analytics-service/internal/app"
	"survey-analytics-service/internal/config"
	"survey-analytics-service/internal/domain"
	"survey-analytics-service/internal/infra/memory"
	pgstore "survey-analytics-service/internal/infra/postgres"
	redisstore "survey-analytics-service/internal/infra/redis"
	transport "survey-analytics-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the analytics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// services is the wired application plus the connections it owns.
type services struct {
	analytics *app.AnalyticsService
	exports   *app.ExportService
	closers   []func()
}

func (s *services) Close() {
	if s.analytics != nil {
		s.analytics.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices wires Postgres and Redis when configured and falls back to
// in-memory stores otherwise.
func buildServices(ctx context.Context, cfg config.Config, log *logrus.Logger) (*services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("analytics timezone: %w", err)
	}
	svc := &services{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		svc.closers = append(svc.closers, func() { _ = redisClient.Close() })
	}
	aggregateTTL := config.TTLDuration(cfg.Redis.TTL, 0)

	var (
		defs      app.DefinitionSource
		responses app.ResponseSource
		activity  app.ActivityFeed
		loader    memory.QuestionLoader
		jobs      app.ExportJobRepository
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		svc.closers = append(svc.closers, pool.Close)
		source := pgstore.NewRecordSource(pool)
		defs, responses, activity, loader = source, source, source, source

		db := openBun(cfg.Postgres.URL)
		svc.closers = append(svc.closers, func() { _ = db.Close() })
		jobs = pgstore.NewExportJobRepository(db)
	} else {
		log.Warn("postgres not configured; serving the in-memory sample survey")
		store := sampleRecords(time.Now())
		defs, responses, activity, loader = store, store, store, store
		jobs = memory.NewExportJobRepository()
	}

	definitionTTL := config.TTLDuration(cfg.Analytics.DefinitionTTL, 10*time.Minute)
	var questions app.QuestionCatalog
	if redisClient != nil {
		questions = redisstore.NewQuestionCache(redisClient, loader, definitionTTL)
	} else {
		questions = memory.NewQuestionCache(loader, definitionTTL)
	}

	opts := app.Options{
		Location:             loc,
		MaxAge:               config.TTLDuration(cfg.Analytics.MaxAge, 15*time.Minute),
		DashboardConcurrency: cfg.Analytics.DashboardConcurrency,
		Logger:               log,
	}
	var stores app.Stores
	if redisClient != nil {
		stores = app.Stores{
			Surveys:    redisstore.NewAggregateStore[domain.SurveyAggregate](redisClient, aggregateKey(app.KindSurvey), aggregateTTL),
			Questions:  redisstore.NewAggregateStore[domain.QuestionAggregate](redisClient, aggregateKey(app.KindQuestion), aggregateTTL),
			Dashboards: redisstore.NewAggregateStore[domain.DashboardAggregate](redisClient, aggregateKey(app.KindDashboard), aggregateTTL),
		}
		opts.StaleMarkers = func(kind string) app.StaleMarkers {
			return redisstore.NewStaleMarkers(redisClient, aggregateKey(kind))
		}
		leaseTTL := config.TTLDuration(cfg.Analytics.LeaseTTL, 30*time.Second)
		opts.Leases = func(kind string) app.TargetLeases {
			return redisstore.NewTargetLeases(redisClient, aggregateKey(kind), leaseTTL)
		}
	} else {
		stores = app.Stores{
			Surveys:    memory.NewAggregateStore[domain.SurveyAggregate](),
			Questions:  memory.NewAggregateStore[domain.QuestionAggregate](),
			Dashboards: memory.NewAggregateStore[domain.DashboardAggregate](),
		}
	}

	svc.analytics = app.NewAnalyticsService(defs, questions, responses, activity, stores, opts)
	svc.exports = app.NewExportService(jobs, defs, responses, svc.analytics, log)
	return svc, nil
}

func aggregateKey(kind string) string {
	return "analytics:" + kind
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	mux := http.NewServeMux()
	transport.NewHandler(svc.analytics, svc.exports, log).Register(mux)
	mux.HandleFunc("GET /ws", transport.NewWSHandler(svc.analytics, log).ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket connections are long-lived
	}

	runCtx, stopRefresher := context.WithCancel(ctx)
	defer stopRefresher()
	refreshInterval := config.TTLDuration(cfg.Analytics.RefreshInterval, 5*time.Minute)
	go app.NewRefresher(svc.analytics, refreshInterval, log).Run(runCtx)

	go func() {
		log.WithField("port", finalPort).Info("starting survey analytics service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleRecords provides a small survey for running without Postgres.
func sampleRecords(now time.Time) *memory.RecordStore {
	store := memory.NewRecordStore()
	store.AddSurvey(domain.Survey{ID: "survey-1", OwnerID: "user-1", Title: "Product feedback", Status: domain.SurveyPublished, UpdatedAt: now.Add(-48 * time.Hour)})
	store.AddSurvey(domain.Survey{ID: "survey-2", OwnerID: "user-1", Title: "Onboarding (draft)", Status: domain.SurveyDraft, UpdatedAt: now.Add(-2 * time.Hour)})

	questions := []domain.Question{
		{ID: "q-rating", SurveyID: "survey-1", Text: "How satisfied are you?", Type: domain.QuestionRating},
		{ID: "q-plan", SurveyID: "survey-1", Text: "Which plan are you on?", Type: domain.QuestionMultipleChoice, Options: []string{"Free", "Pro", "Team"}},
		{ID: "q-features", SurveyID: "survey-1", Text: "Which features do you use?", Type: domain.QuestionCheckbox, Options: []string{"Reports", "Exports", "Alerts"}},
		{ID: "q-comments", SurveyID: "survey-1", Text: "Anything else?", Type: domain.QuestionTextarea},
	}
	for _, q := range questions {
		_ = store.AddQuestion(q)
	}

	type sample struct {
		ago      time.Duration
		elapsed  float64
		rating   float64
		plan     string
		features []any
		comment  string
	}
	samples := []sample{
		{ago: 30 * time.Minute, elapsed: 95, rating: 5, plan: "Pro", features: []any{"Reports", "Exports"}, comment: "Exports are great, reports could load faster"},
		{ago: 3 * time.Hour, elapsed: 140, rating: 4, plan: "Team", features: []any{"Reports"}, comment: "Reports are useful"},
		{ago: 26 * time.Hour, elapsed: 80, rating: 3, plan: "Free", features: []any{"Alerts"}},
		{ago: 5 * 24 * time.Hour, elapsed: 0, rating: 4, plan: "Pro"},
	}
	for i, s := range samples {
		id := fmt.Sprintf("session-%d", i+1)
		sess := domain.ResponseSession{ID: id, SurveyID: "survey-1", RespondentID: fmt.Sprintf("respondent-%d", i%3), StartedAt: now.Add(-s.ago)}
		if s.elapsed > 0 {
			done := sess.StartedAt.Add(time.Duration(s.elapsed) * time.Second)
			sess.CompletedAt = &done
			sess.Completed = true
			sess.ElapsedSeconds = s.elapsed
		}
		_ = store.AddSession(sess)
		_ = store.AddAnswer(domain.Answer{ID: id + "-rating", SessionID: id, QuestionID: "q-rating", Value: s.rating, SubmittedAt: sess.StartedAt})
		_ = store.AddAnswer(domain.Answer{ID: id + "-plan", SessionID: id, QuestionID: "q-plan", Value: s.plan, SubmittedAt: sess.StartedAt})
		if s.features != nil {
			_ = store.AddAnswer(domain.Answer{ID: id + "-features", SessionID: id, QuestionID: "q-features", Value: s.features, SubmittedAt: sess.StartedAt})
		}
		if s.comment != "" {
			_ = store.AddAnswer(domain.Answer{ID: id + "-comments", SessionID: id, QuestionID: "q-comments", Value: s.comment, SubmittedAt: sess.StartedAt})
		}
	}
	store.AddActivity("user-1", domain.Activity{Type: "survey_published", Description: "Published Product feedback", Timestamp: now.Add(-48 * time.Hour)})
	store.AddActivity("user-1", domain.Activity{Type: "survey_created", Description: "Created Onboarding (draft)", Timestamp: now.Add(-2 * time.Hour)})
	return store
}
