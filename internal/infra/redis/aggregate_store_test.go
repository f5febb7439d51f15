package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"survey-analytics-service/internal/app"
	"survey-analytics-service/internal/domain"
)

func TestAggregateStoreRoundTrip(t *testing.T) {
	mr := runMiniredis(t)
	store := NewAggregateStore[domain.QuestionAggregate](newClient(mr), "question", 0)
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "q1"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	agg := domain.QuestionAggregate{
		QuestionID:         "q1",
		QuestionType:       domain.QuestionRating,
		TotalResponses:     3,
		AverageRating:      4,
		RatingDistribution: map[string]int{"3": 1, "4": 1, "5": 1},
		CalculatedAt:       time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC),
	}
	if err := store.Replace(ctx, "q1", agg); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, ok, err := store.Load(ctx, "q1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.AverageRating != 4 || got.RatingDistribution["5"] != 1 || !got.CalculatedAt.Equal(agg.CalculatedAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestAggregateStoreCorruptValue(t *testing.T) {
	mr := runMiniredis(t)
	store := NewAggregateStore[domain.SurveyAggregate](newClient(mr), "survey", 0)
	if err := mr.Set("survey:sv1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := store.Load(context.Background(), "sv1"); err == nil {
		t.Fatalf("expected decode error")
	}
}

// Two coordinators sharing Redis behave like two service instances: a failure
// on one marks the target stale for both.
func TestCoordinatorsShareStateThroughRedis(t *testing.T) {
	mr := runMiniredis(t)
	client := newClient(mr)
	ctx := context.Background()

	newCoord := func(fail bool) *app.Coordinator[domain.SurveyAggregate] {
		return app.NewCoordinator(app.KindSurvey, func(ctx context.Context, key string) (domain.SurveyAggregate, error) {
			if fail {
				return domain.SurveyAggregate{}, errors.New("upstream down")
			}
			return domain.SurveyAggregate{SurveyID: key, TotalResponses: 2}, nil
		},
			NewAggregateStore[domain.SurveyAggregate](client, "survey", 0),
			app.WithStaleMarkers(NewStaleMarkers(client, "survey")),
		)
	}
	healthy, broken := newCoord(false), newCoord(true)
	defer healthy.Close()
	defer broken.Close()

	if _, err := healthy.Recompute(ctx, "sv1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	prior, err := broken.GetOrRecompute(ctx, "sv1")
	if err != nil {
		t.Fatalf("fresh aggregate committed by another instance should be served: %v", err)
	}
	if prior.TotalResponses != 2 {
		t.Fatalf("unexpected aggregate %+v", prior)
	}

	if _, err := broken.Recompute(ctx, "sv1"); !errors.Is(err, domain.ErrComputationFailed) {
		t.Fatalf("expected failure, got %v", err)
	}
	if !mr.Exists("survey:stale:sv1") {
		t.Fatalf("failure should mark the target stale in redis")
	}
	if _, err := healthy.GetOrRecompute(ctx, "sv1"); err != nil {
		t.Fatalf("healthy instance recompute: %v", err)
	}
	if mr.Exists("survey:stale:sv1") {
		t.Fatalf("successful commit should clear the stale marker")
	}
}
