package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-analytics-service/internal/aggregate"
	"survey-analytics-service/internal/domain"
)

func TestComposeDashboard(t *testing.T) {
	surveys := []domain.Survey{
		{ID: "a", Title: "A", Status: domain.SurveyPublished, UpdatedAt: fixedNow.Add(-time.Hour)},
		{ID: "b", Title: "B", Status: domain.SurveyDraft, UpdatedAt: fixedNow},
		{ID: "c", Title: "C", Status: domain.SurveyPublished, UpdatedAt: fixedNow.Add(-2 * time.Hour)},
	}
	aggs := map[string]domain.SurveyAggregate{
		"a": {SurveyID: "a", TotalResponses: 4, CompletedResponses: 3, AverageCompletionTime: 70},
		"b": {SurveyID: "b"},
		"c": {SurveyID: "c", TotalResponses: 2, CompletedResponses: 2, AverageCompletionTime: 30},
	}
	times := []time.Time{
		fixedNow.Add(-time.Minute),
		fixedNow.AddDate(0, 0, -3),
		fixedNow.AddDate(0, 0, -20),
		fixedNow.AddDate(0, 0, -45),
	}

	dash := aggregate.ComposeDashboard("u1", surveys, aggs, times, fixedNow, time.UTC)

	assert.Equal(t, 3, dash.TotalSurveys)
	assert.Equal(t, 2, dash.ActiveSurveys)
	assert.Equal(t, map[domain.SurveyStatus]int{domain.SurveyPublished: 2, domain.SurveyDraft: 1}, dash.SurveysByStatus)
	assert.Equal(t, 6, dash.TotalResponses)
	assert.Equal(t, 1, dash.ResponsesToday)
	assert.Equal(t, 2, dash.ResponsesThisWeek)
	assert.Equal(t, 3, dash.ResponsesThisMonth)
	// (75 + 100) / 2: the survey with no responses is excluded, not treated as 0%.
	assert.InDelta(t, 87.5, dash.AverageCompletionRate, 1e-9)
	assert.InDelta(t, 50.0, dash.AverageResponseTime, 1e-9)

	require.Len(t, dash.TopSurveys, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{dash.TopSurveys[0].ID, dash.TopSurveys[1].ID, dash.TopSurveys[2].ID})
}

func TestTopSurveysTieBreakByRecentUpdate(t *testing.T) {
	var surveys []domain.Survey
	aggs := map[string]domain.SurveyAggregate{}
	for i, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		surveys = append(surveys, domain.Survey{ID: id, UpdatedAt: fixedNow.Add(time.Duration(i) * time.Minute)})
		aggs[id] = domain.SurveyAggregate{TotalResponses: 10}
	}
	aggs["s1"] = domain.SurveyAggregate{TotalResponses: 11}

	top := aggregate.TopSurveys(surveys, aggs, 5)
	require.Len(t, top, 5)
	got := make([]string, 0, len(top))
	for _, s := range top {
		got = append(got, s.ID)
	}
	assert.Equal(t, []string{"s1", "s6", "s5", "s4", "s3"}, got)
}

func TestMergeSessionTimesDeduplicates(t *testing.T) {
	shared := domain.ResponseSession{ID: "s1", StartedAt: fixedNow}
	merged := aggregate.MergeSessionTimes(
		[]domain.ResponseSession{shared, {ID: "s2", StartedAt: fixedNow}},
		[]domain.ResponseSession{shared},
	)
	if len(merged) != 2 {
		t.Fatalf("expected 2 distinct sessions, got %d", len(merged))
	}
	if got := aggregate.CountInWindow(merged, fixedNow, time.UTC, aggregate.Today); got != 2 {
		t.Fatalf("expected 2 responses today, got %d", got)
	}
}

func TestEmptyDashboard(t *testing.T) {
	dash := aggregate.ComposeDashboard("u1", nil, nil, nil, fixedNow, time.UTC)
	assert.Zero(t, dash.TotalSurveys)
	assert.Zero(t, dash.AverageCompletionRate)
	assert.Empty(t, dash.TopSurveys)
}
