package aggregate_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"survey-analytics-service/internal/aggregate"
	"survey-analytics-service/internal/domain"
)

func session(id string, completed bool, elapsed float64) domain.ResponseSession {
	return domain.ResponseSession{
		ID:             id,
		SurveyID:       "sv1",
		StartedAt:      fixedNow.Add(-time.Hour),
		Completed:      completed,
		ElapsedSeconds: elapsed,
	}
}

func TestSurveyAggregateEndToEndExample(t *testing.T) {
	sessions := []domain.ResponseSession{
		session("s1", true, 50),
		session("s2", true, 70),
		session("s3", true, 90),
		session("s4", false, 0),
	}
	agg := aggregate.SummarizeSurvey("sv1", sessions, nil, fixedNow)

	assert.Equal(t, 4, agg.TotalResponses)
	assert.Equal(t, 3, agg.CompletedResponses)
	assert.Equal(t, 1, agg.AbandonedResponses)
	assert.InDelta(t, 70.0, agg.AverageCompletionTime, 1e-9)
	assert.InDelta(t, 70.0, agg.MedianCompletionTime, 1e-9)
	assert.Nil(t, agg.Devices, "device breakdown must not be fabricated without a classifier")
}

func TestMedianIsLowerMedianForEvenCounts(t *testing.T) {
	sessions := []domain.ResponseSession{
		session("s1", true, 40),
		session("s2", true, 10),
		session("s3", true, 30),
		session("s4", true, 20),
	}
	agg := aggregate.SummarizeSurvey("sv1", sessions, nil, fixedNow)
	assert.InDelta(t, 20.0, agg.MedianCompletionTime, 1e-9)
	assert.InDelta(t, 25.0, agg.AverageCompletionTime, 1e-9)
}

func TestNonPositiveElapsedTimesExcluded(t *testing.T) {
	sessions := []domain.ResponseSession{
		session("s1", true, 0),
		session("s2", true, -5),
		session("s3", true, 30),
		session("s4", false, 100),
	}
	agg := aggregate.SummarizeSurvey("sv1", sessions, nil, fixedNow)
	assert.Equal(t, 3, agg.CompletedResponses)
	assert.InDelta(t, 30.0, agg.AverageCompletionTime, 1e-9)
	assert.InDelta(t, 30.0, agg.MedianCompletionTime, 1e-9)
}

func TestEmptySurveyDefaultsToZero(t *testing.T) {
	agg := aggregate.SummarizeSurvey("sv1", nil, nil, fixedNow)
	assert.Zero(t, agg.TotalResponses)
	assert.Zero(t, agg.AverageCompletionTime)
	assert.Zero(t, agg.MedianCompletionTime)
}

func TestRespondentCounts(t *testing.T) {
	sessions := []domain.ResponseSession{
		{ID: "s1", RespondentID: "u1"},
		{ID: "s2", RespondentID: "u1"},
		{ID: "s3", RespondentID: "u2"},
		{ID: "s4"},
	}
	agg := aggregate.SummarizeSurvey("sv1", sessions, nil, fixedNow)
	assert.Equal(t, 2, agg.UniqueRespondents)
	assert.Equal(t, 1, agg.ReturningRespondents)
}

type keywordClassifier struct{}

func (keywordClassifier) Classify(ua string) domain.DeviceType {
	switch {
	case strings.Contains(ua, "iPad"):
		return domain.DeviceTablet
	case strings.Contains(ua, "Mobile"):
		return domain.DeviceMobile
	case ua == "":
		return domain.DeviceUnknown
	default:
		return domain.DeviceDesktop
	}
}

func TestDeviceBreakdownWithClassifier(t *testing.T) {
	sessions := []domain.ResponseSession{
		{ID: "s1", UserAgent: "Mozilla/5.0 (X11; Linux x86_64)"},
		{ID: "s2", UserAgent: "Mozilla/5.0 (iPhone) Mobile"},
		{ID: "s3", UserAgent: "Mozilla/5.0 (iPad)"},
		{ID: "s4"},
	}
	agg := aggregate.SummarizeSurvey("sv1", sessions, keywordClassifier{}, fixedNow)
	assert.Equal(t, &domain.DeviceBreakdown{Desktop: 1, Mobile: 1, Tablet: 1, Unknown: 1}, agg.Devices)
}
