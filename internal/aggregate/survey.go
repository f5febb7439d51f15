package aggregate

import (
	"time"

	"survey-analytics-service/internal/domain"
)

// DeviceClassifier maps a user agent to a device category.
type DeviceClassifier interface {
	Classify(userAgent string) domain.DeviceType
}

// SummarizeSurvey aggregates the sessions of one survey. Devices stays nil
// without a classifier; the breakdown is never guessed.
func SummarizeSurvey(surveyID string, sessions []domain.ResponseSession, classifier DeviceClassifier, now time.Time) domain.SurveyAggregate {
	agg := domain.SurveyAggregate{
		SurveyID:       surveyID,
		TotalResponses: len(sessions),
		CalculatedAt:   now,
	}

	var elapsed []float64
	perRespondent := make(map[string]int)
	for _, s := range sessions {
		if s.Completed {
			agg.CompletedResponses++
			// Zero or negative elapsed time is unreliable, not fast.
			if s.ElapsedSeconds > 0 {
				elapsed = append(elapsed, s.ElapsedSeconds)
			}
		}
		if s.RespondentID != "" {
			perRespondent[s.RespondentID]++
		}
	}
	agg.AbandonedResponses = agg.TotalResponses - agg.CompletedResponses
	agg.AverageCompletionTime = meanOrZero(elapsed)
	if median, err := LowerMedian(elapsed); err == nil {
		agg.MedianCompletionTime = median
	}

	agg.UniqueRespondents = len(perRespondent)
	for _, n := range perRespondent {
		if n > 1 {
			agg.ReturningRespondents++
		}
	}

	if classifier != nil {
		agg.Devices = classifyDevices(sessions, classifier)
	}
	return agg
}

func classifyDevices(sessions []domain.ResponseSession, classifier DeviceClassifier) *domain.DeviceBreakdown {
	out := &domain.DeviceBreakdown{}
	for _, s := range sessions {
		switch classifier.Classify(s.UserAgent) {
		case domain.DeviceDesktop:
			out.Desktop++
		case domain.DeviceMobile:
			out.Mobile++
		case domain.DeviceTablet:
			out.Tablet++
		default:
			out.Unknown++
		}
	}
	return out
}
