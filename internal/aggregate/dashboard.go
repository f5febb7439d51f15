package aggregate

import (
	"sort"
	"time"

	"survey-analytics-service/internal/domain"
)

const topSurveyLimit = 5

// MergeSessionTimes unions the sessions of several surveys by session id and
// returns each distinct session's start time once.
func MergeSessionTimes(groups ...[]domain.ResponseSession) []time.Time {
	seen := make(map[string]struct{})
	var out []time.Time
	for _, sessions := range groups {
		for _, s := range sessions {
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s.StartedAt)
		}
	}
	return out
}

// ComposeDashboard rolls the survey aggregates of one user into a dashboard record.
// sessionTimes must already be merged across surveys (see MergeSessionTimes).
func ComposeDashboard(userID string, surveys []domain.Survey, aggs map[string]domain.SurveyAggregate, sessionTimes []time.Time, now time.Time, loc *time.Location) domain.DashboardAggregate {
	dash := domain.DashboardAggregate{
		UserID:          userID,
		TotalSurveys:    len(surveys),
		SurveysByStatus: make(map[domain.SurveyStatus]int),
		CalculatedAt:    now,
	}

	var rates, times []float64
	for _, s := range surveys {
		dash.SurveysByStatus[s.Status]++
		if s.Status == domain.SurveyPublished {
			dash.ActiveSurveys++
		}
		agg := aggs[s.ID]
		dash.TotalResponses += agg.TotalResponses
		// Surveys without responses are left out of the averages, not counted as 0%.
		if agg.TotalResponses > 0 {
			rates = append(rates, agg.CompletionRate())
			times = append(times, agg.AverageCompletionTime)
		}
	}
	dash.AverageCompletionRate = meanOrZero(rates)
	dash.AverageResponseTime = meanOrZero(times)

	dash.ResponsesToday = CountInWindow(sessionTimes, now, loc, Today)
	dash.ResponsesThisWeek = CountInWindow(sessionTimes, now, loc, Last7Days)
	dash.ResponsesThisMonth = CountInWindow(sessionTimes, now, loc, Last30Days)

	dash.TopSurveys = TopSurveys(surveys, aggs, topSurveyLimit)
	return dash
}

// TopSurveys ranks by response count, then most recently updated, then id.
func TopSurveys(surveys []domain.Survey, aggs map[string]domain.SurveyAggregate, limit int) []domain.TopSurvey {
	ranked := make([]domain.Survey, len(surveys))
	copy(ranked, surveys)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := aggs[ranked[i].ID].TotalResponses, aggs[ranked[j].ID].TotalResponses
		if ci != cj {
			return ci > cj
		}
		if !ranked[i].UpdatedAt.Equal(ranked[j].UpdatedAt) {
			return ranked[i].UpdatedAt.After(ranked[j].UpdatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]domain.TopSurvey, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, domain.TopSurvey{
			ID:            s.ID,
			Title:         s.Title,
			Status:        s.Status,
			ResponseCount: aggs[s.ID].TotalResponses,
		})
	}
	return out
}
