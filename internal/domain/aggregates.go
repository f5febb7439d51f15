package domain

import "time"

// Aggregate is implemented by every derived record the coordinator commits.
type Aggregate interface {
	ComputedAt() time.Time
}

// SurveyAggregate summarizes all response sessions of one survey.
type SurveyAggregate struct {
	SurveyID              string           `json:"surveyId"`
	TotalResponses        int              `json:"totalResponses"`
	CompletedResponses    int              `json:"completedResponses"`
	AbandonedResponses    int              `json:"abandonedResponses"`
	AverageCompletionTime float64          `json:"averageCompletionTime"`
	MedianCompletionTime  float64          `json:"medianCompletionTime"`
	UniqueRespondents     int              `json:"uniqueRespondents"`
	ReturningRespondents  int              `json:"returningRespondents"`
	Devices               *DeviceBreakdown `json:"devices,omitempty"`
	CalculatedAt          time.Time        `json:"calculatedAt"`
}

func (a SurveyAggregate) ComputedAt() time.Time { return a.CalculatedAt }

// CompletionRate is completed/total as a percentage, 0 for an empty survey.
func (a SurveyAggregate) CompletionRate() float64 {
	if a.TotalResponses == 0 {
		return 0
	}
	return float64(a.CompletedResponses) / float64(a.TotalResponses) * 100
}

// DeviceBreakdown is only populated when a user-agent classifier is configured.
type DeviceBreakdown struct {
	Desktop int `json:"desktop"`
	Mobile  int `json:"mobile"`
	Tablet  int `json:"tablet"`
	Unknown int `json:"unknown"`
}

// WordCount is one entry of a free-text question's common word list.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// QuestionAggregate summarizes all answers of one question.
// Only the fields matching the question's family are populated.
type QuestionAggregate struct {
	QuestionID         string         `json:"questionId"`
	SurveyID           string         `json:"surveyId"`
	QuestionType       QuestionType   `json:"questionType"`
	TotalResponses     int            `json:"totalResponses"`
	SkippedResponses   int            `json:"skippedResponses"`
	InvalidResponses   int            `json:"invalidResponses"`
	ResponseRate       float64        `json:"responseRate"`
	OptionCounts       map[string]int `json:"optionCounts,omitempty"`
	AverageRating      float64        `json:"averageRating"`
	RatingDistribution map[string]int `json:"ratingDistribution,omitempty"`
	AverageTextLength  float64        `json:"averageTextLength"`
	CommonWords        []WordCount    `json:"commonWords,omitempty"`
	CalculatedAt       time.Time      `json:"calculatedAt"`
}

func (a QuestionAggregate) ComputedAt() time.Time { return a.CalculatedAt }

// TopSurvey is an entry of the dashboard's top performing surveys view.
type TopSurvey struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Status        SurveyStatus `json:"status"`
	ResponseCount int          `json:"responseCount"`
}

// DashboardAggregate rolls up every survey owned by one user.
type DashboardAggregate struct {
	UserID                string               `json:"userId"`
	TotalSurveys          int                  `json:"totalSurveys"`
	ActiveSurveys         int                  `json:"activeSurveys"`
	SurveysByStatus       map[SurveyStatus]int `json:"surveysByStatus"`
	TotalResponses        int                  `json:"totalResponses"`
	ResponsesToday        int                  `json:"responsesToday"`
	ResponsesThisWeek     int                  `json:"responsesThisWeek"`
	ResponsesThisMonth    int                  `json:"responsesThisMonth"`
	AverageCompletionRate float64              `json:"averageCompletionRate"`
	AverageResponseTime   float64              `json:"averageResponseTime"`
	TopSurveys            []TopSurvey          `json:"topSurveys"`
	CalculatedAt          time.Time            `json:"calculatedAt"`
}

func (a DashboardAggregate) ComputedAt() time.Time { return a.CalculatedAt }

// TrendBucket is one hour of a trend chart.
type TrendBucket struct {
	Label string    `json:"hour"`
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Trend is an ad hoc hourly breakdown of a survey's sessions.
type Trend struct {
	SurveyID        string        `json:"surveyId"`
	RecentResponses int           `json:"recentResponses"`
	Buckets         []TrendBucket `json:"hourlyData"`
	GeneratedAt     time.Time     `json:"lastUpdated"`
}
