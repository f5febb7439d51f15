package domain

import "time"

// SurveyStatus mirrors the lifecycle states owned by the survey definition service.
type SurveyStatus string

const (
	SurveyDraft     SurveyStatus = "draft"
	SurveyPublished SurveyStatus = "published"
	SurveyArchived  SurveyStatus = "archived"
)

// QuestionType is the type tag stored on a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionRating         QuestionType = "rating"
	QuestionEmojiScale     QuestionType = "emoji_scale"
	QuestionLikert         QuestionType = "likert"
	QuestionScale          QuestionType = "scale"
	QuestionText           QuestionType = "text"
	QuestionTextarea       QuestionType = "textarea"
	QuestionFileUpload     QuestionType = "file_upload"
	QuestionDate           QuestionType = "date"
	QuestionEmail          QuestionType = "email"
	QuestionPhone          QuestionType = "phone"
)

// QuestionFamily groups type tags that share an aggregation strategy.
type QuestionFamily int

const (
	FamilyOther QuestionFamily = iota
	FamilyChoiceSingle
	FamilyChoiceMulti
	FamilyRating
	FamilyFreeText
)

func (f QuestionFamily) String() string {
	switch f {
	case FamilyChoiceSingle:
		return "choice-single"
	case FamilyChoiceMulti:
		return "choice-multi"
	case FamilyRating:
		return "rating"
	case FamilyFreeText:
		return "free-text"
	default:
		return "other"
	}
}

// Family maps a type tag to its aggregation family; unknown tags are FamilyOther.
func (t QuestionType) Family() QuestionFamily {
	switch t {
	case QuestionMultipleChoice:
		return FamilyChoiceSingle
	case QuestionCheckbox:
		return FamilyChoiceMulti
	case QuestionRating, QuestionEmojiScale, QuestionLikert, QuestionScale:
		return FamilyRating
	case QuestionText, QuestionTextarea:
		return FamilyFreeText
	default:
		return FamilyOther
	}
}

// Survey is the read-only view of a survey definition.
type Survey struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"ownerId"`
	Title     string       `json:"title"`
	Status    SurveyStatus `json:"status"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Question is the read-only view of a question definition.
type Question struct {
	ID       string       `json:"id"`
	SurveyID string       `json:"surveyId"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
}

// ResponseSession is one respondent's attempt at a survey.
type ResponseSession struct {
	ID             string     `json:"id"`
	SurveyID       string     `json:"surveyId"`
	RespondentID   string     `json:"respondentId,omitempty"` // empty for anonymous sessions
	UserAgent      string     `json:"userAgent,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	Completed      bool       `json:"completed"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
}

// Answer is one respondent's value for one question within a session.
// Value holds the decoded JSON payload: float64, string, []any, or anything else the client sent.
type Answer struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	QuestionID  string    `json:"questionId"`
	Value       any       `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Activity is an entry of the user activity log feed.
type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// DeviceType is the result of classifying a session's user agent.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceUnknown DeviceType = "unknown"
)

// ExportFormat is the serialization requested for an export job.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
	ExportPDF  ExportFormat = "pdf"
	ExportJSON ExportFormat = "json"
)

// Valid reports whether f is one of the supported export formats.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportCSV, ExportXLSX, ExportPDF, ExportJSON:
		return true
	}
	return false
}

// ExportJob is a request/result record consumed by the export worker.
type ExportJob struct {
	ID                 string       `json:"id"`
	SurveyID           string       `json:"surveyId"`
	CreatedBy          string       `json:"createdBy"`
	Format             ExportFormat `json:"format"`
	IncludeMetadata    bool         `json:"includeMetadata"`
	AnonymizeResponses bool         `json:"anonymizeResponses"`
	RangeStart         *time.Time   `json:"rangeStart,omitempty"`
	RangeEnd           *time.Time   `json:"rangeEnd,omitempty"`
	Completed          bool         `json:"completed"`
	ErrorMessage       string       `json:"errorMessage,omitempty"`
	Location           string       `json:"location,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	CompletedAt        *time.Time   `json:"completedAt,omitempty"`
}

// Contains reports whether t falls inside the job's optional date range (both bounds inclusive).
func (j ExportJob) Contains(t time.Time) bool {
	if j.RangeStart != nil && t.Before(*j.RangeStart) {
		return false
	}
	if j.RangeEnd != nil && t.After(*j.RangeEnd) {
		return false
	}
	return true
}
