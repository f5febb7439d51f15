package aggregate_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-analytics-service/internal/aggregate"
	"survey-analytics-service/internal/domain"
)

var fixedNow = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func answers(values ...any) []domain.Answer {
	out := make([]domain.Answer, 0, len(values))
	for i, v := range values {
		out = append(out, domain.Answer{
			ID:         fmt.Sprintf("a%d", i+1),
			SessionID:  fmt.Sprintf("s%d", i+1),
			QuestionID: "q1",
			Value:      v,
		})
	}
	return out
}

func TestRatingQuestion(t *testing.T) {
	q := domain.Question{ID: "q1", SurveyID: "sv1", Type: domain.QuestionRating}
	res := aggregate.SummarizeQuestion(q, answers(float64(4), float64(5), float64(3)), 4, fixedNow)
	agg := res.Aggregate

	assert.Equal(t, 3, agg.TotalResponses)
	assert.Equal(t, 1, agg.SkippedResponses)
	assert.Equal(t, 0, agg.InvalidResponses)
	assert.InDelta(t, 4.0, agg.AverageRating, 1e-9)
	assert.Equal(t, map[string]int{"4": 1, "5": 1, "3": 1}, agg.RatingDistribution)
	assert.InDelta(t, 75.0, agg.ResponseRate, 1e-9)
}

func TestRatingInvalidCountsAsAnsweredButNotInMean(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionLikert}
	res := aggregate.SummarizeQuestion(q, answers(float64(4), float64(5), "n/a", float64(3)), 4, fixedNow)
	agg := res.Aggregate

	assert.Equal(t, 4, agg.TotalResponses)
	assert.Equal(t, 0, agg.SkippedResponses)
	assert.Equal(t, 1, agg.InvalidResponses)
	assert.InDelta(t, 4.0, agg.AverageRating, 1e-9)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, "a3", res.Invalid[0].AnswerID)
}

func TestRatingDistributionKeepsFractions(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionScale}
	agg := aggregate.SummarizeQuestion(q, answers(4.5, float64(4), 4.5), 3, fixedNow).Aggregate
	assert.Equal(t, map[string]int{"4.5": 2, "4": 1}, agg.RatingDistribution)
}

func TestChoiceMultiFanOut(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionCheckbox}
	ans := answers(
		[]any{"red", "blue"},
		[]any{"red"},
		[]any{"green", "blue", "red"},
	)
	agg := aggregate.SummarizeQuestion(q, ans, 3, fixedNow).Aggregate

	sum := 0
	for _, n := range agg.OptionCounts {
		sum += n
	}
	assert.Equal(t, 6, sum, "sum of category counts must equal selections, not answers")
	assert.Equal(t, map[string]int{"red": 3, "blue": 2, "green": 1}, agg.OptionCounts)
	assert.Equal(t, 3, agg.TotalResponses)
}

func TestChoiceSingleCounts(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionMultipleChoice}
	agg := aggregate.SummarizeQuestion(q, answers("yes", "no", "yes", nil), 5, fixedNow).Aggregate

	assert.Equal(t, map[string]int{"yes": 2, "no": 1}, agg.OptionCounts)
	assert.Equal(t, 4, agg.TotalResponses)
	assert.Equal(t, 1, agg.SkippedResponses)
	assert.Equal(t, 1, agg.InvalidResponses)
}

func TestFreeTextWords(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionTextarea}
	agg := aggregate.SummarizeQuestion(q, answers(
		"Great service and great food",
		"the food was cold",
		"Service was slow",
	), 3, fixedNow).Aggregate

	// 28, 17 and 16 runes.
	assert.InDelta(t, 61.0/3.0, agg.AverageTextLength, 1e-9)
	require.Len(t, agg.CommonWords, 5)
	assert.Equal(t, []domain.WordCount{
		{Word: "great", Count: 2},
		{Word: "service", Count: 2},
		{Word: "food", Count: 2},
		{Word: "cold", Count: 1},
		{Word: "slow", Count: 1},
	}, agg.CommonWords)
}

func TestFreeTextKeepsTopTen(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionText}
	text := "alpha bravo charlie delta echoes foxtrot golf hotel india juliet kilo lima mike"
	agg := aggregate.SummarizeQuestion(q, answers(text, "lima lima mike"), 2, fixedNow).Aggregate

	require.Len(t, agg.CommonWords, 10)
	assert.Equal(t, "lima", agg.CommonWords[0].Word)
	assert.Equal(t, 3, agg.CommonWords[0].Count)
	assert.Equal(t, "mike", agg.CommonWords[1].Word)
	assert.Equal(t, "alpha", agg.CommonWords[2].Word)
}

func TestUnknownTypeOnlyCounts(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionType("signature")}
	agg := aggregate.SummarizeQuestion(q, answers("x", "y"), 3, fixedNow).Aggregate

	assert.Equal(t, 2, agg.TotalResponses)
	assert.Equal(t, 1, agg.SkippedResponses)
	assert.Nil(t, agg.OptionCounts)
	assert.Nil(t, agg.RatingDistribution)
	assert.Nil(t, agg.CommonWords)
	assert.Zero(t, agg.AverageRating)
}

func TestSkipAccountingHoldsForAllTypes(t *testing.T) {
	types := []domain.QuestionType{
		domain.QuestionMultipleChoice, domain.QuestionCheckbox, domain.QuestionRating,
		domain.QuestionText, domain.QuestionDate,
	}
	for _, typ := range types {
		q := domain.Question{ID: "q1", Type: typ}
		agg := aggregate.SummarizeQuestion(q, answers("a", float64(2), nil), 7, fixedNow).Aggregate
		if agg.TotalResponses+agg.SkippedResponses != 7 {
			t.Fatalf("%s: total %d + skipped %d != 7", typ, agg.TotalResponses, agg.SkippedResponses)
		}
	}
}

func TestSkipClampedWhenAnswersExceedSessions(t *testing.T) {
	q := domain.Question{ID: "q1", Type: domain.QuestionRating}
	res := aggregate.SummarizeQuestion(q, answers(float64(1), float64(2)), 1, fixedNow)
	if !res.SkipClamped || res.Aggregate.SkippedResponses != 0 {
		t.Fatalf("expected clamped skip count, got %+v", res)
	}
}
