package aggregate

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"survey-analytics-service/internal/domain"
)

const (
	commonWordLimit = 10
	minWordRunes    = 4
)

// InvalidAnswer records an answer excluded from the statistics.
type InvalidAnswer struct {
	AnswerID string
	Err      error
}

// QuestionResult is the aggregate plus diagnostics the caller may want to log.
type QuestionResult struct {
	Aggregate domain.QuestionAggregate
	Invalid   []InvalidAnswer
	// SkipClamped is set when there were more answers than sessions.
	SkipClamped bool
}

// SummarizeQuestion aggregates every answer of q. sessionCount is the number of
// sessions of the owning survey and drives the skip accounting.
func SummarizeQuestion(q domain.Question, answers []domain.Answer, sessionCount int, now time.Time) QuestionResult {
	family := q.Type.Family()
	agg := domain.QuestionAggregate{
		QuestionID:     q.ID,
		SurveyID:       q.SurveyID,
		QuestionType:   q.Type,
		TotalResponses: len(answers),
		CalculatedAt:   now,
	}

	var res QuestionResult
	agg.SkippedResponses = sessionCount - agg.TotalResponses
	if agg.SkippedResponses < 0 {
		agg.SkippedResponses = 0
		res.SkipClamped = true
	}
	if sessionCount > 0 {
		agg.ResponseRate = float64(agg.TotalResponses) / float64(sessionCount) * 100
	}

	values := make([]Value, 0, len(answers))
	for _, a := range answers {
		v, err := Normalize(a.Value, family)
		if err != nil {
			agg.InvalidResponses++
			res.Invalid = append(res.Invalid, InvalidAnswer{AnswerID: a.ID, Err: err})
			continue
		}
		values = append(values, v)
	}

	switch family {
	case domain.FamilyChoiceSingle, domain.FamilyChoiceMulti:
		agg.OptionCounts = countOptions(values)
	case domain.FamilyRating:
		agg.AverageRating, agg.RatingDistribution = summarizeRatings(values)
	case domain.FamilyFreeText:
		agg.AverageTextLength, agg.CommonWords = summarizeText(values)
	}

	res.Aggregate = agg
	return res
}

// countOptions fans a category list out to one count per element.
func countOptions(values []Value) map[string]int {
	counts := make(map[string]int)
	for _, v := range values {
		switch v.Kind {
		case KindCategory:
			counts[v.Label]++
		case KindCategoryList:
			for _, label := range v.Labels {
				counts[label]++
			}
		}
	}
	return counts
}

func summarizeRatings(values []Value) (float64, map[string]int) {
	ratings := make([]float64, 0, len(values))
	distribution := make(map[string]int)
	for _, v := range values {
		if v.Kind != KindNumber {
			continue
		}
		ratings = append(ratings, v.Number)
		distribution[formatNumber(v.Number)]++
	}
	return meanOrZero(ratings), distribution
}

func summarizeText(values []Value) (float64, []domain.WordCount) {
	lengths := make([]float64, 0, len(values))
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if v.Kind != KindText {
			continue
		}
		lengths = append(lengths, float64(utf8.RuneCountInString(v.Text)))
		for _, word := range strings.Fields(strings.ToLower(v.Text)) {
			if utf8.RuneCountInString(word) < minWordRunes {
				continue
			}
			if _, seen := counts[word]; !seen {
				order = append(order, word)
			}
			counts[word]++
		}
	}
	return meanOrZero(lengths), topWords(order, counts, commonWordLimit)
}

// topWords orders by descending count; the stable sort over first-seen order breaks ties.
func topWords(order []string, counts map[string]int, limit int) []domain.WordCount {
	words := make([]domain.WordCount, 0, len(order))
	for _, w := range order {
		words = append(words, domain.WordCount{Word: w, Count: counts[w]})
	}
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].Count > words[j].Count
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}
