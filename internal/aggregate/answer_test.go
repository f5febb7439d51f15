package aggregate_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"survey-analytics-service/internal/aggregate"
	"survey-analytics-service/internal/domain"
)

func TestNormalizeShapes(t *testing.T) {
	cases := []struct {
		name   string
		raw    any
		family domain.QuestionFamily
		kind   aggregate.Kind
	}{
		{"rating number", float64(4), domain.FamilyRating, aggregate.KindNumber},
		{"rating json number", json.Number("4.5"), domain.FamilyRating, aggregate.KindNumber},
		{"rating string", "four", domain.FamilyRating, aggregate.KindInvalid},
		{"rating numeric string", "4", domain.FamilyRating, aggregate.KindInvalid},
		{"rating bool", true, domain.FamilyRating, aggregate.KindInvalid},
		{"rating nan", math.NaN(), domain.FamilyRating, aggregate.KindInvalid},
		{"single label", "Blue", domain.FamilyChoiceSingle, aggregate.KindCategory},
		{"single number", float64(3), domain.FamilyChoiceSingle, aggregate.KindCategory},
		{"single empty", "", domain.FamilyChoiceSingle, aggregate.KindInvalid},
		{"single list", []any{"a", "b"}, domain.FamilyChoiceSingle, aggregate.KindCategoryList},
		{"multi list", []any{"a", "b"}, domain.FamilyChoiceMulti, aggregate.KindCategoryList},
		{"multi single", "a", domain.FamilyChoiceMulti, aggregate.KindCategoryList},
		{"multi bad element", []any{"a", map[string]any{}}, domain.FamilyChoiceMulti, aggregate.KindInvalid},
		{"text", "hello there", domain.FamilyFreeText, aggregate.KindText},
		{"text number", float64(12), domain.FamilyFreeText, aggregate.KindInvalid},
		{"other date", "2024-01-01", domain.FamilyOther, aggregate.KindText},
		{"other object", map[string]any{"k": 1}, domain.FamilyOther, aggregate.KindInvalid},
		{"null", nil, domain.FamilyFreeText, aggregate.KindInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := aggregate.Normalize(tc.raw, tc.family)
			if v.Kind != tc.kind {
				t.Fatalf("expected %s, got %s", tc.kind, v.Kind)
			}
			if tc.kind == aggregate.KindInvalid && !errors.Is(err, domain.ErrInvalidAnswerShape) {
				t.Fatalf("expected invalid shape error, got %v", err)
			}
			if tc.kind != aggregate.KindInvalid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeSingleStringForMultiChoice(t *testing.T) {
	v, err := aggregate.Normalize("red", domain.FamilyChoiceMulti)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(v.Labels) != 1 || v.Labels[0] != "red" {
		t.Fatalf("expected [red], got %v", v.Labels)
	}
}
