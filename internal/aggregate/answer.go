package aggregate

import (
	"encoding/json"
	"fmt"
	"math"

	"survey-analytics-service/internal/domain"
)

// Kind is the normalized shape of an answer value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNumber
	KindCategory
	KindCategoryList
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindCategory:
		return "category"
	case KindCategoryList:
		return "category-list"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Value is a normalized answer. Exactly one payload field is meaningful for each Kind.
type Value struct {
	Kind   Kind
	Number float64
	Label  string
	Labels []string
	Text   string
}

// Invalid reports whether the value was rejected during normalization.
func (v Value) Invalid() bool { return v.Kind == KindInvalid }

func invalid(family domain.QuestionFamily, raw any) (Value, error) {
	return Value{Kind: KindInvalid}, fmt.Errorf("%w: %T for %s question", domain.ErrInvalidAnswerShape, raw, family)
}

// Normalize converts a stored answer into a typed value for the question family.
// A value whose shape does not match degrades to KindInvalid with an error wrapping
// domain.ErrInvalidAnswerShape; it never panics.
func Normalize(raw any, family domain.QuestionFamily) (Value, error) {
	if raw == nil {
		return invalid(family, raw)
	}
	switch family {
	case domain.FamilyRating:
		if n, ok := asNumber(raw); ok {
			return Value{Kind: KindNumber, Number: n}, nil
		}
		return invalid(family, raw)

	case domain.FamilyChoiceSingle:
		if label, ok := asLabel(raw); ok {
			return Value{Kind: KindCategory, Label: label}, nil
		}
		if labels, ok := asLabels(raw); ok {
			return Value{Kind: KindCategoryList, Labels: labels}, nil
		}
		return invalid(family, raw)

	case domain.FamilyChoiceMulti:
		if labels, ok := asLabels(raw); ok {
			return Value{Kind: KindCategoryList, Labels: labels}, nil
		}
		if label, ok := asLabel(raw); ok {
			return Value{Kind: KindCategoryList, Labels: []string{label}}, nil
		}
		return invalid(family, raw)

	case domain.FamilyFreeText:
		if s, ok := raw.(string); ok {
			return Value{Kind: KindText, Text: s}, nil
		}
		return invalid(family, raw)

	default:
		if n, ok := asNumber(raw); ok {
			return Value{Kind: KindNumber, Number: n}, nil
		}
		if s, ok := raw.(string); ok {
			return Value{Kind: KindText, Text: s}, nil
		}
		if labels, ok := asLabels(raw); ok {
			return Value{Kind: KindCategoryList, Labels: labels}, nil
		}
		return invalid(family, raw)
	}
}

func asNumber(raw any) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func asLabel(raw any) (string, bool) {
	if s, ok := raw.(string); ok {
		return s, s != ""
	}
	if n, ok := asNumber(raw); ok {
		return formatNumber(n), true
	}
	return "", false
}

// asLabels accepts a list whose every element is a label; one bad element rejects the list.
func asLabels(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		for _, s := range v {
			if s == "" {
				return nil, false
			}
		}
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			label, ok := asLabel(elem)
			if !ok {
				return nil, false
			}
			out = append(out, label)
		}
		return out, true
	}
	return nil, false
}
