// internal/core/services/normalize.go
package services

import (
	"time"

	"github.com/cyclosproject/searchd/internal/core/domain"
)

// periodLayout is the canonical date representation sent to the
// backend for period bounds.
const periodLayout = "2006-01-02"

// ToSearchQuery derives the canonical search request from a raw filter
// form plus the screen's fixed context. It is a pure function: equal
// inputs yield deep-equal outputs, which the change detector relies on.
//
// UI-only fields (empty backend param) are dropped. Range filters
// collapse into a two-element array and are omitted entirely when both
// bounds are unset. Malformed or zero values are treated as absent,
// never as an error.
func ToSearchQuery(schema domain.ScreenSchema, form domain.FormValue, qc domain.QueryContext) domain.SearchQuery {
	q := domain.SearchQuery{
		Owner:       qc.Owner,
		AccountType: qc.AccountType,
		PageNumber:  1,
		PageSize:    qc.PageSize,
	}

	for name, v := range form {
		spec, ok := schema.Fields[name]
		if !ok || spec.Param == "" || v.IsZero() {
			continue
		}

		switch spec.Kind {
		case domain.FieldText:
			if spec.Param == "keywords" {
				q.Keywords = v.Text
			} else {
				q.Filters = addFilter(q.Filters, spec.Param, v.Text)
			}
		case domain.FieldID:
			q.Filters = addFilter(q.Filters, spec.Param, v.Text)
		case domain.FieldIDList:
			for _, id := range v.IDs {
				if id != "" {
					q.Filters = addFilter(q.Filters, spec.Param, id)
				}
			}
		case domain.FieldFlag:
			if v.Flag != nil {
				if *v.Flag {
					q.Filters = addFilter(q.Filters, spec.Param, "true")
				} else {
					q.Filters = addFilter(q.Filters, spec.Param, "false")
				}
			}
		case domain.FieldAmountRange:
			q.AmountRange = collapseAmountRange(v)
		case domain.FieldDateRange:
			q.Period = collapsePeriod(v)
		}
	}

	return q
}

func addFilter(filters map[string][]string, param, value string) map[string][]string {
	if filters == nil {
		filters = make(map[string][]string)
	}
	filters[param] = append(filters[param], value)
	return filters
}

// collapseAmountRange folds min/max bounds into the canonical
// two-element representation. An unset bound becomes the empty string;
// both unset yields nil (the filter is omitted).
func collapseAmountRange(v domain.FieldValue) []string {
	if v.Min == nil && v.Max == nil {
		return nil
	}
	lo, hi := "", ""
	if v.Min != nil {
		lo = v.Min.String()
	}
	if v.Max != nil {
		hi = v.Max.String()
	}
	return []string{lo, hi}
}

// collapsePeriod folds from/to dates into the canonical period pair.
func collapsePeriod(v domain.FieldValue) []string {
	if v.From == nil && v.To == nil {
		return nil
	}
	lo, hi := "", ""
	if v.From != nil {
		lo = v.From.UTC().Format(periodLayout)
	}
	if v.To != nil {
		hi = v.To.UTC().Format(periodLayout)
	}
	return []string{lo, hi}
}

// ParsePeriodBound parses a canonical period bound back into a time.
// Used by fetcher adapters; empty strings mean "unbounded".
func ParsePeriodBound(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
