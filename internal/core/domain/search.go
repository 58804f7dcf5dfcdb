// internal/core/domain/search.go
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ResultType represents the active presentation mode of a search screen.
type ResultType string

// Result type constants
const (
	ResultTypeList       ResultType = "list"
	ResultTypeTiles      ResultType = "tiles"
	ResultTypeCategories ResultType = "categories"
	ResultTypeMap        ResultType = "map"
)

// ResultTypeNone is the implicit pre-state before a screen picks a mode.
const ResultTypeNone ResultType = ""

// FieldKind discriminates the variants a filter field may hold.
type FieldKind int

// Field kind constants
const (
	FieldText FieldKind = iota
	FieldID
	FieldIDList
	FieldAmountRange
	FieldDateRange
	FieldFlag
)

// FieldValue is the tagged variant stored for a single filter field.
// Only the members matching Kind are meaningful; the rest stay zero.
type FieldValue struct {
	Kind FieldKind
	Text string
	IDs  []string
	Min  *decimal.Decimal
	Max  *decimal.Decimal
	From *time.Time
	To   *time.Time
	Flag *bool
}

// IsZero reports whether the value carries no filter at all.
func (v FieldValue) IsZero() bool {
	switch v.Kind {
	case FieldText, FieldID:
		return v.Text == ""
	case FieldIDList:
		return len(v.IDs) == 0
	case FieldAmountRange:
		return v.Min == nil && v.Max == nil
	case FieldDateRange:
		return v.From == nil && v.To == nil
	case FieldFlag:
		return v.Flag == nil
	}
	return true
}

// Equal compares two field values structurally.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case FieldText, FieldID:
		return v.Text == o.Text
	case FieldIDList:
		if len(v.IDs) != len(o.IDs) {
			return false
		}
		for i := range v.IDs {
			if v.IDs[i] != o.IDs[i] {
				return false
			}
		}
		return true
	case FieldAmountRange:
		return decimalPtrEqual(v.Min, o.Min) && decimalPtrEqual(v.Max, o.Max)
	case FieldDateRange:
		return timePtrEqual(v.From, o.From) && timePtrEqual(v.To, o.To)
	case FieldFlag:
		return boolPtrEqual(v.Flag, o.Flag)
	}
	return false
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// FormValue maps declared filter-field names to their current values.
// Keys are fixed by the screen schema; a missing key means "unset".
type FormValue map[string]FieldValue

// Equal performs a deep comparison against another form value.
// Unset keys and zero values compare equal.
func (f FormValue) Equal(o FormValue) bool {
	for name, v := range f {
		if !v.Equal(o[name]) && !(v.IsZero() && o[name].IsZero()) {
			return false
		}
	}
	for name, v := range o {
		if _, ok := f[name]; !ok && !v.IsZero() {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the form value.
func (f FormValue) Clone() FormValue {
	out := make(FormValue, len(f))
	for name, v := range f {
		cp := v
		if v.IDs != nil {
			cp.IDs = append([]string(nil), v.IDs...)
		}
		out[name] = cp
	}
	return out
}

// FieldSpec declares a single filter field of a screen.
// Param is the backend parameter name; an empty Param marks the field
// as UI-only, dropped during normalization.
type FieldSpec struct {
	Kind  FieldKind
	Param string
}

// ScreenSchema declares the fixed filter-field set and allowed result
// types of one search screen.
type ScreenSchema struct {
	Name        string
	Fields      map[string]FieldSpec
	ResultTypes []ResultType
}

// ValidateForm checks a form value against the declared field set.
func (s ScreenSchema) ValidateForm(f FormValue) error {
	for name, v := range f {
		spec, ok := s.Fields[name]
		if !ok {
			return fmt.Errorf("screen %s: unknown filter field %q", s.Name, name)
		}
		if spec.Kind != v.Kind {
			return fmt.Errorf("screen %s: field %q has wrong kind", s.Name, name)
		}
	}
	return nil
}

// AllowsResultType reports whether rt is declared for this screen.
func (s ScreenSchema) AllowsResultType(rt ResultType) bool {
	for _, t := range s.ResultTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// QueryContext is the fixed, per-screen context merged into every
// search request alongside the filter form.
type QueryContext struct {
	Owner       string
	AccountType string
	PageSize    int
}

// SearchQuery is the canonical request payload derived from a form
// value plus the fixed context. It is fully derived and immutable once
// issued; only backend-recognized fields appear.
type SearchQuery struct {
	Owner       string              `json:"owner,omitempty"`
	AccountType string              `json:"accountType,omitempty"`
	Keywords    string              `json:"keywords,omitempty"`
	Filters     map[string][]string `json:"filters,omitempty"`
	AmountRange []string            `json:"amountRange,omitempty"`
	Period      []string            `json:"period,omitempty"`
	PageNumber  int                 `json:"pageNumber"`
	PageSize    int                 `json:"pageSize"`
}

// TransferRow is one result row of an account-history or transfer
// search screen.
type TransferRow struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Kind        string          `json:"kind"`
	Description string          `json:"description,omitempty"`
}

// PagedResult holds one fetched page. It is replaced wholesale on each
// successful fetch and never partially mutated.
type PagedResult struct {
	Items      []TransferRow `json:"items"`
	TotalCount int64         `json:"totalCount"`
	PageNumber int           `json:"pageNumber"`
}
