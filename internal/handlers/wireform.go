// internal/handlers/wireform.go
package handlers

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclosproject/searchd/internal/core/domain"
)

// wireFieldValue is the JSON shape of one filter value. Kind selects
// the variant; the other members are read per kind. Amounts travel as
// strings to keep decimal precision, dates as RFC 3339.
type wireFieldValue struct {
	Kind string   `json:"kind"`
	Text string   `json:"text,omitempty"`
	IDs  []string `json:"ids,omitempty"`
	Min  string   `json:"min,omitempty"`
	Max  string   `json:"max,omitempty"`
	From string   `json:"from,omitempty"`
	To   string   `json:"to,omitempty"`
	Flag *bool    `json:"flag,omitempty"`
}

func parseWireForm(fields map[string]wireFieldValue) (domain.FormValue, error) {
	form := make(domain.FormValue, len(fields))
	for name, wv := range fields {
		v, err := parseWireField(wv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		form[name] = v
	}
	return form, nil
}

func parseWireField(wv wireFieldValue) (domain.FieldValue, error) {
	switch wv.Kind {
	case "text":
		return domain.FieldValue{Kind: domain.FieldText, Text: wv.Text}, nil
	case "id":
		return domain.FieldValue{Kind: domain.FieldID, Text: wv.Text}, nil
	case "idList":
		return domain.FieldValue{Kind: domain.FieldIDList, IDs: wv.IDs}, nil
	case "amountRange":
		min, err := parseDecimalPtr(wv.Min)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("invalid min amount: %w", err)
		}
		max, err := parseDecimalPtr(wv.Max)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("invalid max amount: %w", err)
		}
		return domain.FieldValue{Kind: domain.FieldAmountRange, Min: min, Max: max}, nil
	case "dateRange":
		from, err := parseTimePtr(wv.From)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("invalid from date: %w", err)
		}
		to, err := parseTimePtr(wv.To)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("invalid to date: %w", err)
		}
		return domain.FieldValue{Kind: domain.FieldDateRange, From: from, To: to}, nil
	case "flag":
		return domain.FieldValue{Kind: domain.FieldFlag, Flag: wv.Flag}, nil
	default:
		return domain.FieldValue{}, fmt.Errorf("unknown field kind %q", wv.Kind)
	}
}

func parseDecimalPtr(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
