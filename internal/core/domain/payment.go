// internal/core/domain/payment.go
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Subject identifies the destination of a payment or voucher flow.
// Value may be a user id, an internal name, or free text typed by the
// user; Query marks the value as a search term rather than an exact
// identifier (the fallback path when an id-style lookup is rejected).
type Subject struct {
	Value string `json:"value"`
	Query bool   `json:"query,omitempty"`
}

// IsBlank reports whether no destination has been entered.
func (s Subject) IsBlank() bool {
	return strings.TrimSpace(s.Value) == ""
}

// AccountRef names an account type (the source side of a payment).
type AccountRef string

// PaymentType is one selectable transfer type offered for a subject.
type PaymentType struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	From AccountRef `json:"from"`
	To   AccountRef `json:"to"`
}

// FeeSpec describes one fee charged by a payment type.
type FeeSpec struct {
	Name    string          `json:"name"`
	Fixed   decimal.Decimal `json:"fixed"`
	Percent decimal.Decimal `json:"percent"`
}

// CustomFieldSpec describes an extra input a payment type requires.
type CustomFieldSpec struct {
	Internal string `json:"internal"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// TypeDetail is the full detail payload for one payment or voucher
// type: fee schedule, fixed-amount flag, custom fields.
type TypeDetail struct {
	Type         PaymentType       `json:"type"`
	FixedAmount  *decimal.Decimal  `json:"fixedAmount,omitempty"`
	Fees         []FeeSpec         `json:"fees,omitempty"`
	CustomFields []CustomFieldSpec `json:"customFields,omitempty"`
}

// TypeList is the set of types available for a subject. Details may
// carry type-data payloads the backend returned opportunistically
// alongside the list; callers seed their caches from it.
type TypeList struct {
	Types   []PaymentType `json:"types"`
	Details []*TypeDetail `json:"details,omitempty"`
}

// PaymentRequest is the terminal submission of the payment flow.
type PaymentRequest struct {
	Subject     Subject         `json:"subject"`
	Account     AccountRef      `json:"account"`
	TypeID      string          `json:"typeId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// PaymentResult is the backend acknowledgement of a performed payment.
type PaymentResult struct {
	TransactionID string    `json:"transactionId"`
	Date          time.Time `json:"date"`
}
