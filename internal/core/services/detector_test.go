// internal/core/services/detector_test.go
package services_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/services"
)

func TestShouldFetch(t *testing.T) {
	base := domain.FormValue{
		"keywords": {Kind: domain.FieldText, Text: "rent"},
	}
	changed := domain.FormValue{
		"keywords": {Kind: domain.FieldText, Text: "rental"},
	}

	tests := []struct {
		name     string
		prevType domain.ResultType
		nextType domain.ResultType
		prev     domain.FormValue
		next     domain.FormValue
		want     bool
	}{
		{
			name:     "first_load_fetches",
			prevType: domain.ResultTypeNone,
			nextType: domain.ResultTypeList,
			want:     true,
		},
		{
			name:     "leaving_categories_fetches_even_when_equal",
			prevType: domain.ResultTypeCategories,
			nextType: domain.ResultTypeList,
			prev:     base,
			next:     base,
			want:     true,
		},
		{
			name:     "entering_categories_never_fetches",
			prevType: domain.ResultTypeList,
			nextType: domain.ResultTypeCategories,
			prev:     base,
			next:     changed,
			want:     false,
		},
		{
			name:     "deep_equal_value_is_suppressed",
			prevType: domain.ResultTypeList,
			nextType: domain.ResultTypeList,
			prev:     base,
			next:     base.Clone(),
			want:     false,
		},
		{
			name:     "material_change_fetches",
			prevType: domain.ResultTypeList,
			nextType: domain.ResultTypeList,
			prev:     base,
			next:     changed,
			want:     true,
		},
		{
			name:     "unset_key_equals_zero_value",
			prevType: domain.ResultTypeList,
			nextType: domain.ResultTypeList,
			prev:     domain.FormValue{},
			next:     domain.FormValue{"amount": {Kind: domain.FieldAmountRange}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.ShouldFetch(tt.prevType, tt.nextType, tt.prev, tt.next)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := services.NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { fired.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return fired.Load() == 1 },
		500*time.Millisecond, 10*time.Millisecond)

	// Settles at exactly one firing.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebouncer_StopPreventsPendingFire(t *testing.T) {
	d := services.NewDebouncer(20 * time.Millisecond)

	var fired atomic.Int32
	d.Trigger(func() { fired.Add(1) })
	d.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Triggers after Stop are rejected.
	d.Trigger(func() { fired.Add(1) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
