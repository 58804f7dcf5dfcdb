// internal/core/services/holder_test.go
package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyclosproject/searchd/internal/core/services"
	"github.com/cyclosproject/searchd/test/helpers"
)

func TestResultHolder_CompleteStoresLatest(t *testing.T) {
	h := services.NewResultHolder()

	token := h.Begin()
	_, rendering := h.Result()
	assert.True(t, rendering)

	page := helpers.CreateTestPage(3, 1)
	require.True(t, h.Complete(token, page))

	got, rendering := h.Result()
	assert.False(t, rendering)
	assert.Equal(t, page, got)
}

func TestResultHolder_StaleResponseDiscarded(t *testing.T) {
	h := services.NewResultHolder()

	first := h.Begin()
	second := h.Begin()

	// The newer request completes first.
	newer := helpers.CreateTestPage(2, 2)
	require.True(t, h.Complete(second, newer))

	// The older response arrives late and must be dropped.
	older := helpers.CreateTestPage(5, 1)
	assert.False(t, h.Complete(first, older))

	got, rendering := h.Result()
	assert.False(t, rendering)
	assert.Equal(t, newer, got)
}

func TestResultHolder_FailKeepsPreviousPage(t *testing.T) {
	h := services.NewResultHolder()

	token := h.Begin()
	good := helpers.CreateTestPage(3, 1)
	require.True(t, h.Complete(token, good))

	// Next fetch clears the screen while in flight...
	token = h.Begin()
	got, rendering := h.Result()
	assert.True(t, rendering)
	assert.Nil(t, got)

	// ...but on error the stale-but-valid page comes back.
	require.True(t, h.Fail(token))
	got, rendering = h.Result()
	assert.False(t, rendering)
	assert.Equal(t, good, got)
}

func TestResultHolder_StaleFailureIgnored(t *testing.T) {
	h := services.NewResultHolder()

	first := h.Begin()
	second := h.Begin()

	page := helpers.CreateTestPage(1, 1)
	require.True(t, h.Complete(second, page))
	assert.False(t, h.Fail(first))

	got, rendering := h.Result()
	assert.False(t, rendering)
	assert.Equal(t, page, got)
}
