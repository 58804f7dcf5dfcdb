// internal/workers/cleanup_processor_test.go
package workers_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cyclosproject/searchd/internal/workers"
	"github.com/cyclosproject/searchd/test/helpers"
	"github.com/cyclosproject/searchd/test/mocks"
)

func TestCleanupProcessor_DeletesExpiredArtifacts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockCacheRepository(ctrl)
	store := newMemStore()

	_, err := store.Upload(context.Background(), "exports/sess-1/live.xlsx",
		bytes.NewReader([]byte("a")), "")
	require.NoError(t, err)
	_, err = store.Upload(context.Background(), "exports/sess-1/dead.xlsx",
		bytes.NewReader([]byte("b")), "")
	require.NoError(t, err)

	cache.EXPECT().
		Exists(gomock.Any(), workers.ExportStatusKey("live")).
		Return(true, nil)
	cache.EXPECT().
		Exists(gomock.Any(), workers.ExportStatusKey("dead")).
		Return(false, nil)

	p := workers.NewCleanupProcessor(store, cache, helpers.TestLogger())
	require.NoError(t, p.CleanupArtifacts(context.Background(), nil))

	ok, _ := store.Exists(context.Background(), "exports/sess-1/live.xlsx")
	assert.True(t, ok)
	ok, _ = store.Exists(context.Background(), "exports/sess-1/dead.xlsx")
	assert.False(t, ok)
}
