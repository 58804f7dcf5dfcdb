// internal/workers/export_processor_test.go
package workers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/workers"
	"github.com/cyclosproject/searchd/test/helpers"
	"github.com/cyclosproject/searchd/test/mocks"
)

// memStore is an in-memory ArtifactStore for worker tests.
type memStore struct {
	objects map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Upload(_ context.Context, key string, data io.Reader, _ string) (string, error) {
	if m.failPut {
		return "", errors.New("upload refused")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.objects[key] = b
	return "mem://" + key, nil
}

func (m *memStore) Download(_ context.Context, key string) ([]byte, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memStore) GetPresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://example.test/" + key, nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func TestExportProcessor_ProcessExport(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mocks.NewMockDataFetcher(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	store := newMemStore()

	// Two pages: a full synthetic page of 500 rows, then a short tail.
	fetcher.EXPECT().
		Search(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q domain.SearchQuery) (*domain.PagedResult, error) {
			assert.Equal(t, 500, q.PageSize)
			if q.PageNumber == 1 {
				return helpers.CreateTestPage(500, 1), nil
			}
			return helpers.CreateTestPage(3, 2), nil
		}).
		Times(2)

	var statuses []string
	cache.EXPECT().
		SetWithTTL(gomock.Any(), workers.ExportStatusKey("job-1"), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, value any, _ time.Duration) error {
			statuses = append(statuses, value.(workers.ExportStatus).State)
			return nil
		}).
		AnyTimes()

	p := workers.NewExportProcessor(fetcher, store, cache, helpers.TestLogger())

	task, err := workers.NewExportTask(workers.ExportTaskPayload{
		JobID:     "job-1",
		SessionID: "sess-1",
		Screen:    "account-history",
		Query:     domain.SearchQuery{Owner: "user1"},
	})
	require.NoError(t, err)

	require.NoError(t, p.ProcessExport(context.Background(), task))
	assert.Equal(t, []string{"processing", "completed"}, statuses)

	data, err := store.Download(context.Background(), "exports/sess-1/job-1.xlsx")
	require.NoError(t, err)

	file, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	assert.Equal(t, "account-history", file.Sheets[0].Name)
	// Header plus 503 data rows.
	assert.Equal(t, 504, file.Sheets[0].MaxRow)
}

func TestExportProcessor_FetchFailureMarksJobFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fetcher := mocks.NewMockDataFetcher(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	store := newMemStore()

	fetcher.EXPECT().
		Search(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("backend down"))

	var last workers.ExportStatus
	cache.EXPECT().
		SetWithTTL(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, value any, _ time.Duration) error {
			last = value.(workers.ExportStatus)
			return nil
		}).
		AnyTimes()

	p := workers.NewExportProcessor(fetcher, store, cache, helpers.TestLogger())

	task, err := workers.NewExportTask(workers.ExportTaskPayload{
		JobID: "job-2", SessionID: "sess-1", Screen: "account-history",
	})
	require.NoError(t, err)

	err = p.ProcessExport(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, "failed", last.State)
	assert.Contains(t, last.Error, "backend down")
	assert.Empty(t, store.objects)
}
