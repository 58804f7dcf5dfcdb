// internal/handlers/session_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
	"github.com/cyclosproject/searchd/internal/handlers"
	"github.com/cyclosproject/searchd/test/helpers"
	"github.com/cyclosproject/searchd/test/mocks"
)

type sessionFixture struct {
	fetcher *mocks.MockDataFetcher
	state   *mocks.MockStateStore
	cache   *mocks.MockCacheRepository
	handler *handlers.SessionHandler
	mux     *http.ServeMux
}

func newSessionFixture(t *testing.T, mc *gomock.Controller) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		fetcher: mocks.NewMockDataFetcher(mc),
		state:   mocks.NewMockStateStore(mc),
		cache:   mocks.NewMockCacheRepository(mc),
	}

	f.state.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ports.ErrStateMiss).AnyTimes()
	f.state.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).AnyTimes()
	f.fetcher.EXPECT().Search(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q domain.SearchQuery) (*domain.PagedResult, error) {
			return helpers.CreateTestPage(2, q.PageNumber), nil
		}).AnyTimes()

	f.handler = handlers.NewSessionHandler(f.fetcher, f.state, f.cache, nil,
		[]domain.ScreenSchema{helpers.TransferScreenSchema()},
		handlers.SessionConfig{
			DebounceInterval: 20 * time.Millisecond,
			DefaultPageSize:  40,
			ExportRetention:  24 * time.Hour,
		}, helpers.TestLogger())
	t.Cleanup(f.handler.CloseAll)

	f.mux = http.NewServeMux()
	f.handler.RegisterRoutes(f.mux)
	return f
}

func (f *sessionFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func (f *sessionFixture) createSession(t *testing.T) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"screen":      "account-history",
		"owner":       "user1",
		"accountType": "acc1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["sessionId"])
	return resp["sessionId"]
}

func TestSessionHandler_CreateAndGetResults(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.ResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, int64(2), resp.TotalCount)
	assert.Equal(t, domain.ResultTypeList, resp.ResultType)
	assert.False(t, resp.Rendering)
}

func TestSessionHandler_CreateRejectsUnknownScreen(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	w := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"screen": "marketplace",
		"owner":  "user1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_SetFilters(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	tests := []struct {
		name       string
		filters    map[string]any
		wantStatus int
	}{
		{
			name: "accepts_valid_filters",
			filters: map[string]any{
				"keywords":   map[string]any{"kind": "text", "text": "bread"},
				"amount":     map[string]any{"kind": "amountRange", "min": "10", "max": "99.50"},
				"categories": map[string]any{"kind": "idList", "ids": []string{"c1", "c2"}},
				"period": map[string]any{
					"kind": "dateRange",
					"from": "2025-03-01T00:00:00Z",
				},
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "rejects_unknown_field",
			filters: map[string]any{
				"color": map[string]any{"kind": "text", "text": "red"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "rejects_unknown_kind",
			filters: map[string]any{
				"keywords": map[string]any{"kind": "regex", "text": ".*"},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "rejects_malformed_amount",
			filters: map[string]any{
				"amount": map[string]any{"kind": "amountRange", "min": "ten"},
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/filters",
				map[string]any{"filters": tt.filters})
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionHandler_SetResultTypeAndPage(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	w := f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/result-type",
		map[string]any{"resultType": "tiles"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/result-type",
		map[string]any{"resultType": "map"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/page",
		map[string]any{"page": 3})
	assert.Equal(t, http.StatusNoContent, w.Code)

	var resp handlers.ResultsResponse
	w = f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/results", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.PageNumber)

	w = f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/page",
		map[string]any{"page": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_PaymentFlow(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	f.fetcher.EXPECT().
		TypesForSubject(gomock.Any(), domain.Subject{Value: "bob"}).
		Return(helpers.CreateTestTypeList(), nil)

	w := f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/subject",
		map[string]any{"value": "bob"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/account",
		map[string]any{"account": "acc1"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/types", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var types handlers.TypesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &types))
	require.Len(t, types.Available, 1)
	assert.Equal(t, "typeX", types.Available[0].ID)
	assert.Equal(t, "typeX", types.SelectedID)
	assert.Nil(t, types.FieldError)

	f.fetcher.EXPECT().
		PerformPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
			assert.Equal(t, "typeX", req.TypeID)
			assert.Equal(t, "10", req.Amount.String())
			return &domain.PaymentResult{TransactionID: "tx-42", Date: time.Now()}, nil
		})

	w = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/payment", map[string]any{
		"subject":   map[string]any{"value": "bob"},
		"amount":    "10",
		"confirmed": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var payment handlers.PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, "performed", payment.Status)
	require.NotNil(t, payment.Result)
	assert.Equal(t, "tx-42", payment.Result.TransactionID)
	assert.Equal(t, "/banking/transaction/tx-42", payment.Next)
}

func TestSessionHandler_PaymentDeclinedWithoutConfirmation(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	f.fetcher.EXPECT().
		TypesForSubject(gomock.Any(), domain.Subject{Value: "bob"}).
		Return(helpers.CreateTestTypeList(), nil)

	w := f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/subject",
		map[string]any{"value": "bob"})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/account",
		map[string]any{"account": "acc1"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/payment", map[string]any{
		"subject": map[string]any{"value": "bob"},
		"amount":  "10",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var payment handlers.PaymentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, "declined", payment.Status)
	assert.Nil(t, payment.Result)
}

func TestSessionHandler_PaymentWithoutTypeIsFieldError(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	w := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/payment", map[string]any{
		"subject":   map[string]any{"value": "bob"},
		"amount":    "10",
		"confirmed": true,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "paymentType", resp["field"])
}

func TestSessionHandler_ExportWithoutQueue(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	w := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionHandler_ExportStatusNotFound(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	f.cache.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("cache: key not found"))

	w := f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/export/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_CloseSession(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	id := f.createSession(t)

	w := f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/results", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_UnknownSessionIsNotFound(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()
	f := newSessionFixture(t, mc)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/nope/results", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
