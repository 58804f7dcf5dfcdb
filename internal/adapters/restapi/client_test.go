// internal/adapters/restapi/client_test.go
package restapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyclosproject/searchd/internal/adapters/restapi"
	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/test/helpers"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "user1", r.URL.Query().Get("owner"))
		assert.Equal(t, "rent", r.URL.Query().Get("keywords"))
		// First page is zero-indexed on the wire.
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "40", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("X-Total-Count", "123")
		_ = json.NewEncoder(w).Encode(helpers.CreateTestPage(2, 1).Items)
	}))
	defer srv.Close()

	c := restapi.NewClient(srv.URL, helpers.TestLogger(), restapi.WithAuthToken("tok"))
	page, err := c.Search(context.Background(), domain.SearchQuery{
		Owner:      "user1",
		Keywords:   "rent",
		PageNumber: 1,
		PageSize:   40,
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(123), page.TotalCount)
	assert.Equal(t, 1, page.PageNumber)
}

func TestClient_SearchRepeatedFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"c1", "c2"}, r.URL.Query()["category"])
		assert.Equal(t, "5,10", r.URL.Query().Get("amountRange"))
		_ = json.NewEncoder(w).Encode([]domain.TransferRow{})
	}))
	defer srv.Close()

	c := restapi.NewClient(srv.URL, helpers.TestLogger())
	_, err := c.Search(context.Background(), domain.SearchQuery{
		Filters:     map[string][]string{"category": {"c1", "c2"}},
		AmountRange: []string{"5", "10"},
		PageNumber:  1,
		PageSize:    40,
	})
	require.NoError(t, err)
}

func TestClient_TypesForSubject(t *testing.T) {
	tests := []struct {
		name     string
		subject  domain.Subject
		wantPath string
		wantKw   string
	}{
		{
			name:     "id_lookup_uses_user_path",
			subject:  domain.Subject{Value: "alice"},
			wantPath: "/users/alice/payment-types",
		},
		{
			name:     "query_lookup_uses_keywords",
			subject:  domain.Subject{Value: "alice", Query: true},
			wantPath: "/payment-types",
			wantKw:   "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, tt.wantKw, r.URL.Query().Get("keywords"))
				_ = json.NewEncoder(w).Encode(helpers.CreateTestTypeList())
			}))
			defer srv.Close()

			c := restapi.NewClient(srv.URL, helpers.TestLogger())
			list, err := c.TypesForSubject(context.Background(), tt.subject)
			require.NoError(t, err)
			assert.Len(t, list.Types, 2)
			require.Len(t, list.Details, 1)
			assert.Equal(t, "typeX", list.Details[0].Type.ID)
		})
	}
}

func TestClient_StatusErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such user", http.StatusNotFound)
	}))
	defer srv.Close()

	c := restapi.NewClient(srv.URL, helpers.TestLogger())
	_, err := c.TypesForSubject(context.Background(), domain.Subject{Value: "ghost"})
	require.Error(t, err)

	var se *domain.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.True(t, domain.IsIgnorableStatus(err, domain.DefaultIgnorableStatuses))
}

func TestClient_PerformPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)

		var req domain.PaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "typeX", req.TypeID)
		assert.True(t, req.Amount.Equal(decimal.NewFromInt(10)))

		_ = json.NewEncoder(w).Encode(domain.PaymentResult{TransactionID: "tx-1"})
	}))
	defer srv.Close()

	c := restapi.NewClient(srv.URL, helpers.TestLogger())
	res, err := c.PerformPayment(context.Background(), domain.PaymentRequest{
		Subject: domain.Subject{Value: "bob"},
		Account: "acc1",
		TypeID:  "typeX",
		Amount:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", res.TransactionID)
}
