// test/helpers/helpers.go
package helpers

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cyclosproject/searchd/internal/core/domain"
)

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// SetupTestRedis starts an in-process redis and a client against it.
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &TestRedis{Client: client, Server: server}
}

// TransferScreenSchema returns the schema used by most search tests:
// an account-history screen with keywords, amount and date ranges, a
// category multi-select and a UI-only helper field.
func TransferScreenSchema() domain.ScreenSchema {
	return domain.ScreenSchema{
		Name: "account-history",
		Fields: map[string]domain.FieldSpec{
			"keywords":   {Kind: domain.FieldText, Param: "keywords"},
			"amount":     {Kind: domain.FieldAmountRange, Param: "amount"},
			"period":     {Kind: domain.FieldDateRange, Param: "period"},
			"categories": {Kind: domain.FieldIDList, Param: "category"},
			"direction":  {Kind: domain.FieldID, Param: "direction"},
			"expanded":   {Kind: domain.FieldFlag, Param: ""},
		},
		ResultTypes: []domain.ResultType{
			domain.ResultTypeList,
			domain.ResultTypeTiles,
			domain.ResultTypeCategories,
		},
	}
}

// CreateTestPage builds a result page with n rows.
func CreateTestPage(n int, pageNumber int) *domain.PagedResult {
	items := make([]domain.TransferRow, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.TransferRow{
			ID:     string(rune('a' + i)),
			Date:   time.Date(2025, 3, 1+i, 0, 0, 0, 0, time.UTC),
			Amount: decimal.NewFromInt(int64(10 * (i + 1))),
			From:   "alice",
			To:     "bob",
			Kind:   "payment",
		})
	}
	return &domain.PagedResult{
		Items:      items,
		TotalCount: int64(n),
		PageNumber: pageNumber,
	}
}

// CreateTestTypeList builds the canonical two-type list used by the
// cascade tests, with TypeX's detail attached opportunistically.
func CreateTestTypeList() *domain.TypeList {
	typeX := domain.PaymentType{ID: "typeX", Name: "Trade transfer", From: "acc1", To: "acc9"}
	typeY := domain.PaymentType{ID: "typeY", Name: "Community transfer", From: "acc2", To: "acc9"}
	return &domain.TypeList{
		Types:   []domain.PaymentType{typeX, typeY},
		Details: []*domain.TypeDetail{{Type: typeX}},
	}
}

// DecimalPtr returns a pointer to a decimal parsed from s.
func DecimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
