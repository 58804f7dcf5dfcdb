// internal/core/ports/fetcher.go
package ports

import (
	"context"

	"github.com/cyclosproject/searchd/internal/core/domain"
)

// DataFetcher is the data-access port of a search screen. Any backend
// satisfying this shape is substitutable: the platform REST API or a
// direct database connection.
type DataFetcher interface {
	// Search executes a canonical query and returns one result page.
	Search(ctx context.Context, q domain.SearchQuery) (*domain.PagedResult, error)
	// TypesForSubject lists the payment/voucher types available for a
	// destination subject, possibly with detail payloads attached.
	TypesForSubject(ctx context.Context, s domain.Subject) (*domain.TypeList, error)
	// TypeDetail fetches the full detail payload for one type id.
	TypeDetail(ctx context.Context, id string) (*domain.TypeDetail, error)
	// PerformPayment submits the terminal payment of the cascade.
	PerformPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error)
}
