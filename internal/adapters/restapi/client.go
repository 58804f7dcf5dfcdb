// internal/adapters/restapi/client.go
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
)

const defaultTimeout = 30 * time.Second

// Client is the REST implementation of the data port, speaking to the
// community-currency platform API. Non-2xx answers surface as
// StatusError so callers can classify them.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	logger     *slog.Logger
}

var _ ports.DataFetcher = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthToken sets the bearer token sent on every request.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// NewClient creates a fetcher against the given platform base URL.
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		logger:     logger.With(slog.String("component", "restapi_client")),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs a transfer search and returns one page of results. The
// backend reports the total row count through the X-Total-Count header.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) (*domain.PagedResult, error) {
	params := url.Values{}
	if q.Owner != "" {
		params.Set("owner", q.Owner)
	}
	if q.AccountType != "" {
		params.Set("accountType", q.AccountType)
	}
	if q.Keywords != "" {
		params.Set("keywords", q.Keywords)
	}
	for name, vals := range q.Filters {
		for _, v := range vals {
			params.Add(name, v)
		}
	}
	if len(q.AmountRange) == 2 {
		params.Set("amountRange", q.AmountRange[0]+","+q.AmountRange[1])
	}
	if len(q.Period) == 2 {
		params.Set("datePeriod", q.Period[0]+","+q.Period[1])
	}
	params.Set("page", strconv.Itoa(q.PageNumber-1))
	params.Set("pageSize", strconv.Itoa(q.PageSize))

	var items []domain.TransferRow
	header, err := c.get(ctx, "/transfers?"+params.Encode(), &items)
	if err != nil {
		return nil, err
	}

	total := int64(len(items))
	if v := header.Get("X-Total-Count"); v != "" {
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			total = n
		}
	}

	return &domain.PagedResult{
		Items:      items,
		TotalCount: total,
		PageNumber: q.PageNumber,
	}, nil
}

// TypesForSubject fetches the payment types available for a
// destination. Subjects flagged as queries go through the keyword
// parameter instead of the path, matching the platform's fallback
// lookup for principals.
func (c *Client) TypesForSubject(ctx context.Context, subject domain.Subject) (*domain.TypeList, error) {
	var path string
	if subject.Query {
		path = "/payment-types?keywords=" + url.QueryEscape(subject.Value)
	} else {
		path = "/users/" + url.PathEscape(subject.Value) + "/payment-types"
	}

	var list domain.TypeList
	if _, err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// TypeDetail fetches the full data payload for one payment type.
func (c *Client) TypeDetail(ctx context.Context, id string) (*domain.TypeDetail, error) {
	var detail domain.TypeDetail
	if _, err := c.get(ctx, "/payment-types/"+url.PathEscape(id)+"/data", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// PerformPayment submits a payment and returns the acknowledgement.
func (c *Client) PerformPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp)
	}

	var result domain.PaymentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode payment response: %w", err)
	}

	c.logger.InfoContext(ctx, "payment submitted",
		slog.String("transaction_id", result.TransactionID))
	return &result, nil
}

// get issues a GET and decodes the JSON body into dest, returning the
// response headers for pagination metadata.
func (c *Client) get(ctx context.Context, path string, dest any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.Header, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &domain.StatusError{Status: resp.StatusCode, Body: string(body)}
}
