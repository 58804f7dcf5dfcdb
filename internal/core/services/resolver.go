// internal/core/services/resolver.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
)

// TypeFieldName is the form field the "no types available" validation
// error attaches to.
const TypeFieldName = "paymentType"

// TypeResolver drives the two-level payment/voucher type cascade: a
// destination subject determines the available types, a selected type
// determines its detail data (fees, custom fields, fixed amount).
//
// Detail payloads are memoized per type id for the resolver's lifetime
// and cleared wholesale when the subject changes. Concurrent duplicate
// detail fetches for the same id are coalesced.
type TypeResolver struct {
	fetcher   ports.DataFetcher
	reporter  ports.ErrorReporter
	logger    *slog.Logger
	ignorable []int

	// onTypeData fires when the resolved detail's type id differs from
	// the previously emitted one, so downstream UI is not churned by
	// redundant re-resolutions.
	onTypeData func(*domain.TypeDetail)

	group singleflight.Group

	mu         sync.Mutex
	subject    domain.Subject
	account    domain.AccountRef
	cache      map[string]*domain.TypeDetail
	types      []domain.PaymentType
	available  []domain.PaymentType
	selectedID string
	lastEmit   string
	fieldErr   *domain.FieldError
}

// NewTypeResolver creates a resolver for one screen controller.
// onTypeData may be nil.
func NewTypeResolver(fetcher ports.DataFetcher, reporter ports.ErrorReporter,
	logger *slog.Logger, ignorable []int, onTypeData func(*domain.TypeDetail)) *TypeResolver {
	if ignorable == nil {
		ignorable = domain.DefaultIgnorableStatuses
	}
	return &TypeResolver{
		fetcher:    fetcher,
		reporter:   reporter,
		logger:     logger.With(slog.String("component", "type_resolver")),
		ignorable:  ignorable,
		onTypeData: onTypeData,
		cache:      make(map[string]*domain.TypeDetail),
	}
}

// OnSubjectChanged resets the cascade for a new destination: the
// option cache and type list are cleared and the selection dropped.
// For a non-blank subject the available types are fetched, seeding the
// cache with any detail payloads returned alongside.
func (r *TypeResolver) OnSubjectChanged(ctx context.Context, subject domain.Subject) error {
	r.mu.Lock()
	r.subject = subject
	r.cache = make(map[string]*domain.TypeDetail)
	r.types = nil
	r.available = nil
	r.selectedID = ""
	r.fieldErr = nil
	r.mu.Unlock()

	if subject.IsBlank() {
		return nil
	}

	list, err := r.fetcher.TypesForSubject(ctx, subject)
	if err != nil {
		if !subject.Query && domain.IsIgnorableStatus(err, r.ignorable) {
			// The typed value may be a principal rather than an id;
			// retry treating it as a search query.
			r.reporter.Report(ctx, err, true)
			r.logger.DebugContext(ctx, "subject lookup rejected, retrying as query",
				slog.String("subject", subject.Value))
			return r.OnSubjectChanged(ctx, domain.Subject{Value: subject.Value, Query: true})
		}
		r.reporter.Report(ctx, err, false)
		return fmt.Errorf("failed to fetch types for subject: %w", err)
	}

	r.mu.Lock()
	// A concurrent subject change wins; drop this response.
	if r.subject != subject {
		r.mu.Unlock()
		return nil
	}
	r.types = list.Types
	for _, d := range list.Details {
		if d != nil {
			r.cache[d.Type.ID] = d
		}
	}
	account := r.account
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "fetched types for subject",
		slog.String("subject", subject.Value),
		slog.Int("types", len(list.Types)),
		slog.Int("seeded_details", len(list.Details)))

	if account != "" {
		return r.OnAccountChanged(ctx, account)
	}
	return nil
}

// OnAccountChanged filters the fetched type list down to those whose
// source matches the account. An empty remainder raises a field-level
// validation error and clears the selection; otherwise the previous
// selection is kept when still valid, or the first remaining type is
// auto-selected and its detail eagerly resolved.
func (r *TypeResolver) OnAccountChanged(ctx context.Context, account domain.AccountRef) error {
	r.mu.Lock()
	r.account = account

	var available []domain.PaymentType
	for _, t := range r.types {
		if account == "" || t.From == account {
			available = append(available, t)
		}
	}
	r.available = available

	if len(available) == 0 {
		r.selectedID = ""
		if len(r.types) > 0 {
			r.fieldErr = domain.NewFieldError(TypeFieldName, "no payment types available for this account")
		}
		r.mu.Unlock()
		return nil
	}
	r.fieldErr = nil

	stillValid := false
	for _, t := range available {
		if t.ID == r.selectedID {
			stillValid = true
			break
		}
	}
	if !stillValid {
		r.selectedID = available[0].ID
	}
	selected := r.selectedID
	r.mu.Unlock()

	_, err := r.ResolveTypeData(ctx, selected)
	return err
}

// SelectType switches the selection to one of the available types and
// resolves its detail.
func (r *TypeResolver) SelectType(ctx context.Context, id string) error {
	r.mu.Lock()
	found := false
	for _, t := range r.available {
		if t.ID == id {
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return domain.NewFieldError(TypeFieldName, fmt.Sprintf("type %s is not available", id))
	}
	r.selectedID = id
	r.mu.Unlock()

	_, err := r.ResolveTypeData(ctx, id)
	return err
}

// ResolveTypeData returns the detail for a type id, cache-first. On a
// miss exactly one backend call is issued even under concurrent
// duplicate requests. Ignorable backend errors are swallowed after an
// alternate subject resolution attempt; hard errors propagate.
func (r *TypeResolver) ResolveTypeData(ctx context.Context, id string) (*domain.TypeDetail, error) {
	r.mu.Lock()
	if d, ok := r.cache[id]; ok {
		r.mu.Unlock()
		r.emit(d)
		return d, nil
	}
	subject := r.subject
	r.mu.Unlock()

	v, err, _ := r.group.Do(id, func() (any, error) {
		return r.fetcher.TypeDetail(ctx, id)
	})
	if err != nil {
		if domain.IsIgnorableStatus(err, r.ignorable) {
			r.reporter.Report(ctx, err, true)
			if !subject.Query && !subject.IsBlank() {
				if rerr := r.OnSubjectChanged(ctx, domain.Subject{Value: subject.Value, Query: true}); rerr != nil {
					return nil, rerr
				}
			}
			return nil, nil
		}
		r.reporter.Report(ctx, err, false)
		return nil, fmt.Errorf("failed to resolve type data for %s: %w", id, err)
	}

	detail := v.(*domain.TypeDetail)

	r.mu.Lock()
	// Entries are added opportunistically and never evicted until the
	// subject root changes.
	if r.subject == subject {
		r.cache[id] = detail
	}
	r.mu.Unlock()

	r.emit(detail)
	return detail, nil
}

// CachedDetail returns the memoized detail for a type id, if any.
func (r *TypeResolver) CachedDetail(id string) (*domain.TypeDetail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.cache[id]
	return d, ok
}

// Available returns the types matching the current account.
func (r *TypeResolver) Available() []domain.PaymentType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PaymentType(nil), r.available...)
}

// SelectedID returns the currently selected type id, empty if none.
func (r *TypeResolver) SelectedID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedID
}

// FieldError returns the pending validation error, if any.
func (r *TypeResolver) FieldError() *domain.FieldError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fieldErr
}

func (r *TypeResolver) emit(d *domain.TypeDetail) {
	if d == nil {
		return
	}
	r.mu.Lock()
	changed := d.Type.ID != r.lastEmit
	if changed {
		r.lastEmit = d.Type.ID
	}
	fn := r.onTypeData
	r.mu.Unlock()

	if changed && fn != nil {
		fn(d)
	}
}
