// internal/core/services/controller.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
)

// ControllerConfig carries the per-screen constants of a controller.
type ControllerConfig struct {
	Schema            domain.ScreenSchema
	Query             domain.QueryContext
	DebounceInterval  time.Duration
	IgnorableStatuses []int
}

// Deps groups the collaborator ports a controller consumes.
type Deps struct {
	Fetcher   ports.DataFetcher
	Reporter  ports.ErrorReporter
	Notifier  ports.Notifier
	Navigator ports.Navigator
	State     ports.StateStore
	Logger    *slog.Logger
}

// persistedState is the blob saved through the StateStore so a screen
// restores its last query and presentation mode across navigation.
type persistedState struct {
	Form       domain.FormValue  `json:"form"`
	ResultType domain.ResultType `json:"resultType"`
}

// SearchController orchestrates one search screen session: it owns the
// filter form, the result-type coordinator, the paged result holder
// and the dependent-type resolver. All state is guarded by a single
// mutex per controller instance; collaborator calls happen outside it.
type SearchController struct {
	cfg       ControllerConfig
	fetcher   ports.DataFetcher
	reporter  ports.ErrorReporter
	notifier  ports.Notifier
	navigator ports.Navigator
	state     ports.StateStore
	logger    *slog.Logger

	sessionID string
	debouncer *Debouncer
	holder    *ResultHolder
	resolver  *TypeResolver

	mu          sync.Mutex
	coord       *Coordinator
	form        domain.FormValue
	applied     domain.FormValue
	appliedType domain.ResultType
	page        int
	typeData    *domain.TypeDetail
	closed      bool
}

// NewSearchController creates a controller for one screen session.
// Call Start to restore persisted state and load the first page.
func NewSearchController(sessionID string, cfg ControllerConfig, deps Deps) *SearchController {
	c := &SearchController{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		reporter:  deps.Reporter,
		notifier:  deps.Notifier,
		navigator: deps.Navigator,
		state:     deps.State,
		logger: deps.Logger.With(
			slog.String("component", "search_controller"),
			slog.String("screen", cfg.Schema.Name),
			slog.String("session", sessionID)),
		sessionID: sessionID,
		debouncer: NewDebouncer(cfg.DebounceInterval),
		holder:    NewResultHolder(),
		coord:     NewCoordinator(cfg.Schema.ResultTypes),
		form:      make(domain.FormValue),
		page:      1,
	}
	c.resolver = NewTypeResolver(deps.Fetcher, deps.Reporter, deps.Logger,
		cfg.IgnorableStatuses, c.onTypeData)
	return c
}

func (c *SearchController) onTypeData(d *domain.TypeDetail) {
	c.mu.Lock()
	c.typeData = d
	c.mu.Unlock()
}

// Start restores the persisted filter form and result type, then
// performs the initial transition (fetching unless the restored mode
// is categories).
func (c *SearchController) Start(ctx context.Context) error {
	restored := c.restore(ctx)

	c.mu.Lock()
	rt := restored.ResultType
	if rt == domain.ResultTypeNone || !c.cfg.Schema.AllowsResultType(rt) {
		rt = c.cfg.Schema.ResultTypes[0]
	}
	if restored.Form != nil {
		c.form = restored.Form.Clone()
	}
	fetch, err := c.coord.Transition(rt, false)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if fetch {
		c.runFetch(ctx)
	}
	return nil
}

// SetFilters replaces the filter form. Evaluation is debounced: a
// burst of edits settles into at most one fetch decision.
func (c *SearchController) SetFilters(ctx context.Context, form domain.FormValue) error {
	if err := c.cfg.Schema.ValidateForm(form); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	c.form = form.Clone()
	c.mu.Unlock()

	c.persist(ctx)

	evalCtx := context.WithoutCancel(ctx)
	c.debouncer.Trigger(func() { c.evaluate(evalCtx) })
	return nil
}

// evaluate runs after the debounce interval settles and decides
// whether the pending form warrants a fetch.
func (c *SearchController) evaluate(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	should := ShouldFetch(c.appliedType, c.coord.Current(), c.applied, c.form)
	if should {
		c.page = 1
	}
	c.mu.Unlock()

	if should {
		c.runFetch(ctx)
	}
}

// SetResultType switches the presentation mode, fetching only when the
// coordinator's decision table requires it; a pure mode toggle with
// unchanged filters reuses the cached page.
func (c *SearchController) SetResultType(ctx context.Context, rt domain.ResultType) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	filtersChanged := !c.applied.Equal(c.form)
	fetch, err := c.coord.Transition(rt, filtersChanged)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.persist(ctx)

	if fetch {
		c.runFetch(ctx)
	}
	return nil
}

// SetPage moves to another result page and fetches it.
func (c *SearchController) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("page must be positive, got %d", page)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	c.page = page
	c.mu.Unlock()

	c.runFetch(ctx)
	return nil
}

// runFetch issues one sequenced fetch against the data port. The form
// snapshot taken here becomes the applied value the change detector
// compares against.
func (c *SearchController) runFetch(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	q := ToSearchQuery(c.cfg.Schema, c.form, c.cfg.Query)
	q.PageNumber = c.page
	c.applied = c.form.Clone()
	c.appliedType = c.coord.Current()
	c.mu.Unlock()

	token := c.holder.Begin()

	page, err := c.fetcher.Search(ctx, q)
	if err != nil {
		if c.holder.Fail(token) {
			c.reporter.Report(ctx, err, false)
			c.logger.WarnContext(ctx, "search fetch failed, keeping previous page",
				slog.String("error", err.Error()))
		}
		return
	}

	if !c.holder.Complete(token, page) {
		c.logger.DebugContext(ctx, "discarded stale search response",
			slog.Uint64("token", token))
		return
	}

	c.mu.Lock()
	if c.coord.Current() == domain.ResultTypeCategories {
		c.coord.ForceTo(c.coord.FirstListed())
	}
	c.mu.Unlock()
}

// CurrentQuery returns the normalized query for the present form,
// suitable for replaying outside the controller (exports).
func (c *SearchController) CurrentQuery() domain.SearchQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := ToSearchQuery(c.cfg.Schema, c.form, c.cfg.Query)
	q.PageNumber = c.page
	return q
}

// Screen returns the schema name this controller serves.
func (c *SearchController) Screen() string {
	return c.cfg.Schema.Name
}

// Results returns the current page, whether a fetch is rendering, and
// the active result type.
func (c *SearchController) Results() (*domain.PagedResult, bool, domain.ResultType) {
	page, rendering := c.holder.Result()
	c.mu.Lock()
	rt := c.coord.Current()
	c.mu.Unlock()
	return page, rendering, rt
}

// SetSubject forwards a destination change to the type cascade.
func (c *SearchController) SetSubject(ctx context.Context, subject domain.Subject) error {
	if c.isClosed() {
		return domain.ErrSessionClosed
	}
	return c.resolver.OnSubjectChanged(ctx, subject)
}

// SetAccount forwards a source-account change to the type cascade.
func (c *SearchController) SetAccount(ctx context.Context, account domain.AccountRef) error {
	if c.isClosed() {
		return domain.ErrSessionClosed
	}
	return c.resolver.OnAccountChanged(ctx, account)
}

// SelectType switches the selected payment type.
func (c *SearchController) SelectType(ctx context.Context, id string) error {
	if c.isClosed() {
		return domain.ErrSessionClosed
	}
	return c.resolver.SelectType(ctx, id)
}

// TypeState exposes the cascade's current view: available types, the
// selection, the last resolved detail, and any field error.
func (c *SearchController) TypeState() ([]domain.PaymentType, string, *domain.TypeDetail, *domain.FieldError) {
	c.mu.Lock()
	detail := c.typeData
	c.mu.Unlock()
	return c.resolver.Available(), c.resolver.SelectedID(), detail, c.resolver.FieldError()
}

// SubmitPayment performs the terminal payment of the cascade: confirm
// with the user, submit through the data port, then navigate to the
// receipt. Fixed-amount types override the entered amount.
func (c *SearchController) SubmitPayment(ctx context.Context, subject domain.Subject,
	amount decimal.Decimal, description string) (*domain.PaymentResult, error) {
	if c.isClosed() {
		return nil, domain.ErrSessionClosed
	}

	typeID := c.resolver.SelectedID()
	if typeID == "" {
		if fe := c.resolver.FieldError(); fe != nil {
			return nil, fe
		}
		return nil, domain.NewFieldError(TypeFieldName, "no payment type selected")
	}

	if detail, ok := c.resolver.CachedDetail(typeID); ok && detail.FixedAmount != nil {
		amount = *detail.FixedAmount
	}

	ok, err := c.notifier.Confirm(ctx,
		fmt.Sprintf("Pay %s to %s?", amount.String(), subject.Value))
	if err != nil {
		return nil, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return nil, nil
	}

	res, err := c.fetcher.PerformPayment(ctx, domain.PaymentRequest{
		Subject:     subject,
		Account:     domain.AccountRef(c.cfg.Query.AccountType),
		TypeID:      typeID,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		c.reporter.Report(ctx, err, false)
		return nil, fmt.Errorf("payment failed: %w", err)
	}

	c.logger.InfoContext(ctx, "payment performed",
		slog.String("transaction_id", res.TransactionID),
		slog.String("type_id", typeID))

	if err := c.navigator.NavigateTo(ctx, "/banking/transaction/"+res.TransactionID); err != nil {
		c.logger.WarnContext(ctx, "post-payment navigation failed",
			slog.String("error", err.Error()))
	}
	return res, nil
}

// Close tears the session down: the debouncer is stopped and every
// later operation fails, so no callback reaches a disposed screen.
func (c *SearchController) Close() {
	c.debouncer.Stop()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *SearchController) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *SearchController) stateKey() string {
	return fmt.Sprintf("screen:%s:%s", c.sessionID, c.cfg.Schema.Name)
}

func (c *SearchController) persist(ctx context.Context) {
	c.mu.Lock()
	st := persistedState{Form: c.form.Clone(), ResultType: c.coord.Current()}
	c.mu.Unlock()

	if err := c.state.Set(ctx, c.stateKey(), st); err != nil {
		c.logger.WarnContext(ctx, "failed to persist screen state",
			slog.String("error", err.Error()))
	}
}

func (c *SearchController) restore(ctx context.Context) persistedState {
	var st persistedState
	if err := c.state.Get(ctx, c.stateKey(), &st); err != nil {
		if !errors.Is(err, ports.ErrStateMiss) {
			c.logger.WarnContext(ctx, "failed to restore screen state",
				slog.String("error", err.Error()))
		}
		return persistedState{}
	}
	return st
}
