// internal/core/services/controller_test.go
package services_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
	"github.com/cyclosproject/searchd/internal/core/services"
	"github.com/cyclosproject/searchd/test/helpers"
	"github.com/cyclosproject/searchd/test/mocks"
)

const testDebounce = 20 * time.Millisecond

type controllerFixture struct {
	fetcher   *mocks.MockDataFetcher
	reporter  *mocks.MockErrorReporter
	notifier  *mocks.MockNotifier
	navigator *mocks.MockNavigator
	state     *mocks.MockStateStore
	ctrl      *services.SearchController
}

func newControllerFixture(t *testing.T, mc *gomock.Controller,
	setupState func(*mocks.MockStateStore)) *controllerFixture {
	t.Helper()

	f := &controllerFixture{
		fetcher:   mocks.NewMockDataFetcher(mc),
		reporter:  mocks.NewMockErrorReporter(mc),
		notifier:  mocks.NewMockNotifier(mc),
		navigator: mocks.NewMockNavigator(mc),
		state:     mocks.NewMockStateStore(mc),
	}

	if setupState != nil {
		setupState(f.state)
	} else {
		f.state.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ports.ErrStateMiss).AnyTimes()
	}
	f.state.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).AnyTimes()

	f.ctrl = services.NewSearchController("sess-1",
		services.ControllerConfig{
			Schema:           helpers.TransferScreenSchema(),
			Query:            domain.QueryContext{Owner: "user1", AccountType: "acc1", PageSize: 40},
			DebounceInterval: testDebounce,
		},
		services.Deps{
			Fetcher:   f.fetcher,
			Reporter:  f.reporter,
			Notifier:  f.notifier,
			Navigator: f.navigator,
			State:     f.state,
			Logger:    helpers.TestLogger(),
		})
	t.Cleanup(f.ctrl.Close)
	return f
}

// countSearches wires an unbounded Search expectation that counts calls
// and returns a page echoing the requested page number.
func (f *controllerFixture) countSearches() *atomic.Int32 {
	var calls atomic.Int32
	f.fetcher.EXPECT().
		Search(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q domain.SearchQuery) (*domain.PagedResult, error) {
			calls.Add(1)
			return helpers.CreateTestPage(2, q.PageNumber), nil
		}).
		AnyTimes()
	return &calls
}

func TestSearchController_StartFetchesFirstPage(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	f.fetcher.EXPECT().
		Search(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q domain.SearchQuery) (*domain.PagedResult, error) {
			assert.Equal(t, 1, q.PageNumber)
			assert.Equal(t, "user1", q.Owner)
			return helpers.CreateTestPage(3, 1), nil
		})

	require.NoError(t, f.ctrl.Start(context.Background()))

	page, rendering, rt := f.ctrl.Results()
	assert.False(t, rendering)
	assert.Equal(t, domain.ResultTypeList, rt)
	require.NotNil(t, page)
	assert.Len(t, page.Items, 3)
}

func TestSearchController_StartRestoresPersistedMode(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, func(s *mocks.MockStateStore) {
		s.EXPECT().
			Get(gomock.Any(), "screen:sess-1:account-history", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, dest any) error {
				return json.Unmarshal([]byte(`{"resultType":"categories"}`), dest)
			})
	})

	// Restored into categories: no data fetch on start.
	require.NoError(t, f.ctrl.Start(context.Background()))

	page, rendering, rt := f.ctrl.Results()
	assert.Equal(t, domain.ResultTypeCategories, rt)
	assert.False(t, rendering)
	assert.Nil(t, page)
}

func TestSearchController_FilterBurstCoalescesIntoOneFetch(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	calls := f.countSearches()

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	words := []string{"r", "re", "ren", "rent"}
	for _, w := range words {
		require.NoError(t, f.ctrl.SetFilters(context.Background(), domain.FormValue{
			"keywords": {Kind: domain.FieldText, Text: w},
		}))
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 2 },
		time.Second, 5*time.Millisecond)

	// No further fetches arrive after the burst settles.
	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchController_NoopEditDoesNotRefetch(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	calls := f.countSearches()

	require.NoError(t, f.ctrl.Start(context.Background()))

	form := domain.FormValue{
		"keywords": {Kind: domain.FieldText, Text: "rent"},
	}
	require.NoError(t, f.ctrl.SetFilters(context.Background(), form))
	require.Eventually(t, func() bool { return calls.Load() == 2 },
		time.Second, 5*time.Millisecond)

	// Rewriting the same value settles without a fetch.
	require.NoError(t, f.ctrl.SetFilters(context.Background(), form.Clone()))
	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchController_ResultTypeToggleReusesCachedPage(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	calls := f.countSearches()

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	before, _, _ := f.ctrl.Results()
	require.NoError(t, f.ctrl.SetResultType(context.Background(), domain.ResultTypeTiles))

	after, rendering, rt := f.ctrl.Results()
	assert.Equal(t, domain.ResultTypeTiles, rt)
	assert.False(t, rendering)
	assert.Equal(t, before, after)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchController_LeavingCategoriesRefetches(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	calls := f.countSearches()

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, f.ctrl.SetResultType(context.Background(), domain.ResultTypeCategories))
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, f.ctrl.SetResultType(context.Background(), domain.ResultTypeList))
	require.Eventually(t, func() bool { return calls.Load() == 2 },
		time.Second, 5*time.Millisecond)
}

func TestSearchController_SetPageFetchesRequestedPage(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	calls := f.countSearches()

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.NoError(t, f.ctrl.SetPage(context.Background(), 3))
	require.Eventually(t, func() bool { return calls.Load() == 2 },
		time.Second, 5*time.Millisecond)

	page, _, _ := f.ctrl.Results()
	require.NotNil(t, page)
	assert.Equal(t, 3, page.PageNumber)

	err := f.ctrl.SetPage(context.Background(), 0)
	require.Error(t, err)
}

func TestSearchController_SubmitPayment(t *testing.T) {
	tests := []struct {
		name       string
		typeList   *domain.TypeList
		setupMocks func(*controllerFixture)
		wantResult bool
		wantErr    bool
	}{
		{
			name:     "confirmed_payment_navigates_to_receipt",
			typeList: helpers.CreateTestTypeList(),
			setupMocks: func(f *controllerFixture) {
				f.notifier.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(true, nil)
				f.fetcher.EXPECT().
					PerformPayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
						assert.Equal(t, "typeX", req.TypeID)
						assert.Equal(t, domain.AccountRef("acc1"), req.Account)
						return &domain.PaymentResult{TransactionID: "tx-42", Date: time.Now()}, nil
					})
				f.navigator.EXPECT().NavigateTo(gomock.Any(), "/banking/transaction/tx-42").Return(nil)
			},
			wantResult: true,
		},
		{
			name:     "cancelled_confirmation_aborts_quietly",
			typeList: helpers.CreateTestTypeList(),
			setupMocks: func(f *controllerFixture) {
				f.notifier.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(false, nil)
			},
		},
		{
			name: "fixed_amount_type_overrides_entered_amount",
			typeList: &domain.TypeList{
				Types: []domain.PaymentType{{ID: "fixed", Name: "Fixed fee", From: "acc1"}},
				Details: []*domain.TypeDetail{{
					Type:        domain.PaymentType{ID: "fixed", From: "acc1"},
					FixedAmount: helpers.DecimalPtr("25"),
				}},
			},
			setupMocks: func(f *controllerFixture) {
				f.notifier.EXPECT().
					Confirm(gomock.Any(), "Pay 25 to bob?").
					Return(true, nil)
				f.fetcher.EXPECT().
					PerformPayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
						assert.True(t, req.Amount.Equal(decimal.RequireFromString("25")))
						return &domain.PaymentResult{TransactionID: "tx-43", Date: time.Now()}, nil
					})
				f.navigator.EXPECT().NavigateTo(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantResult: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := gomock.NewController(t)
			defer mc.Finish()

			f := newControllerFixture(t, mc, nil)
			f.fetcher.EXPECT().
				TypesForSubject(gomock.Any(), gomock.Any()).
				Return(tt.typeList, nil)
			tt.setupMocks(f)

			require.NoError(t, f.ctrl.SetSubject(context.Background(), domain.Subject{Value: "bob"}))
			require.NoError(t, f.ctrl.SetAccount(context.Background(), "acc1"))

			res, err := f.ctrl.SubmitPayment(context.Background(),
				domain.Subject{Value: "bob"}, decimal.NewFromInt(10), "lunch")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantResult {
				require.NotNil(t, res)
				assert.NotEmpty(t, res.TransactionID)
			} else {
				assert.Nil(t, res)
			}
		})
	}
}

func TestSearchController_SubmitPaymentWithoutSelection(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)

	_, err := f.ctrl.SubmitPayment(context.Background(),
		domain.Subject{Value: "bob"}, decimal.NewFromInt(10), "lunch")
	require.Error(t, err)

	var fe *domain.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, services.TypeFieldName, fe.Field)
}

func TestSearchController_TypeStateReflectsCascade(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	f.fetcher.EXPECT().
		TypesForSubject(gomock.Any(), gomock.Any()).
		Return(helpers.CreateTestTypeList(), nil)

	require.NoError(t, f.ctrl.SetSubject(context.Background(), domain.Subject{Value: "bob"}))
	require.NoError(t, f.ctrl.SetAccount(context.Background(), "acc1"))

	available, selected, detail, fieldErr := f.ctrl.TypeState()
	require.Len(t, available, 1)
	assert.Equal(t, "typeX", available[0].ID)
	assert.Equal(t, "typeX", selected)
	require.NotNil(t, detail)
	assert.Equal(t, "typeX", detail.Type.ID)
	assert.Nil(t, fieldErr)
}

func TestSearchController_CloseRejectsOperations(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	f.ctrl.Close()

	err := f.ctrl.SetFilters(context.Background(), domain.FormValue{})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	err = f.ctrl.SetPage(context.Background(), 2)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	err = f.ctrl.SetSubject(context.Background(), domain.Subject{Value: "bob"})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = f.ctrl.SubmitPayment(context.Background(),
		domain.Subject{Value: "bob"}, decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestSearchController_ClosePreventsPendingEvaluation(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)
	// No Search expectation at all: a fetch after Close would fail the
	// controller's mock expectations.

	require.NoError(t, f.ctrl.SetFilters(context.Background(), domain.FormValue{
		"keywords": {Kind: domain.FieldText, Text: "rent"},
	}))
	f.ctrl.Close()

	time.Sleep(3 * testDebounce)
}

func TestSearchController_RejectsUnknownFilterField(t *testing.T) {
	mc := gomock.NewController(t)
	defer mc.Finish()

	f := newControllerFixture(t, mc, nil)

	err := f.ctrl.SetFilters(context.Background(), domain.FormValue{
		"bogus": {Kind: domain.FieldText, Text: "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filter field")
}
