// internal/handlers/session.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/cyclosproject/searchd/internal/core/domain"
	"github.com/cyclosproject/searchd/internal/core/ports"
	"github.com/cyclosproject/searchd/internal/core/services"
	"github.com/cyclosproject/searchd/internal/workers"
)

// SessionConfig carries the tunables sessions are created with.
type SessionConfig struct {
	DebounceInterval  time.Duration
	DefaultPageSize   int
	IgnorableStatuses []int
	ExportRetention   time.Duration
}

// SessionHandler manages search-screen sessions over HTTP. Each
// session wraps one controller; handlers translate the JSON wire forms
// into domain values and back.
type SessionHandler struct {
	fetcher ports.DataFetcher
	state   ports.StateStore
	cache   ports.CacheRepository
	tasks   *asynq.Client
	cfg     SessionConfig
	logger  *slog.Logger

	schemas map[string]domain.ScreenSchema

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	controller *services.SearchController
	navigator  *navRecorder
	screen     string
}

// NewSessionHandler creates the handler. tasks may be nil when no
// worker queue is configured; exports then answer 503.
func NewSessionHandler(fetcher ports.DataFetcher, state ports.StateStore,
	cache ports.CacheRepository, tasks *asynq.Client,
	schemas []domain.ScreenSchema, cfg SessionConfig, logger *slog.Logger) *SessionHandler {
	byName := make(map[string]domain.ScreenSchema, len(schemas))
	for _, s := range schemas {
		byName[s.Name] = s
	}
	return &SessionHandler{
		fetcher:  fetcher,
		state:    state,
		cache:    cache,
		tasks:    tasks,
		cfg:      cfg,
		logger:   logger.With(slog.String("handler", "session")),
		schemas:  byName,
		sessions: make(map[string]*session),
	}
}

// RegisterRoutes attaches the session API to a mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.CloseSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/results", h.GetResults)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/filters", h.SetFilters)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/result-type", h.SetResultType)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/page", h.SetPage)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/subject", h.SetSubject)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/account", h.SetAccount)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/type", h.SelectType)
	mux.HandleFunc("GET /api/v1/sessions/{id}/types", h.GetTypes)
	mux.HandleFunc("POST /api/v1/sessions/{id}/payment", h.SubmitPayment)
	mux.HandleFunc("POST /api/v1/sessions/{id}/export", h.StartExport)
	mux.HandleFunc("GET /api/v1/sessions/{id}/export/{jobID}", h.ExportStatus)
}

// CreateSessionRequest opens a search session on a named screen.
type CreateSessionRequest struct {
	Screen      string `json:"screen"`
	Owner       string `json:"owner"`
	AccountType string `json:"accountType"`
	PageSize    int    `json:"pageSize,omitempty"`
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	schema, ok := h.schemas[req.Screen]
	if !ok {
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("Unknown screen %q", req.Screen))
		return
	}
	if req.Owner == "" {
		h.respondError(w, http.StatusBadRequest, "Owner is required")
		return
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = h.cfg.DefaultPageSize
	}

	sessionID := uuid.New().String()
	nav := &navRecorder{}
	ctrl := services.NewSearchController(sessionID, services.ControllerConfig{
		Schema: schema,
		Query: domain.QueryContext{
			Owner:       req.Owner,
			AccountType: req.AccountType,
			PageSize:    pageSize,
		},
		DebounceInterval:  h.cfg.DebounceInterval,
		IgnorableStatuses: h.cfg.IgnorableStatuses,
	}, services.Deps{
		Fetcher:   h.fetcher,
		Reporter:  newLogReporter(h.logger),
		Notifier:  contextNotifier{},
		Navigator: nav,
		State:     h.state,
		Logger:    h.logger,
	})

	if err := ctrl.Start(ctx); err != nil {
		ctrl.Close()
		h.logger.ErrorContext(ctx, "failed to start session",
			slog.String("screen", req.Screen),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	h.mu.Lock()
	h.sessions[sessionID] = &session{controller: ctrl, navigator: nav, screen: req.Screen}
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "session created",
		slog.String("session", sessionID),
		slog.String("screen", req.Screen))

	h.respondJSON(w, http.StatusCreated, map[string]string{
		"sessionId": sessionID,
		"screen":    req.Screen,
	})
}

// CloseSession handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.controller.Close()

	h.logger.InfoContext(r.Context(), "session closed", slog.String("session", id))
	w.WriteHeader(http.StatusNoContent)
}

// ResultsResponse is the wire shape of a result page.
type ResultsResponse struct {
	Items      []domain.TransferRow `json:"items"`
	TotalCount int64                `json:"totalCount"`
	PageNumber int                  `json:"pageNumber"`
	Rendering  bool                 `json:"rendering"`
	ResultType domain.ResultType    `json:"resultType"`
}

// GetResults handles GET /api/v1/sessions/{id}/results
func (h *SessionHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	page, rendering, rt := s.controller.Results()
	resp := ResultsResponse{Rendering: rendering, ResultType: rt}
	if page != nil {
		resp.Items = page.Items
		resp.TotalCount = page.TotalCount
		resp.PageNumber = page.PageNumber
	}
	if resp.Items == nil {
		resp.Items = []domain.TransferRow{}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// SetFilters handles PUT /api/v1/sessions/{id}/filters
func (h *SessionHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req struct {
		Filters map[string]wireFieldValue `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	form, err := parseWireForm(req.Filters)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.controller.SetFilters(ctx, form); err != nil {
		h.respondCoreError(w, err, "Failed to apply filters")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SetResultType handles PUT /api/v1/sessions/{id}/result-type
func (h *SessionHandler) SetResultType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req struct {
		ResultType domain.ResultType `json:"resultType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.controller.SetResultType(ctx, req.ResultType); err != nil {
		h.respondCoreError(w, err, "Failed to switch result type")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPage handles PUT /api/v1/sessions/{id}/page
func (h *SessionHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.controller.SetPage(ctx, req.Page); err != nil {
		h.respondCoreError(w, err, "Failed to change page")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSubject handles PUT /api/v1/sessions/{id}/subject
func (h *SessionHandler) SetSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var subject domain.Subject
	if err := json.NewDecoder(r.Body).Decode(&subject); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.controller.SetSubject(ctx, subject); err != nil {
		h.respondCoreError(w, err, "Failed to change subject")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAccount handles PUT /api/v1/sessions/{id}/account
func (h *SessionHandler) SetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req struct {
		Account domain.AccountRef `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.controller.SetAccount(ctx, req.Account); err != nil {
		h.respondCoreError(w, err, "Failed to change account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectType handles PUT /api/v1/sessions/{id}/type
func (h *SessionHandler) SelectType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.controller.SelectType(ctx, req.ID); err != nil {
		h.respondCoreError(w, err, "Failed to select type")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TypesResponse exposes the payment-type cascade state.
type TypesResponse struct {
	Available  []domain.PaymentType `json:"available"`
	SelectedID string               `json:"selectedId,omitempty"`
	Detail     *domain.TypeDetail   `json:"detail,omitempty"`
	FieldError *wireFieldError      `json:"fieldError,omitempty"`
}

type wireFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GetTypes handles GET /api/v1/sessions/{id}/types
func (h *SessionHandler) GetTypes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	available, selectedID, detail, fieldErr := s.controller.TypeState()
	resp := TypesResponse{
		Available:  available,
		SelectedID: selectedID,
		Detail:     detail,
	}
	if resp.Available == nil {
		resp.Available = []domain.PaymentType{}
	}
	if fieldErr != nil {
		resp.FieldError = &wireFieldError{Field: fieldErr.Field, Message: fieldErr.Message}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// PaymentRequest is the wire shape of a payment submission.
type PaymentRequest struct {
	Subject     domain.Subject `json:"subject"`
	Amount      string         `json:"amount"`
	Description string         `json:"description,omitempty"`
	Confirmed   bool           `json:"confirmed"`
}

// PaymentResponse acknowledges a submission. Status is "performed" or
// "declined"; Next carries the post-payment location when performed.
type PaymentResponse struct {
	Status string                `json:"status"`
	Result *domain.PaymentResult `json:"result,omitempty"`
	Next   string                `json:"next,omitempty"`
}

// SubmitPayment handles POST /api/v1/sessions/{id}/payment
func (h *SessionHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid amount")
			return
		}
	}

	ctx = WithConfirmation(ctx, req.Confirmed)
	result, err := s.controller.SubmitPayment(ctx, req.Subject, amount, req.Description)
	if err != nil {
		h.respondCoreError(w, err, "Payment failed")
		return
	}
	if result == nil {
		h.respondJSON(w, http.StatusOK, PaymentResponse{Status: "declined"})
		return
	}

	h.respondJSON(w, http.StatusOK, PaymentResponse{
		Status: "performed",
		Result: result,
		Next:   s.navigator.Next(),
	})
}

// StartExport handles POST /api/v1/sessions/{id}/export
func (h *SessionHandler) StartExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	s, ok := h.session(r)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if h.tasks == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Export queue not configured")
		return
	}

	jobID := uuid.New().String()
	payload := workers.ExportTaskPayload{
		JobID:     jobID,
		SessionID: id,
		Screen:    s.controller.Screen(),
		Query:     s.controller.CurrentQuery(),
	}

	task, err := workers.NewExportTask(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build export task",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue export")
		return
	}
	if _, err := h.tasks.EnqueueContext(ctx, task); err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue export task",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to queue export")
		return
	}

	status := workers.ExportStatus{
		JobID:     jobID,
		State:     "queued",
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.cache.SetWithTTL(ctx, workers.ExportStatusKey(jobID), status, h.cfg.ExportRetention); err != nil {
		h.logger.WarnContext(ctx, "failed to record queued export status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
	}

	h.logger.InfoContext(ctx, "export queued",
		slog.String("session", id),
		slog.String("job_id", jobID))

	h.respondJSON(w, http.StatusAccepted, status)
}

// ExportStatus handles GET /api/v1/sessions/{id}/export/{jobID}
func (h *SessionHandler) ExportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("jobID")

	var status workers.ExportStatus
	if err := h.cache.Get(ctx, workers.ExportStatusKey(jobID), &status); err != nil {
		h.respondError(w, http.StatusNotFound, "Export job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, status)
}

// CloseAll tears down every live session, for server shutdown.
func (h *SessionHandler) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.controller.Close()
	}
}

func (h *SessionHandler) session(r *http.Request) (*session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[r.PathValue("id")]
	return s, ok
}

// respondCoreError maps core errors onto HTTP statuses: closed
// sessions conflict, field errors are unprocessable, validation
// failures are bad requests.
func (h *SessionHandler) respondCoreError(w http.ResponseWriter, err error, fallback string) {
	var fieldErr *domain.FieldError
	switch {
	case errors.Is(err, domain.ErrSessionClosed):
		h.respondError(w, http.StatusConflict, "Session is closed")
	case errors.As(err, &fieldErr):
		h.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": fieldErr.Message,
			"field": fieldErr.Field,
		})
	case errors.Is(err, domain.ErrUnsupported):
		h.respondError(w, http.StatusNotImplemented, "Operation not supported by this backend")
	default:
		h.logger.Error(fallback, slog.String("error", err.Error()))
		h.respondError(w, http.StatusBadRequest, err.Error())
	}
}

// respondJSON writes a JSON response
func (h *SessionHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// respondError writes an error response
func (h *SessionHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
