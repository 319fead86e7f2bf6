// Package httptransport serves the local JSON API the operator UI drives.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"checkscan/internal/audit"
	"checkscan/internal/check"
	"checkscan/internal/pipeline"
	"checkscan/internal/signing"
	"checkscan/internal/submission"
	dErrors "checkscan/pkg/domain-errors"
	"checkscan/pkg/platform/httputil"
	"checkscan/pkg/requestcontext"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Service is the session pipeline behind the records endpoints.
type Service interface {
	Scan(ctx context.Context) (pipeline.ScanSummary, error)
	Records() []pipeline.RecordView
	Edit(name string, edit check.Edit) (pipeline.RecordView, error)
	Submit(ctx context.Context, names []string) (submission.BatchResult, error)
	Revert(ctx context.Context, names []string) (submission.RevertResult, error)
	ListScanned(ctx context.Context, page int) (submission.Page, error)
}

// Sessions holds the signing context of the operator session.
type Sessions interface {
	Set(sc signing.Context) error
	Clear()
	Active() bool
}

// AuditLog lists recent batch audit events.
type AuditLog interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler handles the local API endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Service
	sessions Sessions
	auditLog AuditLog
	checks   map[string]HealthCheck
	location *time.Location
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHealthCheck adds a named dependency check to GET /health.
func WithHealthCheck(name string, fn HealthCheck) Option {
	return func(h *Handler) {
		h.checks[name] = fn
	}
}

// WithAuditLog exposes GET /audit.
func WithAuditLog(log AuditLog) Option {
	return func(h *Handler) {
		h.auditLog = log
	}
}

// WithLocation sets the zone capture dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		h.location = loc
	}
}

// New creates a Handler.
func New(service Service, sessions Sessions, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	if sessions == nil {
		return nil, errors.New("sessions is required")
	}
	h := &Handler{
		logger:   slog.Default(),
		service:  service,
		sessions: sessions,
		checks:   map[string]HealthCheck{},
		location: time.Local,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register registers the API routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/session", h.handleGetSession)
	r.Put("/session", h.handlePutSession)
	r.Delete("/session", h.handleDeleteSession)

	r.Post("/records/scan", h.handleScan)
	r.Get("/records", h.handleListRecords)
	r.Patch("/records/{name}", h.handleEditRecord)
	r.Post("/records/submit", h.handleSubmit)
	r.Post("/records/revert", h.handleRevert)

	r.Get("/scanned", h.handleListScanned)
	r.Get("/health", h.handleHealth)
	if h.auditLog != nil {
		r.Get("/audit", h.handleListAudit)
	}
}

func (h *Handler) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, SessionResponse{Active: h.sessions.Active()})
}

func (h *Handler) handlePutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SessionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.sessions.Set(req.toContext()); err != nil {
		h.logger.WarnContext(ctx, "session rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "session rejected"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Scan(r.Context())
	if err != nil {
		h.fail(w, r, "scan failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, _ *http.Request) {
	views := h.service.Records()
	resp := RecordsResponse{Records: make([]RecordResponse, 0, len(views))}
	for _, v := range views {
		resp.Records = append(resp.Records, toRecordResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	edit, err := req.toEdit(h.location)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.Edit(chi.URLParam(r, "name"), edit)
	if err != nil {
		h.fail(w, r, "edit failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(view))
}

// handleSubmit submits the named records, or every valid one when the body
// is empty. A failed batch is answered with 502 and the full result.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req NamesRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	result, err := h.service.Submit(r.Context(), req.Names)
	if err != nil {
		h.fail(w, r, "submit failed", err)
		return
	}
	status := http.StatusOK
	if result.Failed {
		status = http.StatusBadGateway
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req NamesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Revert(r.Context(), req.Names)
	if err != nil {
		h.fail(w, r, "revert failed", err)
		return
	}
	status := http.StatusOK
	if result.HasError {
		status = http.StatusBadGateway
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) handleListScanned(w http.ResponseWriter, r *http.Request) {
	page := 0
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "page must be a non-negative integer"))
			return
		}
		page = n
	}
	result, err := h.service.ListScanned(r.Context(), page)
	if err != nil {
		h.fail(w, r, "list scanned failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxAuditLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	events, err := h.auditLog.ListRecent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list audit failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditResponse{Events: events})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	resp := HealthResponse{Status: "ok", Session: h.sessions.Active()}
	status := http.StatusOK
	for name, fn := range h.checks {
		if err := fn(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
