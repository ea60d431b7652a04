package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/meetgrid/internal/application"
)

// defaultBusyRange is the range used by POST /calendar/busy when the body
// names no window.
const defaultBusyRange = 7 * 24 * time.Hour

const maxBodyBytes = 1 << 20

type availabilityService interface {
	PublishAvailability(ctx context.Context, params application.PublishAvailabilityParams) error
	GetAggregatedAvailability(ctx context.Context, params application.AggregateParams) (application.AggregatedAvailability, error)
	SyncAvailability(ctx context.Context, params application.SyncAvailabilityParams) (application.AggregatedAvailability, error)
	FetchBusy(ctx context.Context, params application.FetchBusyParams) ([]application.BusyInterval, error)
}

// AvailabilityHandler serves publishing, aggregation and calendar fetches.
type AvailabilityHandler struct {
	service   availabilityService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(service availabilityService, now func() time.Time, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &AvailabilityHandler{service: service, now: now, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

// decodeBody reads a JSON object. An empty body decodes to the zero value
// when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Publish handles POST /sessions/{id}/availability.
func (h *AvailabilityHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := r.PathValue("id")
	logger := h.log(r.Context(), "Publish", "session_id", sessionID)

	var req publishRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		logger.WarnContext(r.Context(), "failed to decode publish request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &application.ValidationError{}
	window := parseWindow(req.From, req.To, vErr)
	busy := req.toBusy(vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	if err := h.service.PublishAvailability(r.Context(), application.PublishAvailabilityParams{
		Principal: principal,
		SessionID: sessionID,
		Window:    window,
		Busy:      busy,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, okResponse{OK: true})
}

// Aggregate handles GET /sessions/{id}/availability.
func (h *AvailabilityHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	vErr := &application.ValidationError{}
	window := parseWindow(query.Get("from"), query.Get("to"), vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.GetAggregatedAvailability(r.Context(), application.AggregateParams{
		SessionID: r.PathValue("id"),
		Window:    window,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAggregatedResponse(result))
}

// Sync handles POST /sessions/{id}/availability/sync.
func (h *AvailabilityHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := r.PathValue("id")

	var req windowRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.log(r.Context(), "Sync", "session_id", sessionID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode sync request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &application.ValidationError{}
	window := parseWindow(req.From, req.To, vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.SyncAvailability(r.Context(), application.SyncAvailabilityParams{
		Principal: principal,
		SessionID: sessionID,
		Window:    window,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAggregatedResponse(result))
}

// Busy handles POST /calendar/busy. Missing bounds default to now and now
// plus seven days.
func (h *AvailabilityHandler) Busy(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req windowRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		h.log(r.Context(), "Busy", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode busy request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &application.ValidationError{}
	window := parseWindow(req.From, req.To, vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}
	if window.Start.IsZero() {
		window.Start = h.now().UTC().Truncate(time.Second)
	}
	if window.End.IsZero() {
		window.End = window.Start.Add(defaultBusyRange)
	}

	busy, err := h.service.FetchBusy(r.Context(), application.FetchBusyParams{
		Principal: principal,
		Window:    window,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, busyResponse{Busy: toIntervalDTOs(busy)})
}
