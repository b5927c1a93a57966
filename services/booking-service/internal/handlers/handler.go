// Package handlers is the REST surface of the booking service.
package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/agendafacil/libs/httpx"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/idempotency"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

type Handler struct {
	coord       *booking.Coordinator
	lifecycle   *lifecycle.Manager
	idempotency *idempotency.Store
	limiter     httpx.Limiter
	val         *validator.Validate
	logger      *slog.Logger
	jwtSecret   string
}

type Config struct {
	// JWTSecret switches actor extraction to verified bearer tokens.
	JWTSecret string
	// Limiter throttles POST /bookings per client IP; nil disables it.
	Limiter httpx.Limiter
	// Idempotency enables Idempotency-Key replay on POST /bookings; nil disables it.
	Idempotency *idempotency.Store
}

func New(coord *booking.Coordinator, mgr *lifecycle.Manager, logger *slog.Logger, cfg Config) *Handler {
	return &Handler{
		coord:       coord,
		lifecycle:   mgr,
		idempotency: cfg.Idempotency,
		limiter:     cfg.Limiter,
		val:         newValidator(),
		logger:      logger,
		jwtSecret:   cfg.JWTSecret,
	}
}

// Routes mounts the API under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/companies/{companyID}/employees/{employeeID}/availability", h.Availability)

		var throttle []func(http.Handler) http.Handler
		if h.limiter != nil {
			throttle = append(throttle, httpx.RateLimit(h.limiter, httpx.ClientIP, h.logger, true))
		}
		api.With(throttle...).Post("/bookings", h.CreateBooking)

		api.Get("/appointments", h.ListAppointments)
		api.Get("/appointments/{appointmentID}", h.GetAppointment)
		api.Post("/appointments/{appointmentID}/transitions", h.Transition)
		api.Post("/appointments/{appointmentID}/review", h.Review)
	})
	return r
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", httpx.RequestIDFromContext(r.Context()))
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	d, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "date query parameter must be YYYY-MM-DD", nil)
		return
	}
	var serviceIDs []string
	for _, id := range strings.Split(r.URL.Query().Get("service_ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			serviceIDs = append(serviceIDs, id)
		}
	}

	out, err := h.coord.Availability(r.Context(), chi.URLParam(r, "companyID"), chi.URLParam(r, "employeeID"), d, serviceIDs...)
	if err != nil {
		h.fail(w, r, "availability", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type clientPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact"`
}

type recurrencePayload struct {
	Frequency string `json:"frequency" validate:"required,frequency"`
	EndDate   string `json:"end_date" validate:"required,date"`
}

type createBookingRequest struct {
	CompanyID  string             `json:"company_id" validate:"required"`
	EmployeeID string             `json:"employee_id" validate:"required"`
	Date       string             `json:"date" validate:"required,date"`
	StartTime  string             `json:"start_time" validate:"required,clock"`
	ServiceIDs []string           `json:"service_ids" validate:"required,min=1,dive,required"`
	Client     clientPayload      `json:"client"`
	Notes      string             `json:"notes" validate:"max=500"`
	Recurrence *recurrencePayload `json:"recurrence"`
}

type occurrenceResult struct {
	Date        model.Date         `json:"date"`
	Appointment *model.Appointment `json:"appointment,omitempty"`
	Error       *errorBody         `json:"error,omitempty"`
}

type seriesResponse struct {
	Booked  int                `json:"booked"`
	Failed  int                `json:"failed"`
	Results []occurrenceResult `json:"results"`
}

func (req createBookingRequest) toDomain() booking.Request {
	// Formats were checked by the validator.
	d, _ := model.ParseDate(req.Date)
	start, _ := model.ParseClock(req.StartTime)
	out := booking.Request{
		CompanyID:  strings.TrimSpace(req.CompanyID),
		EmployeeID: strings.TrimSpace(req.EmployeeID),
		Date:       d,
		Start:      start,
		ServiceIDs: req.ServiceIDs,
		Client:     model.Client{ID: req.Client.ID, Name: strings.TrimSpace(req.Client.Name), Contact: strings.TrimSpace(req.Client.Contact)},
		Notes:      req.Notes,
	}
	if req.Recurrence != nil {
		f, _ := model.ParseFrequency(req.Recurrence.Frequency)
		end, _ := model.ParseDate(req.Recurrence.EndDate)
		out.Recurrence = &model.Recurrence{Frequency: f, EndDate: end}
	}
	return out
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)
	actor, err := h.actorFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "unreadable body", nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("create booking: invalid json", "err", err)
		writeError(w, http.StatusBadRequest, "validation", "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("create booking: validation error")
		writeError(w, http.StatusUnprocessableEntity, "validation", "validation error", validationDetails(err))
		return
	}
	switch actor.Role {
	case model.RoleClient:
		req.Client.ID = actor.ID
	case model.RoleEmployee, model.RoleCompany:
		if actor.CompanyID != req.CompanyID {
			writeError(w, http.StatusForbidden, "forbidden", "actor belongs to another company", nil)
			return
		}
	default:
		writeError(w, http.StatusForbidden, "forbidden", "role may not book", nil)
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" || h.idempotency == nil {
		status, body := h.book(r, req)
		writeJSON(w, status, body)
		return
	}

	fingerprint := fingerprintOf(actor, raw)
	rec, claimed, err := h.idempotency.Begin(r.Context(), req.CompanyID, key, fingerprint)
	switch {
	case errors.Is(err, idempotency.ErrKeyReused):
		writeError(w, http.StatusUnprocessableEntity, "validation", err.Error(), nil)
		return
	case errors.Is(err, idempotency.ErrInProgress):
		writeError(w, http.StatusConflict, "conflict", err.Error(), nil)
		return
	case err != nil:
		log.Error("create booking: idempotency store", "err", err)
		writeError(w, http.StatusServiceUnavailable, "internal", "idempotency store unavailable", nil)
		return
	case !claimed:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return
	}

	status, body := h.book(r, req)
	encoded, err := json.Marshal(body)
	if err != nil {
		_ = h.idempotency.Release(r.Context(), req.CompanyID, key)
		writeError(w, http.StatusInternalServerError, "internal", "encode response", nil)
		return
	}
	if status >= http.StatusInternalServerError {
		// Let the client retry with the same key.
		if err := h.idempotency.Release(r.Context(), req.CompanyID, key); err != nil {
			log.Warn("create booking: release idempotency key", "err", err)
		}
	} else if err := h.idempotency.Complete(r.Context(), req.CompanyID, key, fingerprint, status, encoded); err != nil {
		log.Warn("create booking: store idempotent response", "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(encoded, '\n'))
}

// book runs the request and returns the status and body to answer with.
func (h *Handler) book(r *http.Request, req createBookingRequest) (int, any) {
	domain := req.toDomain()
	if domain.Recurrence == nil {
		appt, err := h.coord.Book(r.Context(), domain)
		if err != nil {
			h.logFailure(r, "create booking", err)
			status, body := describe(err)
			return status, errorResponse{Error: body}
		}
		return http.StatusCreated, appt
	}

	results, err := h.coord.BookSeries(r.Context(), domain)
	if err != nil {
		h.logFailure(r, "create booking series", err)
		status, body := describe(err)
		return status, errorResponse{Error: body}
	}
	out := seriesResponse{Results: make([]occurrenceResult, 0, len(results))}
	for _, res := range results {
		item := occurrenceResult{Date: res.Date, Appointment: res.Appointment}
		if res.Err != nil {
			_, body := describe(res.Err)
			item.Error = &body
			out.Failed++
		} else {
			out.Booked++
		}
		out.Results = append(out.Results, item)
	}
	if out.Booked == 0 {
		return http.StatusConflict, out
	}
	return http.StatusCreated, out
}

func fingerprintOf(actor model.Actor, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(string(actor.Role) + "|" + actor.ID + "|"))
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
		return
	}
	q := r.URL.Query()
	companyID, employeeID := q.Get("company_id"), q.Get("employee_id")
	d, err := model.ParseDate(q.Get("date"))
	if companyID == "" || employeeID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "validation", "company_id, employee_id and date are required", nil)
		return
	}
	if actor.Role == model.RoleClient || !canSee(actor, companyID) {
		writeError(w, http.StatusForbidden, "forbidden", "agenda is visible to company staff only", nil)
		return
	}

	appts, err := h.coord.Agenda(r.Context(), companyID, employeeID, d)
	if err != nil {
		h.fail(w, r, "list appointments", err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
		return
	}
	id := chi.URLParam(r, "appointmentID")
	appt, err := h.coord.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get appointment", err)
		return
	}
	hidden := !canSee(actor, appt.CompanyID) ||
		(actor.Role == model.RoleClient && (appt.Client.ID == "" || appt.Client.ID != actor.ID))
	if hidden {
		writeDomainError(w, model.NotFound("appointment", id))
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type transitionRequest struct {
	Status        string `json:"status" validate:"required,status"`
	Justification string `json:"justification" validate:"max=500"`
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)
	actor, err := h.actorFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Warn("transition: invalid json", "err", err)
		writeError(w, http.StatusBadRequest, "validation", "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", "validation error", validationDetails(err))
		return
	}
	target, _ := model.ParseStatus(req.Status)

	appt, err := h.lifecycle.Transition(r.Context(), chi.URLParam(r, "appointmentID"), target, actor, req.Justification)
	if err != nil {
		h.fail(w, r, "transition", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
		return
	}
	appt, err := h.lifecycle.MarkReviewed(r.Context(), chi.URLParam(r, "appointmentID"), actor)
	if err != nil {
		h.fail(w, r, "review", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logFailure(r, op, err)
	writeDomainError(w, err)
}

func (h *Handler) logFailure(r *http.Request, op string, err error) {
	if status, _ := describe(err); status >= http.StatusInternalServerError {
		h.log(r).Error(op+" failed", "err", err)
		return
	}
	h.log(r).Info(op+" refused", "err", err)
}
