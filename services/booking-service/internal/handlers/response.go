package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

type errorBody struct {
	Kind    string            `json:"kind"`
	Field   string            `json:"field,omitempty"`
	ID      string            `json:"id,omitempty"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string, details map[string]string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message, Details: details}})
}

// describe maps a domain error onto its HTTP status and error body.
func describe(err error) (int, errorBody) {
	var (
		ve *model.ValidationError
		ce *model.ConflictError
		te *model.InvalidTransitionError
		ne *model.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, errorBody{Kind: "validation", Field: ve.Field, Message: ve.Error()}
	case errors.As(err, &ce):
		return http.StatusConflict, errorBody{Kind: "conflict", ID: ce.AppointmentID, Message: ce.Error()}
	case errors.As(err, &te):
		return http.StatusConflict, errorBody{Kind: "invalid_transition", ID: te.AppointmentID, Message: te.Error()}
	case errors.As(err, &ne):
		return http.StatusNotFound, errorBody{Kind: "not_found", Field: ne.Entity, ID: ne.ID, Message: ne.Error()}
	}
	return http.StatusInternalServerError, errorBody{Kind: "internal", Message: "internal error"}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, body := describe(err)
	writeJSON(w, status, errorResponse{Error: body})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}
