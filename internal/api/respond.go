package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-api/internal/auth"
	"github.com/carelink/telehealth-api/internal/booking"
	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// respondError maps domain errors onto the five error kinds the API exposes:
// validation, conflict, authorization, state conflict and not found.
func respondError(w http.ResponseWriter, err error) {
	switch {
	// Validation
	case errors.Is(err, booking.ErrInvalidBooking),
		errors.Is(err, booking.ErrInvalidRating),
		errors.Is(err, doctor.ErrInvalidProfile),
		errors.Is(err, auth.ErrInvalidSignup):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())

	// Slot conflicts: pre-check and storage-constraint losses look the same.
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "this time slot is already booked")

	// Authorization
	case errors.Is(err, booking.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not_your_appointment", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())

	// State conflicts
	case errors.Is(err, booking.ErrAlreadyRated):
		writeError(w, http.StatusConflict, "already_rated", err.Error())
	case errors.Is(err, booking.ErrWrongStatus):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, doctor.ErrEmailTaken), errors.Is(err, patient.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())

	// Not found
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, doctor.ErrNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, patient.ErrNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())

	default:
		log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
