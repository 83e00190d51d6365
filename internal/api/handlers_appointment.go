package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelink/telehealth-api/internal/auth"
	"github.com/carelink/telehealth-api/internal/booking"
)

func actorFromRequest(w http.ResponseWriter, r *http.Request) (booking.Actor, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return booking.Actor{}, false
	}
	return booking.Actor{ID: identity.UserID, Role: booking.Role(identity.Role)}, true
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func bookAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		var req bookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Book(r.Context(), booking.BookRequest{
			DoctorID:         req.DoctorID,
			PatientID:        actor.ID,
			SlotStart:        req.SlotStart,
			SlotEnd:          req.SlotEnd,
			ConsultationType: booking.ConsultationType(req.ConsultationType),
			Symptoms:         req.Symptoms,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentView(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}

		var statuses []booking.Status
		if raw := r.URL.Query().Get("status"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				st := booking.Status(strings.TrimSpace(s))
				if !booking.ValidStatus(st) {
					writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+string(st))
					return
				}
				statuses = append(statuses, st)
			}
		}

		details, err := svc.ListForActor(r.Context(), actor, statuses)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"appointments": toDetailViews(details)})
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		detail, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailView(detail))
	}
}

func joinAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Join(r.Context(), actor, id)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentView(appt))
	}
}

func completeAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req completeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Complete(r.Context(), actor, id, req.Prescription, req.Notes)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentView(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentView(appt))
	}
}

func feedbackHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(w, r)
		if !ok {
			return
		}
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.SubmitFeedback(r.Context(), actor, id, req.Rating, req.Feedback)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentView(appt))
	}
}
