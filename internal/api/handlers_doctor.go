package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carelink/telehealth-api/internal/auth"
	"github.com/carelink/telehealth-api/internal/booking"
	"github.com/carelink/telehealth-api/internal/doctor"
)

func searchDoctorsHandler(svc *doctor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := doctor.SearchFilters{
			Query:          q.Get("q"),
			Specialization: q.Get("specialization"),
			City:           q.Get("city"),
			Category:       q.Get("category"),
			MinFee:         queryInt(q.Get("minFee")),
			MaxFee:         queryInt(q.Get("maxFee")),
			SortBy:         q.Get("sortBy"),
			SortOrder:      q.Get("sortOrder"),
			Page:           queryInt(q.Get("page")),
			Limit:          queryInt(q.Get("limit")),
		}

		doctors, total, err := svc.Search(r.Context(), f)
		if err != nil {
			respondError(w, err)
			return
		}

		views := make([]doctorView, 0, len(doctors))
		for i := range doctors {
			views = append(views, toDoctorView(&doctors[i], false))
		}
		if f.Page < 1 {
			f.Page = 1
		}
		writeJSON(w, http.StatusOK, searchResponse{
			Doctors: views,
			Total:   total,
			Page:    f.Page,
			Limit:   len(views),
		})
	}
}

func getDoctorHandler(svc *doctor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		d, err := svc.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDoctorView(d, false))
	}
}

func doctorReviewsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		reviews, err := svc.Reviews(r.Context(), id, queryInt(r.URL.Query().Get("limit")))
		if err != nil {
			respondError(w, err)
			return
		}

		views := make([]reviewView, 0, len(reviews))
		for _, rv := range reviews {
			views = append(views, reviewView{
				Rating:      rv.Rating,
				Feedback:    rv.Feedback,
				PatientName: rv.PatientName,
				CreatedAt:   rv.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": views})
	}
}

func availableSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}
		day, ok := queryDate(w, r)
		if !ok {
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), id, day)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
	}
}

func bookedSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}
		day, ok := queryDate(w, r)
		if !ok {
			return
		}

		starts, err := svc.BookedSlotStarts(r.Context(), id, day)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"bookedSlots": starts})
	}
}

func updateProfileHandler(svc *doctor.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
			return
		}

		var req profileUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		d, err := svc.UpdateProfile(r.Context(), identity.UserID, doctor.ProfileUpdate{
			Name:            req.Name,
			Specialization:  req.Specialization,
			Categories:      req.Categories,
			Qualification:   req.Qualification,
			ExperienceYrs:   req.ExperienceYrs,
			About:           req.About,
			ConsultationFee: req.ConsultationFee,
			Hospital:        req.Hospital,
			Availability:    req.Availability,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDoctorView(d, true))
	}
}

func dashboardHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
			return
		}

		dash, err := svc.DoctorDashboard(r.Context(), identity.UserID)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, dashboardView{
			TotalPatients:  dash.Stats.TotalPatients,
			CompletedCount: dash.Stats.CompletedCount,
			TotalRevenue:   dash.Stats.TotalRevenue,
			AverageRating:  dash.Stats.AverageRating,
			Today:          toDetailViews(dash.Today),
			Upcoming:       toDetailViews(dash.Upcoming),
		})
	}
}

func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}
