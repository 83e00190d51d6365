package api

import (
	"encoding/json"
	"net/http"

	"github.com/carelink/telehealth-api/internal/auth"
)

func registerPatientHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, token, err := svc.RegisterPatient(r.Context(), auth.Signup{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toPatientView(p)})
	}
}

func loginPatientHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		p, token, err := svc.LoginPatient(r.Context(), req.Email, req.Password)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, authResponse{Token: token, User: toPatientView(p)})
	}
}

func registerDoctorHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		d, token, err := svc.RegisterDoctor(r.Context(), auth.Signup{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toDoctorView(d, true)})
	}
}

func loginDoctorHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		d, token, err := svc.LoginDoctor(r.Context(), req.Email, req.Password)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, authResponse{Token: token, User: toDoctorView(d, true)})
	}
}
