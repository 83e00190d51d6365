package doctor

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/telehealth-api/internal/availability"
)

// Specializations accepted on doctor profiles.
var Specializations = []string{
	"Cardiologist",
	"Dermatologist",
	"Orthopedic",
	"Pediatrician",
	"Neurologist",
	"Gynecologist",
	"General Physician",
	"ENT Specialist",
	"Psychiatrist",
	"Ophthalmologist",
}

type Hospital struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Email          string
	PasswordHash   string
	Specialization string
	Categories     []string
	Qualification  string
	ExperienceYrs  int
	About          string
	// ConsultationFee is the per-consultation price in the platform's
	// minor-unit-free currency. Fee snapshots on appointments are derived
	// from it at booking time.
	ConsultationFee int
	Hospital        Hospital
	Availability    availability.Config
	IsVerified      bool
	IsActive        bool
	AverageRating   float64
	TotalRatings    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func ValidSpecialization(s string) bool {
	for _, known := range Specializations {
		if s == known {
			return true
		}
	}
	return false
}
