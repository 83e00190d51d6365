package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/telehealth-api/internal/availability"
	"github.com/carelink/telehealth-api/internal/booking"
	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

// Request bodies.

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type bookRequest struct {
	DoctorID         uuid.UUID `json:"doctorId"`
	SlotStart        time.Time `json:"slotStart"`
	SlotEnd          time.Time `json:"slotEnd"`
	ConsultationType string    `json:"consultationType"`
	Symptoms         string    `json:"symptoms"`
}

type completeRequest struct {
	Prescription string `json:"prescription"`
	Notes        string `json:"notes"`
}

type feedbackRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

type profileUpdateRequest struct {
	Name            *string                     `json:"name"`
	Specialization  *string                     `json:"specialization"`
	Categories      []string                    `json:"categories"`
	Qualification   *string                     `json:"qualification"`
	ExperienceYrs   *int                        `json:"experienceYears"`
	About           *string                     `json:"about"`
	ConsultationFee *int                        `json:"consultationFee"`
	Hospital        *doctor.Hospital            `json:"hospital"`
	Availability    *doctor.ProfileAvailability `json:"availability"`
}

// Response bodies.

type authResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type patientView struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

type doctorView struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	Email           string              `json:"email,omitempty"`
	Specialization  string              `json:"specialization"`
	Categories      []string            `json:"categories,omitempty"`
	Qualification   string              `json:"qualification"`
	ExperienceYrs   int                 `json:"experienceYears"`
	About           string              `json:"about"`
	ConsultationFee int                 `json:"consultationFee"`
	Hospital        doctor.Hospital     `json:"hospital"`
	Availability    availability.Config `json:"availability"`
	IsVerified      bool                `json:"isVerified"`
	AverageRating   float64             `json:"averageRating"`
	TotalRatings    int                 `json:"totalRatings"`
}

type appointmentView struct {
	ID               uuid.UUID  `json:"id"`
	DoctorID         uuid.UUID  `json:"doctorId"`
	PatientID        uuid.UUID  `json:"patientId"`
	DoctorName       string     `json:"doctorName,omitempty"`
	Specialization   string     `json:"specialization,omitempty"`
	PatientName      string     `json:"patientName,omitempty"`
	Date             string     `json:"date"`
	SlotStart        time.Time  `json:"slotStart"`
	SlotEnd          time.Time  `json:"slotEnd"`
	ConsultationType string     `json:"consultationType"`
	Status           string     `json:"status"`
	Symptoms         string     `json:"symptoms"`
	RoomID           string     `json:"roomId"`
	Prescription     string     `json:"prescription,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	ConsultationFee  int        `json:"consultationFee"`
	PlatformFee      int        `json:"platformFee"`
	TotalAmount      int        `json:"totalAmount"`
	PaymentStatus    string     `json:"paymentStatus"`
	Rating           *int       `json:"rating,omitempty"`
	Feedback         string     `json:"feedback,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	FeedbackAt       *time.Time `json:"feedbackAt,omitempty"`
}

type reviewView struct {
	Rating      int       `json:"rating"`
	Feedback    string    `json:"feedback,omitempty"`
	PatientName string    `json:"patientName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type dashboardView struct {
	TotalPatients  int               `json:"totalPatients"`
	CompletedCount int               `json:"completedAppointments"`
	TotalRevenue   int               `json:"totalRevenue"`
	AverageRating  float64           `json:"averageRating"`
	Today          []appointmentView `json:"todayAppointments"`
	Upcoming       []appointmentView `json:"upcomingAppointments"`
}

type searchResponse struct {
	Doctors []doctorView `json:"doctors"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	Limit   int          `json:"limit"`
}

func toPatientView(p *patient.Patient) patientView {
	return patientView{ID: p.ID, Name: p.Name, Email: p.Email, Role: "patient"}
}

// toDoctorView renders a doctor profile. Email is only included when the
// doctor is viewing their own profile.
func toDoctorView(d *doctor.Doctor, ownProfile bool) doctorView {
	v := doctorView{
		ID:              d.ID,
		Name:            d.Name,
		Specialization:  d.Specialization,
		Categories:      d.Categories,
		Qualification:   d.Qualification,
		ExperienceYrs:   d.ExperienceYrs,
		About:           d.About,
		ConsultationFee: d.ConsultationFee,
		Hospital:        d.Hospital,
		Availability:    d.Availability,
		IsVerified:      d.IsVerified,
		AverageRating:   d.AverageRating,
		TotalRatings:    d.TotalRatings,
	}
	if ownProfile {
		v.Email = d.Email
	}
	return v
}

func toAppointmentView(a *booking.Appointment) appointmentView {
	return appointmentView{
		ID:               a.ID,
		DoctorID:         a.DoctorID,
		PatientID:        a.PatientID,
		Date:             a.Date.Format("2006-01-02"),
		SlotStart:        a.SlotStart,
		SlotEnd:          a.SlotEnd,
		ConsultationType: string(a.ConsultationType),
		Status:           string(a.Status),
		Symptoms:         a.Symptoms,
		RoomID:           a.RoomID,
		Prescription:     a.Prescription,
		Notes:            a.Notes,
		ConsultationFee:  a.ConsultationFee,
		PlatformFee:      a.PlatformFee,
		TotalAmount:      a.TotalAmount,
		PaymentStatus:    string(a.PaymentStatus),
		Rating:           a.Rating,
		Feedback:         a.Feedback,
		CreatedAt:        a.CreatedAt,
		FeedbackAt:       a.FeedbackAt,
	}
}

func toDetailView(d *booking.Detail) appointmentView {
	v := toAppointmentView(&d.Appointment)
	v.DoctorName = d.DoctorName
	v.Specialization = d.Specialization
	v.PatientName = d.PatientName
	return v
}

func toDetailViews(details []booking.Detail) []appointmentView {
	views := make([]appointmentView, 0, len(details))
	for i := range details {
		views = append(views, toDetailView(&details[i]))
	}
	return views
}
