package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ActiveStatuses are the statuses that hold a slot. Cancelled appointments
// free the slot; completed ones are history.
var ActiveStatuses = []Status{StatusScheduled, StatusInProgress}

func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type ConsultationType string

const (
	TypeVideo ConsultationType = "video"
	TypeVoice ConsultationType = "voice"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentRefund  PaymentStatus = "refunded"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Actor identifies the caller of a lifecycle operation. Identity is supplied
// by the auth layer and trusted here.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID

	// Date is the calendar day of the slot; SlotStart/SlotEnd are the
	// absolute half-open interval [SlotStart, SlotEnd).
	Date      time.Time
	SlotStart time.Time
	SlotEnd   time.Time

	ConsultationType ConsultationType
	Status           Status
	Symptoms         string

	// RoomID is the opaque handle for the video/voice session, assigned at
	// booking time. Session establishment is the caller's concern.
	RoomID string

	Prescription string
	Notes        string

	// Fee snapshot, fixed at booking time and never recomputed afterwards.
	ConsultationFee int
	PlatformFee     int
	TotalAmount     int
	PaymentStatus   PaymentStatus

	Rating     *int
	Feedback   string
	FeedbackAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Detail is an appointment hydrated with the participant names listings need.
type Detail struct {
	Appointment
	DoctorName     string
	Specialization string
	PatientName    string
}

// Review is a rated, completed consultation as shown on a doctor's profile.
type Review struct {
	Rating      int
	Feedback    string
	PatientName string
	CreatedAt   time.Time
}

// DashboardStats aggregates a doctor's appointment history for the
// dashboard view.
type DashboardStats struct {
	TotalPatients  int
	CompletedCount int
	TotalRevenue   int
	AverageRating  float64
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
