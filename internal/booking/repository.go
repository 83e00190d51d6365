package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned both by the pre-insert overlap check and by
	// Create when the storage uniqueness constraint rejects a racing insert.
	// Callers cannot and need not tell the two apart.
	ErrSlotTaken = errors.New("slot already booked")
)

// Repository contains all appointment persistence the service needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)

	// HasActiveOverlap reports whether any scheduled or in-progress
	// appointment for the doctor overlaps the half-open interval
	// [start, end). It is a fast pre-filter only; Create is the
	// authoritative guard.
	HasActiveOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error)

	// Create inserts the appointment, returning ErrSlotTaken when the
	// storage constraint on (doctor, date, slot start) rejects it.
	Create(ctx context.Context, appt *Appointment) error

	// UpdateStatus transitions id from one of the given statuses to the new
	// status, atomically. ErrNotFound means the row no longer satisfies the
	// guard (raced or gone).
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error)

	// Complete sets status to completed and attaches prescription and notes,
	// guarded on the current status being scheduled or in progress.
	Complete(ctx context.Context, id uuid.UUID, prescription, notes string) (*Appointment, error)

	// AttachFeedback sets rating, feedback and the feedback timestamp,
	// guarded on status completed and no prior rating. ErrNotFound means the
	// guard failed.
	AttachFeedback(ctx context.Context, id uuid.UUID, rating int, feedback string, at time.Time) (*Appointment, error)

	ListByDoctor(ctx context.Context, doctorID uuid.UUID, statuses []Status) ([]Detail, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, statuses []Status) ([]Detail, error)

	// ListActiveBetween returns the doctor's scheduled and in-progress
	// appointments whose interval intersects [from, to).
	ListActiveBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// ListUpcoming returns the doctor's next active appointments starting
	// after the given instant, ascending, at most limit.
	ListUpcoming(ctx context.Context, doctorID uuid.UUID, after time.Time, limit int) ([]Detail, error)

	// RatedCompletedRatings returns every rating attached to the doctor's
	// completed appointments, for aggregate recomputation.
	RatedCompletedRatings(ctx context.Context, doctorID uuid.UUID) ([]int, error)

	ListReviews(ctx context.Context, doctorID uuid.UUID, limit int) ([]Review, error)

	DoctorStats(ctx context.Context, doctorID uuid.UUID) (*DashboardStats, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
