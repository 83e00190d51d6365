package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth-api/internal/availability"
	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

const (
	EventBookingCreated   = "BOOKING_CREATED"
	EventConsultJoined    = "CONSULTATION_JOINED"
	EventConsultCompleted = "CONSULTATION_COMPLETED"
	EventBookingCancelled = "BOOKING_CANCELLED"
	EventFeedbackGiven    = "FEEDBACK_SUBMITTED"
)

// PlatformFeePercent is the platform's cut on top of the consultation fee.
const PlatformFeePercent = 10

var (
	ErrInvalidBooking = errors.New("invalid booking request")
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")

	// ErrNotParticipant is an authorization failure: the caller is not the
	// doctor or patient on the appointment, or the action is not for their
	// role. Distinct from ErrWrongStatus so callers can tell "not yours"
	// from "wrong moment".
	ErrNotParticipant = errors.New("appointment does not belong to caller")
	ErrWrongStatus    = errors.New("action not allowed in current appointment status")
	ErrAlreadyRated   = errors.New("feedback already submitted for this appointment")
)

// DoctorStore is the slice of the doctor directory the booking flow needs.
type DoctorStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	SetRating(ctx context.Context, id uuid.UUID, average float64, total int) error
}

type PatientStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// SlotCache caches computed day availability per doctor. A miss is never an
// error; the cache is purely a read-path optimization and is invalidated on
// any mutation that frees or takes a slot.
type SlotCache interface {
	GetDaySlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]availability.Slot, bool)
	SetDaySlots(ctx context.Context, doctorID uuid.UUID, day time.Time, slots []availability.Slot)
	InvalidateDay(ctx context.Context, doctorID uuid.UUID, day time.Time)
}

type Service struct {
	repo     Repository
	doctors  DoctorStore
	patients PatientStore
	cache    SlotCache
	log      zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, doctors DoctorStore, patients PatientStore, cache SlotCache, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// BookRequest is a patient's request for one concrete slot. Fee amounts are
// deliberately absent: they are recomputed here from the doctor's stored fee
// so callers cannot tamper with them.
type BookRequest struct {
	DoctorID         uuid.UUID
	PatientID        uuid.UUID
	SlotStart        time.Time
	SlotEnd          time.Time
	ConsultationType ConsultationType
	Symptoms         string
}

// Book reserves a slot for a patient. Correctness under concurrent requests
// comes from the storage uniqueness constraint, not from the overlap
// pre-check: two racing bookings both pass the pre-check, and the insert
// decides the winner. The loser surfaces the same ErrSlotTaken as a
// pre-check hit.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if !req.SlotEnd.After(req.SlotStart) {
		return nil, fmt.Errorf("%w: slot end must be after slot start", ErrInvalidBooking)
	}
	symptoms := strings.TrimSpace(req.Symptoms)
	if symptoms == "" {
		return nil, fmt.Errorf("%w: symptoms must not be empty", ErrInvalidBooking)
	}
	if req.ConsultationType != TypeVideo && req.ConsultationType != TypeVoice {
		return nil, fmt.Errorf("%w: unknown consultation type %q", ErrInvalidBooking, req.ConsultationType)
	}

	doc, err := s.doctors.GetByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, doctor.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	// Fast pre-filter; not the correctness guarantee.
	conflict, err := s.repo.HasActiveOverlap(ctx, req.DoctorID, req.SlotStart, req.SlotEnd)
	if err != nil {
		return nil, fmt.Errorf("check slot overlap: %w", err)
	}
	if conflict {
		return nil, ErrSlotTaken
	}

	consultationFee := doc.ConsultationFee
	platformFee := int(math.Round(float64(consultationFee) * PlatformFeePercent / 100))

	appt := &Appointment{
		ID:               uuid.New(),
		DoctorID:         req.DoctorID,
		PatientID:        req.PatientID,
		Date:             dayOf(req.SlotStart),
		SlotStart:        req.SlotStart,
		SlotEnd:          req.SlotEnd,
		ConsultationType: req.ConsultationType,
		Status:           StatusScheduled,
		Symptoms:         symptoms,
		RoomID:           NewRoomID(),
		ConsultationFee:  consultationFee,
		PlatformFee:      platformFee,
		TotalAmount:      consultationFee + platformFee,
		// Payment is simulated; the booking records the outcome only.
		PaymentStatus: PaymentPaid,
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.cache.InvalidateDay(ctx, appt.DoctorID, appt.Date)
	s.logEvent(ctx, appt.ID, EventBookingCreated, map[string]any{
		"doctor_id":  appt.DoctorID.String(),
		"patient_id": appt.PatientID.String(),
		"slot_start": appt.SlotStart,
		"slot_end":   appt.SlotEnd,
	})

	return appt, nil
}

// AvailableSlots returns the doctor's still-bookable slots for a calendar
// day: the computed availability minus anything overlapping an active
// appointment.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]availability.Slot, error) {
	day = dayOf(day)

	if slots, ok := s.cache.GetDaySlots(ctx, doctorID, day); ok {
		return slots, nil
	}

	slots, err := s.computeOpenSlots(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	s.cache.SetDaySlots(ctx, doctorID, day, slots)
	return slots, nil
}

// WarmDay computes and caches a doctor's open slots for a day, bypassing the
// cached value. Used by the slot-warmer.
func (s *Service) WarmDay(ctx context.Context, doctorID uuid.UUID, day time.Time) error {
	day = dayOf(day)
	slots, err := s.computeOpenSlots(ctx, doctorID, day)
	if err != nil {
		return err
	}
	s.cache.SetDaySlots(ctx, doctorID, day, slots)
	return nil
}

func (s *Service) computeOpenSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]availability.Slot, error) {
	doc, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, doctor.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	all := availability.ComputeSlots(doc.Availability, day)
	if len(all) == 0 {
		return nil, nil
	}

	taken, err := s.repo.ListActiveBetween(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}

	open := make([]availability.Slot, 0, len(all))
	for _, slot := range all {
		blocked := false
		for _, appt := range taken {
			if availability.Overlaps(slot.Start, slot.End, appt.SlotStart, appt.SlotEnd) {
				blocked = true
				break
			}
		}
		if !blocked {
			open = append(open, slot)
		}
	}
	return open, nil
}

// BookedSlotStarts returns the start times of the doctor's active bookings
// on a day, for clients that grey out taken slots.
func (s *Service) BookedSlotStarts(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]time.Time, error) {
	day = dayOf(day)
	appts, err := s.repo.ListActiveBetween(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}

	starts := make([]time.Time, 0, len(appts))
	for _, a := range appts {
		starts = append(starts, a.SlotStart)
	}
	return starts, nil
}

// Get returns an appointment with participant details, only to its doctor
// or patient.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !isParticipant(actor, &detail.Appointment) {
		return nil, ErrNotParticipant
	}
	return detail, nil
}

// ListForActor returns the caller's own appointments, optionally filtered
// by status, ordered by slot start.
func (s *Service) ListForActor(ctx context.Context, actor Actor, statuses []Status) ([]Detail, error) {
	for _, st := range statuses {
		if !ValidStatus(st) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidBooking, st)
		}
	}

	var (
		details []Detail
		err     error
	)
	switch actor.Role {
	case RoleDoctor:
		details, err = s.repo.ListByDoctor(ctx, actor.ID, statuses)
	case RolePatient:
		details, err = s.repo.ListByPatient(ctx, actor.ID, statuses)
	default:
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return details, nil
}

// Join moves a scheduled appointment to in progress and hands back the room
// handle. Either participant may join; joining an already in-progress
// consultation is a no-op so the second participant gets the same handle.
func (s *Service) Join(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case StatusInProgress:
		return appt, nil
	case StatusScheduled:
	default:
		return nil, fmt.Errorf("%w: cannot join a %s appointment", ErrWrongStatus, appt.Status)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusScheduled}, StatusInProgress)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Raced with another transition.
			return nil, fmt.Errorf("%w: appointment changed state", ErrWrongStatus)
		}
		return nil, fmt.Errorf("join appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventConsultJoined, map[string]any{
		"by_role": string(actor.Role),
	})

	return updated, nil
}

// Complete ends a consultation. Only the doctor on the appointment may end
// it; prescription and notes are optional attachments.
func (s *Service) Complete(ctx context.Context, actor Actor, id uuid.UUID, prescription, notes string) (*Appointment, error) {
	appt, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleDoctor {
		return nil, fmt.Errorf("%w: only the doctor can end a consultation", ErrNotParticipant)
	}
	if appt.Status != StatusScheduled && appt.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: cannot complete a %s appointment", ErrWrongStatus, appt.Status)
	}

	updated, err := s.repo.Complete(ctx, id, prescription, notes)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: appointment changed state", ErrWrongStatus)
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	// Completed appointments no longer hold the slot.
	s.cache.InvalidateDay(ctx, updated.DoctorID, updated.Date)
	s.logEvent(ctx, updated.ID, EventConsultCompleted, map[string]any{
		"has_prescription": prescription != "",
	})

	return updated, nil
}

// Cancel marks a scheduled appointment cancelled. Only the doctor on the
// appointment may cancel, and only once the scheduled start has passed.
// A cancelled slot no longer blocks new bookings.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleDoctor {
		return nil, fmt.Errorf("%w: only the doctor can cancel", ErrNotParticipant)
	}
	if appt.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: cannot cancel a %s appointment", ErrWrongStatus, appt.Status)
	}
	if s.now().Before(appt.SlotStart) {
		return nil, fmt.Errorf("%w: cannot cancel before the scheduled start", ErrWrongStatus)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusScheduled}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: appointment changed state", ErrWrongStatus)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.cache.InvalidateDay(ctx, updated.DoctorID, updated.Date)
	s.logEvent(ctx, updated.ID, EventBookingCancelled, map[string]any{})

	return updated, nil
}

// SubmitFeedback attaches a one-time rating and feedback text to a completed
// appointment and recomputes the doctor's aggregate rating. Only the patient
// on the appointment may rate it, exactly once.
func (s *Service) SubmitFeedback(ctx context.Context, actor Actor, id uuid.UUID, rating int, feedback string) (*Appointment, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	appt, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != RolePatient {
		return nil, fmt.Errorf("%w: only the patient can submit feedback", ErrNotParticipant)
	}
	if appt.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: feedback requires a completed appointment", ErrWrongStatus)
	}
	if appt.Rating != nil {
		return nil, ErrAlreadyRated
	}

	updated, err := s.repo.AttachFeedback(ctx, id, rating, feedback, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The guarded update lost a race with another submission.
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("attach feedback: %w", err)
	}

	if err := s.recomputeDoctorRating(ctx, updated.DoctorID); err != nil {
		// The feedback itself is committed; a failed aggregate write will be
		// corrected by the next submission.
		s.log.Error().Err(err).Str("doctor_id", updated.DoctorID.String()).Msg("recompute doctor rating")
	}

	s.logEvent(ctx, updated.ID, EventFeedbackGiven, map[string]any{
		"rating": rating,
	})

	return updated, nil
}

func (s *Service) recomputeDoctorRating(ctx context.Context, doctorID uuid.UUID) error {
	ratings, err := s.repo.RatedCompletedRatings(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	if len(ratings) == 0 {
		return nil
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	average := math.Round(float64(sum)/float64(len(ratings))*10) / 10

	if err := s.doctors.SetRating(ctx, doctorID, average, len(ratings)); err != nil {
		return fmt.Errorf("store rating: %w", err)
	}
	return nil
}

// Dashboard summarizes a doctor's day and history.
type Dashboard struct {
	Stats    DashboardStats
	Today    []Detail
	Upcoming []Detail
}

func (s *Service) DoctorDashboard(ctx context.Context, doctorID uuid.UUID) (*Dashboard, error) {
	doc, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, doctor.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	stats, err := s.repo.DoctorStats(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor stats: %w", err)
	}
	stats.AverageRating = doc.AverageRating

	dayStart := dayOf(s.now())
	dayEnd := dayStart.AddDate(0, 0, 1)

	today, err := s.repo.ListByDoctor(ctx, doctorID, ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("list today's appointments: %w", err)
	}
	todays := today[:0]
	for _, d := range today {
		if !d.SlotStart.Before(dayStart) && d.SlotStart.Before(dayEnd) {
			todays = append(todays, d)
		}
	}

	upcoming, err := s.repo.ListUpcoming(ctx, doctorID, dayEnd, 5)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}

	return &Dashboard{
		Stats:    *stats,
		Today:    todays,
		Upcoming: upcoming,
	}, nil
}

func (s *Service) Reviews(ctx context.Context, doctorID uuid.UUID, limit int) ([]Review, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	reviews, err := s.repo.ListReviews(ctx, doctorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (s *Service) loadOwned(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !isParticipant(actor, appt) {
		return nil, ErrNotParticipant
	}
	return appt, nil
}

func isParticipant(actor Actor, appt *Appointment) bool {
	switch actor.Role {
	case RoleDoctor:
		return appt.DoctorID == actor.ID
	case RolePatient:
		return appt.PatientID == actor.ID
	}
	return false
}

// dayOf truncates t to its UTC calendar day. The day must be a pure function
// of the instant: the slot uniqueness key includes it, so the same instant
// expressed with different UTC offsets has to land on the same day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Str("appointment_id", appointmentID.String()).Msg("insert event log")
	}
}
