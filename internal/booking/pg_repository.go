package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const apptColumns = `
	id, doctor_id, patient_id, date, slot_start, slot_end,
	consultation_type, status, symptoms, room_id, prescription, notes,
	consultation_fee, platform_fee, total_amount, payment_status,
	rating, feedback, feedback_at, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.SlotStart,
		&a.SlotEnd,
		&a.ConsultationType,
		&a.Status,
		&a.Symptoms,
		&a.RoomID,
		&a.Prescription,
		&a.Notes,
		&a.ConsultationFee,
		&a.PlatformFee,
		&a.TotalAmount,
		&a.PaymentStatus,
		&a.Rating,
		&a.Feedback,
		&a.FeedbackAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail

	err := row.Scan(
		&d.ID,
		&d.DoctorID,
		&d.PatientID,
		&d.Date,
		&d.SlotStart,
		&d.SlotEnd,
		&d.ConsultationType,
		&d.Status,
		&d.Symptoms,
		&d.RoomID,
		&d.Prescription,
		&d.Notes,
		&d.ConsultationFee,
		&d.PlatformFee,
		&d.TotalAmount,
		&d.PaymentStatus,
		&d.Rating,
		&d.Feedback,
		&d.FeedbackAt,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.DoctorName,
		&d.Specialization,
		&d.PatientName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &d, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

const detailQuery = `
	SELECT a.id, a.doctor_id, a.patient_id, a.date, a.slot_start, a.slot_end,
	       a.consultation_type, a.status, a.symptoms, a.room_id, a.prescription, a.notes,
	       a.consultation_fee, a.platform_fee, a.total_amount, a.payment_status,
	       a.rating, a.feedback, a.feedback_at, a.created_at, a.updated_at,
	       d.name, d.specialization, p.name
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN patients p ON p.id = a.patient_id`

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.pool.QueryRow(ctx, detailQuery+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) HasActiveOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE doctor_id = $1
			  AND status = ANY($2)
			  AND slot_start < $4
			  AND slot_end > $3
		)
	`, doctorID, statusStrings(ActiveStatuses), start, end).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) Create(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_id, date, slot_start, slot_end,
			consultation_type, status, symptoms, room_id, prescription, notes,
			consultation_fee, platform_fee, total_amount, payment_status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '', '',
		        $11, $12, $13, $14, now(), now())
		RETURNING `+apptColumns+`
	`, appt.ID, appt.DoctorID, appt.PatientID, appt.Date, appt.SlotStart, appt.SlotEnd,
		appt.ConsultationType, appt.Status, appt.Symptoms, appt.RoomID,
		appt.ConsultationFee, appt.PlatformFee, appt.TotalAmount, appt.PaymentStatus)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A racing booking won between the overlap pre-check and this
			// insert; the partial unique index is the authoritative guard.
			return ErrSlotTaken
		}
		return err
	}

	*appt = *created
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+apptColumns+`
	`, id, to, statusStrings(from))

	return scanAppointment(row)
}

func (r *PgRepository) Complete(ctx context.Context, id uuid.UUID, prescription, notes string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    prescription = $3,
		    notes = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($5)
		RETURNING `+apptColumns+`
	`, id, StatusCompleted, prescription, notes, statusStrings(ActiveStatuses))

	return scanAppointment(row)
}

func (r *PgRepository) AttachFeedback(ctx context.Context, id uuid.UUID, rating int, feedback string, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET rating = $2,
		    feedback = $3,
		    feedback_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $5
		  AND rating IS NULL
		RETURNING `+apptColumns+`
	`, id, rating, feedback, at, StatusCompleted)

	return scanAppointment(row)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, statuses []Status) ([]Detail, error) {
	return r.listDetails(ctx, "a.doctor_id", doctorID, statuses)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, statuses []Status) ([]Detail, error) {
	return r.listDetails(ctx, "a.patient_id", patientID, statuses)
}

func (r *PgRepository) listDetails(ctx context.Context, ownerCol string, ownerID uuid.UUID, statuses []Status) ([]Detail, error) {
	query := detailQuery + ` WHERE ` + ownerCol + ` = $1`
	args := []any{ownerID}
	if len(statuses) > 0 {
		query += ` AND a.status = ANY($2)`
		args = append(args, statusStrings(statuses))
	}
	query += ` ORDER BY a.slot_start ASC, a.slot_end ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListActiveBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status = ANY($2)
		  AND slot_start < $4
		  AND slot_end > $3
		ORDER BY slot_start ASC
	`, doctorID, statusStrings(ActiveStatuses), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListUpcoming(ctx context.Context, doctorID uuid.UUID, after time.Time, limit int) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+`
		WHERE a.doctor_id = $1
		  AND a.status = ANY($2)
		  AND a.slot_start > $3
		ORDER BY a.slot_start ASC
		LIMIT $4
	`, doctorID, statusStrings(ActiveStatuses), after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) RatedCompletedRatings(ctx context.Context, doctorID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rating
		FROM appointments
		WHERE doctor_id = $1
		  AND status = $2
		  AND rating IS NOT NULL
	`, doctorID, StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ratings, nil
}

func (r *PgRepository) ListReviews(ctx context.Context, doctorID uuid.UUID, limit int) ([]Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.rating, a.feedback, p.name, a.feedback_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
		  AND a.status = $2
		  AND a.rating IS NOT NULL
		ORDER BY a.feedback_at DESC
		LIMIT $3
	`, doctorID, StatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.Rating, &rv.Feedback, &rv.PatientName, &rv.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reviews, nil
}

func (r *PgRepository) DoctorStats(ctx context.Context, doctorID uuid.UUID) (*DashboardStats, error) {
	var stats DashboardStats
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT patient_id),
		       count(*) FILTER (WHERE status = $2),
		       COALESCE(sum(consultation_fee) FILTER (WHERE status = $2), 0)
		FROM appointments
		WHERE doctor_id = $1
	`, doctorID, StatusCompleted).Scan(&stats.TotalPatients, &stats.CompletedCount, &stats.TotalRevenue)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var apptID *uuid.UUID
	if ev.AppointmentID != nil {
		apptID = ev.AppointmentID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, apptID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
