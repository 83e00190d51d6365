package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telehealth-api/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const doctorColumns = `
	id, name, email, password_hash, specialization, categories, qualification,
	experience_years, about, consultation_fee,
	hospital_name, hospital_address, hospital_city,
	avail_start_date, avail_end_date, excluded_weekdays, daily_windows, slot_duration_minutes,
	is_verified, is_active, average_rating, total_ratings, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var windowsJSON []byte
	var weekdays []int32

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.PasswordHash,
		&d.Specialization,
		&d.Categories,
		&d.Qualification,
		&d.ExperienceYrs,
		&d.About,
		&d.ConsultationFee,
		&d.Hospital.Name,
		&d.Hospital.Address,
		&d.Hospital.City,
		&d.Availability.StartDate,
		&d.Availability.EndDate,
		&weekdays,
		&windowsJSON,
		&d.Availability.SlotDurationMinutes,
		&d.IsVerified,
		&d.IsActive,
		&d.AverageRating,
		&d.TotalRatings,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	for _, wd := range weekdays {
		d.Availability.ExcludedWeekdays = append(d.Availability.ExcludedWeekdays, int(wd))
	}
	if len(windowsJSON) > 0 {
		if err := json.Unmarshal(windowsJSON, &d.Availability.DailyWindows); err != nil {
			return nil, fmt.Errorf("decode daily windows: %w", err)
		}
	}

	return &d, nil
}

func encodeWindows(windows []availability.Window) ([]byte, error) {
	if windows == nil {
		windows = []availability.Window{}
	}
	return json.Marshal(windows)
}

func toInt32s(ints []int) []int32 {
	out := make([]int32, 0, len(ints))
	for _, v := range ints {
		out = append(out, int32(v))
	}
	return out
}

func (r *PgRepository) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	windowsJSON, err := encodeWindows(d.Availability.DailyWindows)
	if err != nil {
		return fmt.Errorf("encode daily windows: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (
			id, name, email, password_hash, specialization, categories, qualification,
			experience_years, about, consultation_fee,
			hospital_name, hospital_address, hospital_city,
			avail_start_date, avail_end_date, excluded_weekdays, daily_windows, slot_duration_minutes,
			is_verified, is_active, average_rating, total_ratings, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, 0, 0, now(), now())
		RETURNING `+doctorColumns+`
	`, d.ID, d.Name, d.Email, d.PasswordHash, d.Specialization, d.Categories, d.Qualification,
		d.ExperienceYrs, d.About, d.ConsultationFee,
		d.Hospital.Name, d.Hospital.Address, d.Hospital.City,
		d.Availability.StartDate, d.Availability.EndDate, toInt32s(d.Availability.ExcludedWeekdays),
		windowsJSON, d.Availability.SlotDurationMinutes,
		d.IsVerified, d.IsActive)

	created, err := scanDoctor(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}

	*d = *created
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE email = $1`, email)
	return scanDoctor(row)
}

var sortColumns = map[string]string{
	"fees":       "consultation_fee",
	"experience": "experience_years",
	"name":       "name",
	"created_at": "created_at",
}

func (r *PgRepository) Search(ctx context.Context, f SearchFilters) ([]Doctor, int, error) {
	where := []string{"is_verified = true", "is_active = true"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Specialization != "" {
		where = append(where, "lower(specialization) = lower("+arg(f.Specialization)+")")
	}
	if f.City != "" {
		where = append(where, "hospital_city ILIKE "+arg("%"+f.City+"%"))
	}
	if f.Category != "" {
		where = append(where, arg(f.Category)+" = ANY(categories)")
	}
	if f.MinFee > 0 {
		where = append(where, "consultation_fee >= "+arg(f.MinFee))
	}
	if f.MaxFee > 0 {
		where = append(where, "consultation_fee <= "+arg(f.MaxFee))
	}
	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		where = append(where, "(name ILIKE "+p+" OR specialization ILIKE "+p+" OR hospital_name ILIKE "+p+")")
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM doctors WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := sortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		"SELECT %s FROM doctors WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s",
		doctorColumns, whereSQL, sortCol, dir, arg(limit), arg(offset),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *PgRepository) Update(ctx context.Context, d *Doctor) error {
	windowsJSON, err := encodeWindows(d.Availability.DailyWindows)
	if err != nil {
		return fmt.Errorf("encode daily windows: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET name = $2,
		    specialization = $3,
		    categories = $4,
		    qualification = $5,
		    experience_years = $6,
		    about = $7,
		    consultation_fee = $8,
		    hospital_name = $9,
		    hospital_address = $10,
		    hospital_city = $11,
		    avail_start_date = $12,
		    avail_end_date = $13,
		    excluded_weekdays = $14,
		    daily_windows = $15,
		    slot_duration_minutes = $16,
		    is_verified = $17,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+doctorColumns+`
	`, d.ID, d.Name, d.Specialization, d.Categories, d.Qualification,
		d.ExperienceYrs, d.About, d.ConsultationFee,
		d.Hospital.Name, d.Hospital.Address, d.Hospital.City,
		d.Availability.StartDate, d.Availability.EndDate, toInt32s(d.Availability.ExcludedWeekdays),
		windowsJSON, d.Availability.SlotDurationMinutes, d.IsVerified)

	updated, err := scanDoctor(row)
	if err != nil {
		return err
	}

	*d = *updated
	return nil
}

func (r *PgRepository) SetRating(ctx context.Context, id uuid.UUID, average float64, total int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors
		SET average_rating = $2,
		    total_ratings = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, average, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) ListVerified(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE is_verified = true AND is_active = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
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
