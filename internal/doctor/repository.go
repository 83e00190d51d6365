package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("doctor not found")
	ErrEmailTaken = errors.New("doctor email already registered")
)

// SearchFilters narrows and orders the public doctor directory. Zero values
// mean "no constraint".
type SearchFilters struct {
	Query          string // free text over name, specialization, hospital name
	Specialization string
	City           string
	Category       string
	MinFee         int
	MaxFee         int
	SortBy         string // fees | experience | name | created_at
	SortOrder      string // asc | desc
	Page           int
	Limit          int
}

// ProfileUpdate carries the fields a doctor may change during onboarding.
// Nil pointers leave the stored value untouched.
type ProfileUpdate struct {
	Name            *string
	Specialization  *string
	Categories      []string
	Qualification   *string
	ExperienceYrs   *int
	About           *string
	ConsultationFee *int
	Hospital        *Hospital
	Availability    *ProfileAvailability
}

// ProfileAvailability mirrors availability.Config at the update boundary.
type ProfileAvailability struct {
	StartDate           string   `json:"startDate"` // YYYY-MM-DD
	EndDate             string   `json:"endDate"`
	ExcludedWeekdays    []int    `json:"excludedWeekdays"`
	DailyWindows        []Window `json:"dailyWindows"`
	SlotDurationMinutes int      `json:"slotDurationMinutes"`
}

type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByEmail(ctx context.Context, email string) (*Doctor, error)
	Search(ctx context.Context, f SearchFilters) ([]Doctor, int, error)
	Update(ctx context.Context, d *Doctor) error
	SetRating(ctx context.Context, id uuid.UUID, average float64, total int) error
	ListVerified(ctx context.Context) ([]Doctor, error)
}
