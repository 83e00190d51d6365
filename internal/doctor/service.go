package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/telehealth-api/internal/availability"
)

var ErrInvalidProfile = errors.New("invalid profile update")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	return d, nil
}

func (s *Service) Search(ctx context.Context, f SearchFilters) ([]Doctor, int, error) {
	doctors, total, err := s.repo.Search(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("search doctors: %w", err)
	}
	return doctors, total, nil
}

// UpdateProfile applies an onboarding update to the doctor's own profile.
// A successful update marks the profile verified, which is what makes the
// doctor visible in the public directory. Availability changes are validated
// before anything is written.
func (s *Service) UpdateProfile(ctx context.Context, doctorID uuid.UUID, upd ProfileUpdate) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidProfile)
		}
		d.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Specialization != nil {
		if !ValidSpecialization(*upd.Specialization) {
			return nil, fmt.Errorf("%w: unknown specialization %q", ErrInvalidProfile, *upd.Specialization)
		}
		d.Specialization = *upd.Specialization
	}
	if upd.Categories != nil {
		d.Categories = upd.Categories
	}
	if upd.Qualification != nil {
		d.Qualification = *upd.Qualification
	}
	if upd.ExperienceYrs != nil {
		if *upd.ExperienceYrs < 0 {
			return nil, fmt.Errorf("%w: experience must not be negative", ErrInvalidProfile)
		}
		d.ExperienceYrs = *upd.ExperienceYrs
	}
	if upd.About != nil {
		d.About = *upd.About
	}
	if upd.ConsultationFee != nil {
		if *upd.ConsultationFee < 0 {
			return nil, fmt.Errorf("%w: consultation fee must not be negative", ErrInvalidProfile)
		}
		d.ConsultationFee = *upd.ConsultationFee
	}
	if upd.Hospital != nil {
		d.Hospital = *upd.Hospital
	}
	if upd.Availability != nil {
		cfg, err := parseAvailability(*upd.Availability)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		if err := availability.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		d.Availability = cfg
	}

	d.IsVerified = true

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update doctor: %w", err)
	}
	return d, nil
}

func parseAvailability(pa ProfileAvailability) (availability.Config, error) {
	start, err := time.Parse("2006-01-02", pa.StartDate)
	if err != nil {
		return availability.Config{}, fmt.Errorf("start date: must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", pa.EndDate)
	if err != nil {
		return availability.Config{}, fmt.Errorf("end date: must be YYYY-MM-DD")
	}

	windows := make([]availability.Window, 0, len(pa.DailyWindows))
	for _, w := range pa.DailyWindows {
		windows = append(windows, availability.Window{Start: w.Start, End: w.End})
	}

	return availability.Config{
		StartDate:           start,
		EndDate:             end,
		ExcludedWeekdays:    pa.ExcludedWeekdays,
		DailyWindows:        windows,
		SlotDurationMinutes: pa.SlotDurationMinutes,
	}, nil
}
