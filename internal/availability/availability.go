package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrInvalidDateRange    = errors.New("availability start date must not be after end date")
	ErrInvalidWeekday      = errors.New("excluded weekdays must be in range 0-6")
	ErrInvalidWindow       = errors.New("daily window start must be before end")
	ErrInvalidSlotDuration = errors.New("slot duration must be between 5 and 180 minutes")
	ErrNoWindows           = errors.New("at least one daily window is required")
)

// Window is a wall-clock time-of-day range within a working day,
// e.g. {"09:00", "12:00"}. Windows may overlap and need not be contiguous.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Config is a doctor's recurring availability: a calendar date range,
// weekdays excluded from it, the daily working windows and the fixed
// slot length the windows are divided into.
type Config struct {
	StartDate           time.Time `json:"startDate"`
	EndDate             time.Time `json:"endDate"`
	ExcludedWeekdays    []int     `json:"excludedWeekdays"`
	DailyWindows        []Window  `json:"dailyWindows"`
	SlotDurationMinutes int       `json:"slotDurationMinutes"`
}

// Slot is one concrete bookable interval, half-open [Start, End).
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects malformed configs before they are stored. Windows with
// start >= end are a configuration error, not something to silently drop.
func Validate(cfg Config) error {
	if cfg.StartDate.After(cfg.EndDate) {
		return ErrInvalidDateRange
	}
	for _, wd := range cfg.ExcludedWeekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: got %d", ErrInvalidWeekday, wd)
		}
	}
	if cfg.SlotDurationMinutes < 5 || cfg.SlotDurationMinutes > 180 {
		return fmt.Errorf("%w: got %d", ErrInvalidSlotDuration, cfg.SlotDurationMinutes)
	}
	if len(cfg.DailyWindows) == 0 {
		return ErrNoWindows
	}
	for _, w := range cfg.DailyWindows {
		start, err := parseClock(w.Start)
		if err != nil {
			return fmt.Errorf("window start %q: %w", w.Start, err)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return fmt.Errorf("window end %q: %w", w.End, err)
		}
		if start >= end {
			return fmt.Errorf("%w: %s-%s", ErrInvalidWindow, w.Start, w.End)
		}
	}
	return nil
}

// ComputeSlots expands cfg into the concrete bookable slots for day.
// day is interpreted as a calendar date; its time-of-day portion is ignored.
// A date outside the configured range or on an excluded weekday yields an
// empty result, never an error. Only whole slots count: a window remainder
// shorter than the slot duration is dropped. Identical slots produced by
// overlapping windows are deduplicated. The result is ordered ascending by
// start time, keeping window declaration order on ties, and is deterministic
// for identical inputs.
func ComputeSlots(cfg Config, day time.Time) []Slot {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	if !withinRange(cfg, midnight) {
		return nil
	}
	for _, wd := range cfg.ExcludedWeekdays {
		if int(midnight.Weekday()) == wd {
			return nil
		}
	}
	if cfg.SlotDurationMinutes <= 0 {
		return nil
	}

	var slots []Slot
	seen := make(map[int]struct{})
	for _, w := range cfg.DailyWindows {
		start, err := parseClock(w.Start)
		if err != nil {
			continue
		}
		end, err := parseClock(w.End)
		if err != nil || start >= end {
			// Stored configs are validated, but skip bad windows defensively.
			continue
		}
		for offset := start; offset+cfg.SlotDurationMinutes <= end; offset += cfg.SlotDurationMinutes {
			if _, dup := seen[offset]; dup {
				continue
			}
			seen[offset] = struct{}{}
			slots = append(slots, Slot{
				Start: midnight.Add(time.Duration(offset) * time.Minute),
				End:   midnight.Add(time.Duration(offset+cfg.SlotDurationMinutes) * time.Minute),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

func withinRange(cfg Config, midnight time.Time) bool {
	start := time.Date(cfg.StartDate.Year(), cfg.StartDate.Month(), cfg.StartDate.Day(), 0, 0, 0, 0, midnight.Location())
	end := time.Date(cfg.EndDate.Year(), cfg.EndDate.Month(), cfg.EndDate.Day(), 0, 0, 0, 0, midnight.Location())
	return !midnight.Before(start) && !midnight.After(end)
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.New("must be in HH:MM 24h format")
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. An interval ending exactly when the other starts does not
// overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
