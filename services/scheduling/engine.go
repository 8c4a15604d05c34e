package scheduling

import (
	"time"

	"tourly/models"
)

// AllowedDurations are the tour lengths, in minutes, a requester may ask for.
// Confirm and reschedule actions may override the interval explicitly.
var AllowedDurations = []int{30, 60, 90, 120}

// DurationAllowed reports whether minutes is a supported tour duration.
func DurationAllowed(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// SlotEngine computes bookable windows for an agent over a date range. Pure
// and side-effect-free: given the same booking snapshot and inputs, the
// output is identical.
type SlotEngine struct {
	Granularity time.Duration // candidate start-time step
	Horizon     time.Duration // maximum lookahead from now
}

// NewSlotEngine builds an engine from the configured granularity (minutes)
// and booking horizon (days).
func NewSlotEngine(granularityMinutes, horizonDays int) *SlotEngine {
	return &SlotEngine{
		Granularity: time.Duration(granularityMinutes) * time.Minute,
		Horizon:     time.Duration(horizonDays) * 24 * time.Hour,
	}
}

func gcd(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ComputeAvailableSlots partitions each calendar day in [rangeStart, rangeEnd)
// into candidate start times bounded by the agent's working hours, and keeps
// every [start, start+duration) window that does not overlap a blocking
// booking and does not start in the past. Results are ascending by start.
// Zero slots is a valid, non-error result.
//
// The booking snapshot must contain the agent's bookings for the range; the
// engine ignores non-blocking statuses itself. Overlap is checked agent-wide,
// an agent cannot be in two places even across different properties.
func (e *SlotEngine) ComputeAvailableSlots(
	now time.Time,
	hours models.WorkingHours,
	rangeStart, rangeEnd time.Time,
	durationMinutes int,
	bookings []models.TourBooking,
) ([]models.AvailabilitySlot, error) {
	if !rangeStart.Before(rangeEnd) {
		return nil, models.ErrValidation("range start %s must be before range end %s",
			rangeStart.Format(time.RFC3339), rangeEnd.Format(time.RFC3339))
	}
	if !DurationAllowed(durationMinutes) {
		return nil, models.ErrValidation("unsupported tour duration %d minutes", durationMinutes)
	}
	if hours.EndMinutes <= hours.StartMinutes {
		return nil, models.ErrValidation("working hours are empty")
	}

	duration := time.Duration(durationMinutes) * time.Minute

	// Bound the computation: never look further than the horizon.
	cutoff := now.Add(e.Horizon)
	if rangeEnd.After(cutoff) {
		rangeEnd = cutoff
	}
	if !rangeStart.Before(rangeEnd) {
		return nil, nil
	}

	// When the duration does not evenly divide the granularity, shrink the
	// step so candidate windows still tile without overlapping each other.
	step := e.Granularity
	if duration%step != 0 {
		step = gcd(duration, step)
	}

	var blocking []models.TourBooking
	for _, b := range bookings {
		if b.Status.Blocking() {
			blocking = append(blocking, b)
		}
	}

	var slots []models.AvailabilitySlot
	loc := rangeStart.Location()
	day := time.Date(rangeStart.Year(), rangeStart.Month(), rangeStart.Day(), 0, 0, 0, 0, loc)
	for ; day.Before(rangeEnd); day = day.AddDate(0, 0, 1) {
		first := day.Add(time.Duration(hours.StartMinutes) * time.Minute)
		lastStart := day.Add(time.Duration(hours.EndMinutes) * time.Minute).Add(-duration)

		for start := first; !start.After(lastStart); start = start.Add(step) {
			end := start.Add(duration)
			if start.Before(now) || start.Before(rangeStart) || end.After(rangeEnd) {
				continue
			}
			if overlapsAny(blocking, start, end) {
				continue
			}
			slots = append(slots, models.AvailabilitySlot{Start: start, End: end})
		}
	}
	return slots, nil
}

func overlapsAny(bookings []models.TourBooking, start, end time.Time) bool {
	for i := range bookings {
		if bookings[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}
