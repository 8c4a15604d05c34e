package bookingRepo

import (
	"context"
	"time"

	"tourly/models"
)

// ScopeQuery narrows ListForScope reads. Zero-valued fields are unbounded.
// From/To select bookings whose [start, end) interval overlaps [From, To).
type ScopeQuery struct {
	AgentID     string
	PropertyID  string
	RequesterID string
	From        time.Time
	To          time.Time
	Statuses    []models.BookingStatus
}

// Mutation is the full set of changes one committed transition may apply to a
// booking. The store applies it atomically, compare-and-swap on
// ExpectedVersion: a concurrent write since the caller's read fails with a
// stale error instead of silently overwriting.
type Mutation struct {
	ExpectedVersion int

	Status      *models.BookingStatus
	Start       *time.Time
	End         *time.Time
	MeetingLink *string
	// ProposedStart records the time asked for in a reschedule request
	// without moving the held interval. ClearProposedStart drops an open
	// proposal when the request is resolved.
	ProposedStart      *time.Time
	ClearProposedStart bool
	AppendNotes        []models.Note
	AddParticipant     *models.Participant
	RemoveParticipant  string // participant name; "" means no removal
}

// changesInterval reports whether the mutation moves the booking in time,
// which forces the overlap invariant to be re-checked before commit.
func (m Mutation) changesInterval() bool {
	return m.Start != nil || m.End != nil
}

// BookingRepository is the authoritative store of tour bookings. It is the
// only component allowed to mutate booking state, and it enforces the
// slot-exclusivity invariant at commit time: for one (agent, property) pair
// no two bookings in a blocking status may overlap.
type BookingRepository interface {
	// Create atomically checks the overlap invariant and inserts the draft,
	// or fails with a slot-conflict error without partial writes.
	Create(ctx context.Context, draft *models.TourBooking) (*models.TourBooking, error)

	// ApplyTransition commits a state-machine decision against the booking.
	// Fails with not-found, slot-conflict (interval moved onto a taken slot),
	// or stale (version mismatch) errors.
	ApplyTransition(ctx context.Context, bookingID string, m Mutation) (*models.TourBooking, error)

	// GetByID fetches one booking.
	GetByID(ctx context.Context, bookingID string) (*models.TourBooking, error)

	// ListForScope is the read path for calendars and reconnect re-fetches.
	// Results are ordered ascending by start time.
	ListForScope(ctx context.Context, q ScopeQuery) ([]models.TourBooking, error)
}

func matchesScope(b *models.TourBooking, q ScopeQuery) bool {
	if q.AgentID != "" && b.AgentID != q.AgentID {
		return false
	}
	if q.PropertyID != "" && b.PropertyID != q.PropertyID {
		return false
	}
	if q.RequesterID != "" && b.RequesterID != q.RequesterID {
		return false
	}
	if !q.From.IsZero() && !b.End.After(q.From) {
		return false
	}
	if !q.To.IsZero() && !b.Start.Before(q.To) {
		return false
	}
	if len(q.Statuses) > 0 {
		ok := false
		for _, s := range q.Statuses {
			if b.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
