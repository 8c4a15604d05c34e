package bookingRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"tourly/models"
)

// MemoryBookingRepo is an in-process BookingRepository. It backs tests and
// single-node deployments without MongoDB, and is the reference for the
// store's concurrency discipline: all writes touching one agent's calendar
// serialize on that agent's lock, writes for different agents proceed
// independently, reads take a consistent snapshot.
type MemoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[string]*models.TourBooking

	lockMu     sync.Mutex
	agentLocks map[string]*sync.Mutex
}

func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{
		bookings:   make(map[string]*models.TourBooking),
		agentLocks: make(map[string]*sync.Mutex),
	}
}

func (r *MemoryBookingRepo) agentLock(agentID string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	l, ok := r.agentLocks[agentID]
	if !ok {
		l = &sync.Mutex{}
		r.agentLocks[agentID] = l
	}
	return l
}

// hasConflict must be called with at least a read lock held.
func (r *MemoryBookingRepo) hasConflict(agentID, propertyID string, start, end time.Time, excludeID string) bool {
	for _, b := range r.bookings {
		if b.ID == excludeID || b.AgentID != agentID || b.PropertyID != propertyID {
			continue
		}
		if b.Status.Blocking() && b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (r *MemoryBookingRepo) Create(ctx context.Context, draft *models.TourBooking) (*models.TourBooking, error) {
	lock := r.agentLock(draft.AgentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasConflict(draft.AgentID, draft.PropertyID, draft.Start, draft.End, "") {
		return nil, models.ErrSlotConflict("the %s slot was just taken for this property", draft.Start.Format(time.RFC3339))
	}

	now := time.Now()
	b := draft.Clone()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now
	r.bookings[b.ID] = b
	return b.Clone(), nil
}

func (r *MemoryBookingRepo) ApplyTransition(ctx context.Context, bookingID string, m Mutation) (*models.TourBooking, error) {
	r.mu.RLock()
	existing, ok := r.bookings[bookingID]
	r.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound("booking %s not found", bookingID)
	}

	// Serialize on the agent's calendar: this covers both per-booking
	// linearization and overlap checks for interval moves.
	lock := r.agentLock(existing.AgentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, models.ErrNotFound("booking %s not found", bookingID)
	}
	if b.Version != m.ExpectedVersion {
		return nil, models.ErrStale("booking %s was modified concurrently, please re-read and retry", bookingID)
	}

	newStart, newEnd := b.Start, b.End
	if m.Start != nil {
		newStart = *m.Start
	}
	if m.End != nil {
		newEnd = *m.End
	}
	if m.changesInterval() && r.hasConflict(b.AgentID, b.PropertyID, newStart, newEnd, b.ID) {
		return nil, models.ErrSlotConflict("the %s slot was just taken for this property", newStart.Format(time.RFC3339))
	}

	next := b.Clone()
	next.Start, next.End = newStart, newEnd
	if m.Status != nil {
		next.Status = *m.Status
	}
	if m.MeetingLink != nil {
		next.MeetingLink = *m.MeetingLink
	}
	if m.ProposedStart != nil {
		t := *m.ProposedStart
		next.ProposedStart = &t
	}
	if m.ClearProposedStart {
		next.ProposedStart = nil
	}
	next.Notes = append(next.Notes, m.AppendNotes...)
	if m.AddParticipant != nil {
		next.Participants = append(next.Participants, *m.AddParticipant)
	}
	if m.RemoveParticipant != "" {
		kept := next.Participants[:0]
		for _, p := range next.Participants {
			if p.Name != m.RemoveParticipant {
				kept = append(kept, p)
			}
		}
		next.Participants = kept
	}
	next.Version = b.Version + 1
	next.UpdatedAt = time.Now()

	r.bookings[bookingID] = next
	return next.Clone(), nil
}

func (r *MemoryBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.TourBooking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, models.ErrNotFound("booking %s not found", bookingID)
	}
	return b.Clone(), nil
}

func (r *MemoryBookingRepo) ListForScope(ctx context.Context, q ScopeQuery) ([]models.TourBooking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.TourBooking
	for _, b := range r.bookings {
		if matchesScope(b, q) {
			out = append(out, *b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
