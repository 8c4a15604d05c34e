package models

import "time"

// BookingStatus enumerates the lifecycle states of a tour booking.
type BookingStatus string

const (
	StatusPending             BookingStatus = "pending"
	StatusConfirmed           BookingStatus = "confirmed"
	StatusRescheduleRequested BookingStatus = "reschedule_requested"
	StatusCancelled           BookingStatus = "cancelled"
	StatusCompleted           BookingStatus = "completed"
	StatusNoShow              BookingStatus = "no_show"
)

// Terminal reports whether no further transition is permitted from s.
func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Blocking reports whether a booking in status s holds its interval against
// availability and overlap checks. A reschedule_requested booking keeps its
// original interval as a soft hold until resolved.
func (s BookingStatus) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusRescheduleRequested
}

// Role identifies the kind of actor invoking an operation. Authentication is
// handled upstream; the core only performs role-based authorization.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Actor is the already-authenticated identity attached to every call.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Participant is an additional attendee on a tour.
type Participant struct {
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email,omitempty" json:"email,omitempty"`
	Phone        string `bson:"phone,omitempty" json:"phone,omitempty"`
	Relationship string `bson:"relationship,omitempty" json:"relationship,omitempty"`
}

// Note is one append-only notes entry. Actions append notes (request notes,
// cancellation reasons, completion notes); nothing ever rewrites them.
type Note struct {
	AuthorRole Role      `bson:"author_role" json:"authorRole"`
	Text       string    `bson:"text" json:"text"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// TourBooking is the persisted record of a requested/confirmed/resolved
// property viewing. Status only ever changes through the state machine;
// bookings are never deleted, terminal statuses preserve the audit trail.
type TourBooking struct {
	ID          string        `bson:"id" json:"id"`
	PropertyID  string        `bson:"property_id" json:"propertyId"`
	AgentID     string        `bson:"agent_id" json:"agentId"`
	RequesterID string        `bson:"requester_id" json:"requesterId"`
	Start       time.Time     `bson:"start" json:"start"`
	End         time.Time     `bson:"end" json:"end"`
	Status      BookingStatus `bson:"status" json:"status"`
	IsVirtual   bool          `bson:"is_virtual" json:"isVirtual"`
	MeetingLink string        `bson:"meeting_link,omitempty" json:"meetingLink,omitempty"`
	// ProposedStart is the time asked for in an open reschedule request. The
	// booking keeps holding [Start, End) until the request is resolved.
	ProposedStart *time.Time    `bson:"proposed_start,omitempty" json:"proposedStart,omitempty"`
	Notes         []Note        `bson:"notes,omitempty" json:"notes,omitempty"`
	Participants  []Participant `bson:"participants,omitempty" json:"participants,omitempty"`
	Version       int           `bson:"version" json:"version"`
	CreatedAt     time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Overlaps reports whether the booking's [start, end) interval intersects
// the given one.
func (b *TourBooking) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}

// Clone returns a deep copy, so snapshots handed to subscribers or the slot
// engine can never alias store-owned state.
func (b *TourBooking) Clone() *TourBooking {
	cp := *b
	if b.ProposedStart != nil {
		t := *b.ProposedStart
		cp.ProposedStart = &t
	}
	if b.Notes != nil {
		cp.Notes = make([]Note, len(b.Notes))
		copy(cp.Notes, b.Notes)
	}
	if b.Participants != nil {
		cp.Participants = make([]Participant, len(b.Participants))
		copy(cp.Participants, b.Participants)
	}
	return &cp
}
