package models

import "time"

// BookingEvent describes one committed booking state change. Events for the
// same booking are published in commit order.
type BookingEvent struct {
	ID          string        `json:"id"`
	BookingID   string        `json:"bookingId"`
	AgentID     string        `json:"agentId"`
	PropertyID  string        `json:"propertyId"`
	RequesterID string        `json:"requesterId"`
	Status      BookingStatus `json:"status"`
	Booking     *TourBooking  `json:"booking"`
	CommittedAt time.Time     `json:"committedAt"`
}

// ScopeFilter is a subscription predicate selecting booking events by agent,
// property, or user identity. Every set field must match; at least one field
// must be set for the filter to be usable.
type ScopeFilter struct {
	AgentID    string `json:"agentId,omitempty" form:"agentId"`
	PropertyID string `json:"propertyId,omitempty" form:"propertyId"`
	UserID     string `json:"userId,omitempty" form:"userId"`
}

// Empty reports whether no field is set.
func (f ScopeFilter) Empty() bool {
	return f.AgentID == "" && f.PropertyID == "" && f.UserID == ""
}

// Matches reports whether the event falls inside the filter's scope.
func (f ScopeFilter) Matches(ev BookingEvent) bool {
	if f.Empty() {
		return false
	}
	if f.AgentID != "" && f.AgentID != ev.AgentID {
		return false
	}
	if f.PropertyID != "" && f.PropertyID != ev.PropertyID {
		return false
	}
	if f.UserID != "" && f.UserID != ev.RequesterID {
		return false
	}
	return true
}
