package models

import "time"

// AvailabilitySlot is a candidate [start, end) window a tour could occupy.
// Derived on demand, never persisted.
type AvailabilitySlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WorkingHours bounds an agent's bookable day, in minutes from midnight.
type WorkingHours struct {
	StartMinutes int `bson:"start_minutes" json:"startMinutes"`
	EndMinutes   int `bson:"end_minutes" json:"endMinutes"`
}

// AgentProfile is the directory record for an agent, as supplied by the
// property/agent directory collaborator.
type AgentProfile struct {
	ID           string       `bson:"id" json:"id"`
	Name         string       `bson:"name,omitempty" json:"name,omitempty"`
	WorkingHours WorkingHours `bson:"working_hours" json:"workingHours"`
}
