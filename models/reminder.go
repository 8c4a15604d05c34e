package models

import "time"

// TourReminderPayload is the task payload for scheduled tour reminders.
type TourReminderPayload struct {
	BookingID   string    `json:"bookingId"`
	AgentID     string    `json:"agentId"`
	RequesterID string    `json:"requesterId"`
	PropertyID  string    `json:"propertyId"`
	Start       time.Time `json:"start"`
	IsVirtual   bool      `json:"isVirtual"`
	MeetingLink string    `json:"meetingLink,omitempty"`
}
