package notification

import (
	"context"
	"fmt"

	"tourly/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// PushNotifier mirrors committed booking changes to the principals' devices.
// Delivery is best-effort; the hub stream is the authoritative channel.
type PushNotifier interface {
	NotifyBookingChange(ctx context.Context, ev models.BookingEvent)
	SendReminder(ctx context.Context, p models.TourReminderPayload)
}

// FCMNotifier sends pushes over Firebase Cloud Messaging. Requester and
// agent devices subscribe to their per-identity topics when they sign in, so
// no token bookkeeping lives in the core.
type FCMNotifier struct {
	Client *messaging.Client
	Logger *zap.Logger
}

func NewFCMNotifier(client *messaging.Client, logger *zap.Logger) *FCMNotifier {
	return &FCMNotifier{Client: client, Logger: logger}
}

func userTopic(id string) string  { return "user_" + id }
func agentTopic(id string) string { return "agent_" + id }

var pushTitles = map[models.BookingStatus]string{
	models.StatusPending:             "Tour Requested",
	models.StatusConfirmed:           "Tour Confirmed",
	models.StatusRescheduleRequested: "Reschedule Requested",
	models.StatusCancelled:           "Tour Cancelled",
	models.StatusCompleted:           "Tour Completed",
	models.StatusNoShow:              "Tour Marked No-Show",
}

func (n *FCMNotifier) NotifyBookingChange(ctx context.Context, ev models.BookingEvent) {
	if n.Client == nil {
		return
	}

	title, ok := pushTitles[ev.Status]
	if !ok {
		title = "Tour Updated"
	}
	body := fmt.Sprintf("Your tour of property %s on %s is now %s.",
		ev.PropertyID, ev.Booking.Start.Format("2 January, 3:04 PM"), ev.Status)

	data := map[string]string{
		"type":       "booking_change",
		"bookingId":  ev.BookingID,
		"propertyId": ev.PropertyID,
		"agentId":    ev.AgentID,
		"status":     string(ev.Status),
	}
	if ev.Booking.MeetingLink != "" {
		data["meetingLink"] = ev.Booking.MeetingLink
	}

	for _, topic := range []string{userTopic(ev.RequesterID), agentTopic(ev.AgentID)} {
		msg := &messaging.Message{
			Topic: topic,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		}
		if _, err := n.Client.Send(ctx, msg); err != nil {
			n.Logger.Warn("failed to send booking push",
				zap.String("topic", topic),
				zap.String("bookingID", ev.BookingID),
				zap.Error(err))
		}
	}
}

func (n *FCMNotifier) SendReminder(ctx context.Context, p models.TourReminderPayload) {
	if n.Client == nil {
		return
	}

	body := fmt.Sprintf("Your tour of property %s starts at %s.",
		p.PropertyID, p.Start.Format("3:04 PM"))
	if p.IsVirtual && p.MeetingLink != "" {
		body += " Join via your meeting link."
	}

	data := map[string]string{
		"type":      "tour_reminder",
		"bookingId": p.BookingID,
	}
	if p.MeetingLink != "" {
		data["meetingLink"] = p.MeetingLink
	}

	for _, topic := range []string{userTopic(p.RequesterID), agentTopic(p.AgentID)} {
		msg := &messaging.Message{
			Topic: topic,
			Notification: &messaging.Notification{
				Title: "Upcoming Tour",
				Body:  body,
			},
			Data: data,
		}
		if _, err := n.Client.Send(ctx, msg); err != nil {
			n.Logger.Warn("failed to send reminder push",
				zap.String("topic", topic),
				zap.String("bookingID", p.BookingID),
				zap.Error(err))
		}
	}
}
