package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	bookingRepo "tourly/database/repository/booking"
	"tourly/middleware"
	"tourly/models"
	"tourly/services/scheduling"
	"tourly/utils"
)

// BookingHandler exposes the scheduling service over HTTP.
type BookingHandler struct {
	Svc    scheduling.SchedulingService
	Logger *zap.Logger
}

func NewBookingHandler(svc scheduling.SchedulingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Svc: svc, Logger: logger}
}

// actorFrom reads the authenticated actor placed on the context by
// middleware.ActorMiddleware.
func actorFrom(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(middleware.ActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Insufficient authorization"})
		return models.Actor{}, false
	}
	return actor, true
}

// GetAvailableSlots returns bookable slots for an agent and property.
// Query params: agentId, propertyId, start, end (RFC 3339), duration (minutes).
func (h *BookingHandler) GetAvailableSlots(c *gin.Context) {
	agentID := c.Query("agentId")
	propertyID := c.Query("propertyId")

	rangeStart, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start time", "details": err.Error()})
		return
	}
	rangeEnd, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end time", "details": err.Error()})
		return
	}
	duration, err := strconv.Atoi(c.DefaultQuery("duration", "60"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration", "details": err.Error()})
		return
	}

	slots, err := h.Svc.GetAvailableSlots(c.Request.Context(), agentID, propertyID, rangeStart, rangeEnd, duration)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// RequestTour creates a new pending tour booking.
func (h *BookingHandler) RequestTour(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input struct {
		PropertyID      string               `json:"propertyId"`
		AgentID         string               `json:"agentId"`
		Start           time.Time            `json:"start"`
		DurationMinutes int                  `json:"durationMinutes"`
		IsVirtual       bool                 `json:"isVirtual"`
		Notes           string               `json:"notes"`
		Participants    []models.Participant `json:"participants"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := h.Svc.RequestTour(c.Request.Context(), scheduling.RequestTourInput{
		PropertyID:      input.PropertyID,
		AgentID:         input.AgentID,
		RequesterID:     actor.ID,
		Start:           input.Start,
		DurationMinutes: input.DurationMinutes,
		IsVirtual:       input.IsVirtual,
		Notes:           input.Notes,
		Participants:    input.Participants,
	})
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": booking})
}

// ConfirmTour moves a booking to confirmed, optionally at a new start time.
func (h *BookingHandler) ConfirmTour(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input struct {
		NewStart *time.Time `json:"newStart"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := h.Svc.ConfirmTour(c.Request.Context(), c.Param("id"), actor, input.NewStart)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// RequestReschedule flags a booking for rescheduling.
func (h *BookingHandler) RequestReschedule(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input struct {
		NewStart *time.Time `json:"newStart"`
		Reason   string     `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := h.Svc.RequestReschedule(c.Request.Context(), c.Param("id"), actor, input.NewStart, input.Reason)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// CancelTour cancels a booking. A reason is mandatory.
func (h *BookingHandler) CancelTour(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := h.Svc.CancelTour(c.Request.Context(), c.Param("id"), actor, input.Reason)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// CompleteTour marks a confirmed tour as completed.
func (h *BookingHandler) CompleteTour(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := h.Svc.CompleteTour(c.Request.Context(), c.Param("id"), actor, input.Notes)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// MarkNoShow records that the requester did not show up for a confirmed tour.
func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := h.Svc.MarkNoShow(c.Request.Context(), c.Param("id"), actor, input.Notes)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// AddParticipant attaches an extra attendee to a pending or confirmed tour.
func (h *BookingHandler) AddParticipant(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input models.Participant
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	booking, err := h.Svc.AddParticipant(c.Request.Context(), c.Param("id"), actor, input)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// RemoveParticipant detaches an attendee by name.
func (h *BookingHandler) RemoveParticipant(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	booking, err := h.Svc.RemoveParticipant(c.Request.Context(), c.Param("id"), actor, c.Param("name"))
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// GetTour fetches a single booking by ID.
func (h *BookingHandler) GetTour(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	booking, err := h.Svc.GetTour(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// ListTours lists bookings matching the query scope.
// Query params: agentId, propertyId, requesterId, from, to (RFC 3339), status (repeatable).
func (h *BookingHandler) ListTours(c *gin.Context) {
	if _, ok := requireActor(c); !ok {
		return
	}

	q := bookingRepo.ScopeQuery{
		AgentID:     c.Query("agentId"),
		PropertyID:  c.Query("propertyId"),
		RequesterID: c.Query("requesterId"),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from time", "details": err.Error()})
			return
		}
		q.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to time", "details": err.Error()})
			return
		}
		q.To = t
	}
	for _, s := range c.QueryArray("status") {
		q.Statuses = append(q.Statuses, models.BookingStatus(s))
	}

	bookings, err := h.Svc.ListTours(c.Request.Context(), q)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}
