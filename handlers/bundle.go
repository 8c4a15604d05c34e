package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all your endpoint handlers into one struct.
type HandlerBundle struct {
	// Availability endpoints
	GetAvailableSlotsHandler gin.HandlerFunc

	// Tour booking endpoints
	RequestTourHandler       gin.HandlerFunc
	ConfirmTourHandler       gin.HandlerFunc
	RequestRescheduleHandler gin.HandlerFunc
	CancelTourHandler        gin.HandlerFunc
	CompleteTourHandler      gin.HandlerFunc
	MarkNoShowHandler        gin.HandlerFunc
	AddParticipantHandler    gin.HandlerFunc
	RemoveParticipantHandler gin.HandlerFunc
	GetTourHandler           gin.HandlerFunc
	ListToursHandler         gin.HandlerFunc

	// Live change stream
	StreamBookingChangesHandler gin.HandlerFunc
}
