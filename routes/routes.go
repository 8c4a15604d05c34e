package routes

import (
	"net/http"
	"time"

	"tourly/handlers"
	"tourly/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterTourRoutes sets up the endpoints for the tour scheduling engine.
func RegisterTourRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/tours")
	{
		// Public endpoints: availability lookups and the change stream.
		api.GET("/availability", hb.GetAvailableSlotsHandler)
		api.GET("/stream", hb.StreamBookingChangesHandler)

		// Endpoints that read or mutate bookings require authentication.
		protected := api.Group("")
		protected.Use(middleware.ActorMiddleware())
		protected.POST("", hb.RequestTourHandler)
		protected.GET("", hb.ListToursHandler)
		protected.GET("/:id", hb.GetTourHandler)
		protected.POST("/:id/confirm", hb.ConfirmTourHandler)
		protected.POST("/:id/reschedule", hb.RequestRescheduleHandler)
		protected.POST("/:id/cancel", hb.CancelTourHandler)
		protected.POST("/:id/complete", hb.CompleteTourHandler)
		protected.POST("/:id/no-show", hb.MarkNoShowHandler)
		protected.POST("/:id/participants", hb.AddParticipantHandler)
		protected.DELETE("/:id/participants/:name", hb.RemoveParticipantHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm Tourly"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterTourRoutes(r, hb)
}
