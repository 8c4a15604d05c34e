// File: tourly/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourly/config"
	"tourly/cron"
	"tourly/database"
	"tourly/database/repository"
	"tourly/handlers"
	"tourly/middleware"
	"tourly/models"
	"tourly/routes"
	"tourly/services/notification"
	"tourly/services/scheduling"
	"tourly/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.FirebaseInit()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	bookingRepo := repository.NewMongoBookingRepo()
	defaultWorkday := models.WorkingHours{
		StartMinutes: config.AppConfig.WorkdayStartMinutes,
		EndMinutes:   config.AppConfig.WorkdayEndMinutes,
	}
	agentDirectory := &scheduling.CachedAgentDirectory{
		Next:   repository.NewMongoAgentDirectory(defaultWorkday),
		Client: utils.GetCacheClient(),
		TTL:    10 * time.Minute,
		Logger: logger,
	}

	// notification fan-out.
	hub := notification.NewHub()
	go hub.Run()
	defer hub.Stop()

	notifier := notification.NewFCMNotifier(utils.FCMClient, logger)

	// reminder queue.
	reminderScheduler := cron.NewReminderScheduler()
	defer reminderScheduler.Close()
	cron.InitReminderWorker(notifier)

	// services.
	schedulingService := &scheduling.DefaultSchedulingService{
		Repo:      bookingRepo,
		Engine:    scheduling.NewSlotEngine(config.AppConfig.SlotGranularityMinutes, config.AppConfig.BookingHorizonDays),
		Hub:       hub,
		Directory: agentDirectory,
		Reminders: reminderScheduler,
		Notifier:  notifier,
		Cache:     utils.GetCacheClient(),
		CacheTTL:  time.Duration(config.AppConfig.AvailabilityCacheTTL) * time.Second,
		Logger:    logger,
	}

	bookingHandler := handlers.NewBookingHandler(schedulingService, logger)
	streamHandler := handlers.NewStreamHandler(schedulingService, logger)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		GetAvailableSlotsHandler: bookingHandler.GetAvailableSlots,

		RequestTourHandler:       bookingHandler.RequestTour,
		ConfirmTourHandler:       bookingHandler.ConfirmTour,
		RequestRescheduleHandler: bookingHandler.RequestReschedule,
		CancelTourHandler:        bookingHandler.CancelTour,
		CompleteTourHandler:      bookingHandler.CompleteTour,
		MarkNoShowHandler:        bookingHandler.MarkNoShow,
		AddParticipantHandler:    bookingHandler.AddParticipant,
		RemoveParticipantHandler: bookingHandler.RemoveParticipant,
		GetTourHandler:           bookingHandler.GetTour,
		ListToursHandler:         bookingHandler.ListTours,

		StreamBookingChangesHandler: streamHandler.StreamBookingChanges,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
