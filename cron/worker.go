package cron

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"tourly/config"
	"tourly/models"
	"tourly/services/notification"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

const TypeTourReminder = "reminder:tour"

func reminderRedisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}
}

// AsynqReminderScheduler enqueues one delayed reminder task per confirmed
// tour. The task ID is derived from the booking ID, so re-confirming after a
// reschedule replaces the stale reminder instead of stacking a second one.
type AsynqReminderScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	lead      time.Duration
}

func NewReminderScheduler() *AsynqReminderScheduler {
	opts := reminderRedisOpts()
	return &AsynqReminderScheduler{
		client:    asynq.NewClient(opts),
		inspector: asynq.NewInspector(opts),
		lead:      time.Duration(config.AppConfig.ReminderLeadMinutes) * time.Minute,
	}
}

func reminderTaskID(bookingID string) string {
	return "tour-reminder:" + bookingID
}

func (s *AsynqReminderScheduler) ScheduleTourReminder(ctx context.Context, b *models.TourBooking) error {
	fireAt := b.Start.Add(-s.lead)
	if !fireAt.After(time.Now()) {
		return nil
	}

	payload, err := json.Marshal(models.TourReminderPayload{
		BookingID:   b.ID,
		AgentID:     b.AgentID,
		RequesterID: b.RequesterID,
		PropertyID:  b.PropertyID,
		Start:       b.Start,
		IsVirtual:   b.IsVirtual,
		MeetingLink: b.MeetingLink,
	})
	if err != nil {
		return err
	}

	// Replace any reminder queued for an earlier version of this booking.
	_ = s.CancelTourReminder(ctx, b.ID)

	task := asynq.NewTask(TypeTourReminder, payload)
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.TaskID(reminderTaskID(b.ID)),
		asynq.ProcessAt(fireAt))
	return err
}

func (s *AsynqReminderScheduler) CancelTourReminder(ctx context.Context, bookingID string) error {
	err := s.inspector.DeleteTask("default", reminderTaskID(bookingID))
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

func (s *AsynqReminderScheduler) Close() error {
	return s.client.Close()
}

// InitReminderWorker runs the async worker in background.
func InitReminderWorker(notifier notification.PushNotifier) {
	srv := asynq.NewServer(
		reminderRedisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeTourReminder, handleReminderTask(notifier))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[ReminderWorker] 🚀 Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[ReminderWorker] ❌ Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[ReminderWorker] ❗ Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleReminderTask(notifier notification.PushNotifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.TourReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[ReminderHandler] 🔴 Invalid payload: %v", err)
			return err
		}

		log.Printf("[ReminderHandler] ⏰ Triggering tour reminder for booking %s (agent %s)", p.BookingID, p.AgentID)

		notifier.SendReminder(ctx, p)
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[ReminderWorker] ⚠️ Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
