package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	agentRepo "tourly/database/repository/agent"
	bookingRepo "tourly/database/repository/booking"
	"tourly/models"
	"tourly/services/notification"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReminderScheduler enqueues pre-tour reminder pushes (see the cron package).
type ReminderScheduler interface {
	ScheduleTourReminder(ctx context.Context, b *models.TourBooking) error
	CancelTourReminder(ctx context.Context, bookingID string) error
}

// RequestTourInput is the payload for a new tour request.
type RequestTourInput struct {
	PropertyID      string
	AgentID         string
	RequesterID     string
	Start           time.Time
	DurationMinutes int
	IsVirtual       bool
	Notes           string
	Participants    []models.Participant
}

// SchedulingService is the only entry point external collaborators use. It
// composes the slot engine, the booking store, the state machine, and the
// notification hub.
type SchedulingService interface {
	GetAvailableSlots(ctx context.Context, agentID, propertyID string, rangeStart, rangeEnd time.Time, durationMinutes int) ([]models.AvailabilitySlot, error)
	RequestTour(ctx context.Context, in RequestTourInput) (*models.TourBooking, error)
	ConfirmTour(ctx context.Context, bookingID string, actor models.Actor, newStart *time.Time) (*models.TourBooking, error)
	RequestReschedule(ctx context.Context, bookingID string, actor models.Actor, newStart *time.Time, reason string) (*models.TourBooking, error)
	CancelTour(ctx context.Context, bookingID string, actor models.Actor, reason string) (*models.TourBooking, error)
	CompleteTour(ctx context.Context, bookingID string, actor models.Actor, notes string) (*models.TourBooking, error)
	MarkNoShow(ctx context.Context, bookingID string, actor models.Actor, notes string) (*models.TourBooking, error)
	AddParticipant(ctx context.Context, bookingID string, actor models.Actor, p models.Participant) (*models.TourBooking, error)
	RemoveParticipant(ctx context.Context, bookingID string, actor models.Actor, name string) (*models.TourBooking, error)
	GetTour(ctx context.Context, bookingID string) (*models.TourBooking, error)
	ListTours(ctx context.Context, q bookingRepo.ScopeQuery) ([]models.TourBooking, error)
	SubscribeToChanges(filter models.ScopeFilter) (*notification.Subscription, error)
	Unsubscribe(sub *notification.Subscription)
}

// DefaultSchedulingService is the production implementation.
type DefaultSchedulingService struct {
	Repo      bookingRepo.BookingRepository
	Engine    *SlotEngine
	Hub       *notification.Hub
	Directory agentRepo.AgentDirectory
	Reminders ReminderScheduler       // optional
	Notifier  notification.PushNotifier // optional
	Cache     *redis.Client             // optional availability snapshot cache
	CacheTTL  time.Duration
	Logger    *zap.Logger

	// agentLatch serializes commit+publish per agent so subscribers observe
	// same-booking events strictly in commit order.
	agentLatch keyedMutex
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

var blockingStatuses = []models.BookingStatus{
	models.StatusPending, models.StatusConfirmed, models.StatusRescheduleRequested,
}

func (s *DefaultSchedulingService) GetAvailableSlots(
	ctx context.Context,
	agentID, propertyID string,
	rangeStart, rangeEnd time.Time,
	durationMinutes int,
) ([]models.AvailabilitySlot, error) {
	if agentID == "" || propertyID == "" {
		return nil, models.ErrValidation("agent and property are required")
	}

	cacheKey, err := s.availabilityCacheKey(ctx, agentID, propertyID, rangeStart, rangeEnd, durationMinutes)
	if err == nil && cacheKey != "" {
		if raw, err := s.Cache.Get(ctx, cacheKey).Result(); err == nil {
			var slots []models.AvailabilitySlot
			if json.Unmarshal([]byte(raw), &slots) == nil {
				return slots, nil
			}
		}
	}

	hours, err := s.Directory.WorkingHours(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working hours for agent %s: %w", agentID, err)
	}

	// Agent-wide snapshot: the agent cannot tour two properties at once, so
	// the engine sees every blocking booking regardless of property.
	bookings, err := s.Repo.ListForScope(ctx, bookingRepo.ScopeQuery{
		AgentID:  agentID,
		From:     rangeStart,
		To:       rangeEnd,
		Statuses: blockingStatuses,
	})
	if err != nil {
		return nil, err
	}

	slots, err := s.Engine.ComputeAvailableSlots(time.Now(), hours, rangeStart, rangeEnd, durationMinutes, bookings)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(slots); err == nil {
			if err := s.Cache.Set(ctx, cacheKey, data, s.CacheTTL).Err(); err != nil {
				s.Logger.Warn("failed to cache availability", zap.String("agentID", agentID), zap.Error(err))
			}
		}
	}
	return slots, nil
}

// availabilityCacheKey builds an epoch-versioned key: bumping the agent's
// epoch on every committed write invalidates all cached ranges at once.
func (s *DefaultSchedulingService) availabilityCacheKey(
	ctx context.Context,
	agentID, propertyID string,
	rangeStart, rangeEnd time.Time,
	durationMinutes int,
) (string, error) {
	if s.Cache == nil {
		return "", fmt.Errorf("cache disabled")
	}
	epoch, err := s.Cache.Get(ctx, "avail_epoch:"+agentID).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("avail:%s:%s:%d:%d:%d:%d",
		agentID, propertyID, epoch, rangeStart.Unix(), rangeEnd.Unix(), durationMinutes), nil
}

func (s *DefaultSchedulingService) bumpAvailabilityEpoch(ctx context.Context, agentID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Incr(ctx, "avail_epoch:"+agentID).Err(); err != nil {
		s.Logger.Warn("failed to bump availability epoch", zap.String("agentID", agentID), zap.Error(err))
	}
}

func (s *DefaultSchedulingService) RequestTour(ctx context.Context, in RequestTourInput) (*models.TourBooking, error) {
	if in.PropertyID == "" || in.AgentID == "" || in.RequesterID == "" {
		return nil, models.ErrValidation("property, agent, and requester are required")
	}
	if !DurationAllowed(in.DurationMinutes) {
		return nil, models.ErrValidation("unsupported tour duration %d minutes", in.DurationMinutes)
	}
	now := time.Now()
	if !in.Start.After(now) {
		return nil, models.ErrValidation("tour start must be in the future")
	}
	if in.Start.After(now.Add(s.Engine.Horizon)) {
		return nil, models.ErrValidation("tour start is beyond the booking horizon")
	}
	for _, p := range in.Participants {
		if strings.TrimSpace(p.Name) == "" {
			return nil, models.ErrValidation("participant name is required")
		}
	}

	end := in.Start.Add(time.Duration(in.DurationMinutes) * time.Minute)

	hours, err := s.Directory.WorkingHours(ctx, in.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working hours for agent %s: %w", in.AgentID, err)
	}
	if !withinWorkingHours(hours, in.Start, end) {
		return nil, models.ErrValidation("tour falls outside the agent's working hours")
	}

	draft := &models.TourBooking{
		ID:           uuid.New().String(),
		PropertyID:   in.PropertyID,
		AgentID:      in.AgentID,
		RequesterID:  in.RequesterID,
		Start:        in.Start,
		End:          end,
		Status:       models.StatusPending,
		IsVirtual:    in.IsVirtual,
		Participants: in.Participants,
	}
	if strings.TrimSpace(in.Notes) != "" {
		draft.Notes = []models.Note{{
			AuthorRole: models.RoleUser,
			Text:       "request: " + strings.TrimSpace(in.Notes),
			CreatedAt:  now,
		}}
	}

	unlock := s.agentLatch.lock(in.AgentID)
	defer unlock()

	created, err := s.Repo.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, created)
	return created, nil
}

func withinWorkingHours(hours models.WorkingHours, start, end time.Time) bool {
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	startMin := int(start.Sub(dayStart) / time.Minute)
	endMin := int(end.Sub(dayStart) / time.Minute)
	return startMin >= hours.StartMinutes && endMin <= hours.EndMinutes
}

func (s *DefaultSchedulingService) ConfirmTour(ctx context.Context, bookingID string, actor models.Actor, newStart *time.Time) (*models.TourBooking, error) {
	return s.transition(ctx, bookingID, actor, ActionConfirm, TransitionInput{NewStart: newStart})
}

func (s *DefaultSchedulingService) RequestReschedule(ctx context.Context, bookingID string, actor models.Actor, newStart *time.Time, reason string) (*models.TourBooking, error) {
	return s.transition(ctx, bookingID, actor, ActionRequestReschedule, TransitionInput{NewStart: newStart, Reason: reason})
}

func (s *DefaultSchedulingService) CancelTour(ctx context.Context, bookingID string, actor models.Actor, reason string) (*models.TourBooking, error) {
	return s.transition(ctx, bookingID, actor, ActionCancel, TransitionInput{Reason: reason})
}

func (s *DefaultSchedulingService) CompleteTour(ctx context.Context, bookingID string, actor models.Actor, notes string) (*models.TourBooking, error) {
	return s.transition(ctx, bookingID, actor, ActionComplete, TransitionInput{Notes: notes})
}

func (s *DefaultSchedulingService) MarkNoShow(ctx context.Context, bookingID string, actor models.Actor, notes string) (*models.TourBooking, error) {
	return s.transition(ctx, bookingID, actor, ActionMarkNoShow, TransitionInput{Notes: notes})
}

// transition runs one state-machine action end to end: read, decide, commit
// via the store's CAS, then publish. A Stale result means another actor won
// the race; the caller re-reads and retries if it still wants the change.
func (s *DefaultSchedulingService) transition(ctx context.Context, bookingID string, actor models.Actor, action Action, in TransitionInput) (*models.TourBooking, error) {
	b, err := s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	dec, err := Decide(b, actor, action, in)
	if err != nil {
		return nil, err
	}

	m := bookingRepo.Mutation{
		ExpectedVersion:    b.Version,
		Status:             &dec.Status,
		Start:              dec.NewStart,
		End:                dec.NewEnd,
		ProposedStart:      dec.ProposedStart,
		ClearProposedStart: dec.ClearProposedStart,
	}
	if dec.AppendNote != nil {
		m.AppendNotes = []models.Note{*dec.AppendNote}
	}
	if dec.AssignMeetingLink {
		link := "https://meet.tourly.app/t/" + uuid.New().String()
		m.MeetingLink = &link
	}

	unlock := s.agentLatch.lock(b.AgentID)
	defer unlock()

	updated, err := s.Repo.ApplyTransition(ctx, bookingID, m)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, updated)

	if s.Reminders != nil {
		switch updated.Status {
		case models.StatusConfirmed:
			if err := s.Reminders.ScheduleTourReminder(ctx, updated); err != nil {
				s.Logger.Warn("failed to schedule tour reminder", zap.String("bookingID", updated.ID), zap.Error(err))
			}
		case models.StatusCancelled, models.StatusRescheduleRequested:
			if err := s.Reminders.CancelTourReminder(ctx, updated.ID); err != nil {
				s.Logger.Warn("failed to cancel tour reminder", zap.String("bookingID", updated.ID), zap.Error(err))
			}
		}
	}

	return updated, nil
}

// afterCommit fans a committed change out: availability caches for the agent
// are invalidated, the hub broadcasts to live subscribers, and pushes go out
// best-effort. Must run under the agent latch.
func (s *DefaultSchedulingService) afterCommit(ctx context.Context, b *models.TourBooking) {
	s.bumpAvailabilityEpoch(ctx, b.AgentID)

	ev := models.BookingEvent{
		ID:          uuid.New().String(),
		BookingID:   b.ID,
		AgentID:     b.AgentID,
		PropertyID:  b.PropertyID,
		RequesterID: b.RequesterID,
		Status:      b.Status,
		Booking:     b.Clone(),
		CommittedAt: b.UpdatedAt,
	}
	s.Hub.Publish(ev)

	if s.Notifier != nil {
		go s.Notifier.NotifyBookingChange(context.WithoutCancel(ctx), ev)
	}

	s.Logger.Info("booking change committed",
		zap.String("bookingID", b.ID),
		zap.String("agentID", b.AgentID),
		zap.String("status", string(b.Status)),
		zap.Int("version", b.Version))
}

func (s *DefaultSchedulingService) AddParticipant(ctx context.Context, bookingID string, actor models.Actor, p models.Participant) (*models.TourBooking, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, models.ErrValidation("participant name is required")
	}
	return s.mutateParticipants(ctx, bookingID, actor, bookingRepo.Mutation{AddParticipant: &p})
}

func (s *DefaultSchedulingService) RemoveParticipant(ctx context.Context, bookingID string, actor models.Actor, name string) (*models.TourBooking, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.ErrValidation("participant name is required")
	}
	return s.mutateParticipants(ctx, bookingID, actor, bookingRepo.Mutation{RemoveParticipant: name})
}

// mutateParticipants applies a participant change without a status
// transition. Allowed only while the booking is pending or confirmed.
func (s *DefaultSchedulingService) mutateParticipants(ctx context.Context, bookingID string, actor models.Actor, m bookingRepo.Mutation) (*models.TourBooking, error) {
	b, err := s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, actor); err != nil {
		return nil, err
	}
	if b.Status != models.StatusPending && b.Status != models.StatusConfirmed {
		return nil, models.ErrInvalidTransition("participants can only change on a pending or confirmed tour")
	}

	m.ExpectedVersion = b.Version

	unlock := s.agentLatch.lock(b.AgentID)
	defer unlock()

	updated, err := s.Repo.ApplyTransition(ctx, bookingID, m)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, updated)
	return updated, nil
}

func (s *DefaultSchedulingService) GetTour(ctx context.Context, bookingID string) (*models.TourBooking, error) {
	return s.Repo.GetByID(ctx, bookingID)
}

func (s *DefaultSchedulingService) ListTours(ctx context.Context, q bookingRepo.ScopeQuery) ([]models.TourBooking, error) {
	return s.Repo.ListForScope(ctx, q)
}

func (s *DefaultSchedulingService) SubscribeToChanges(filter models.ScopeFilter) (*notification.Subscription, error) {
	return s.Hub.Subscribe(filter)
}

func (s *DefaultSchedulingService) Unsubscribe(sub *notification.Subscription) {
	s.Hub.Unsubscribe(sub)
}
