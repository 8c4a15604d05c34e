package scheduling

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	agentRepo "tourly/database/repository/agent"
	bookingRepo "tourly/database/repository/booking"
	"tourly/models"
	"tourly/services/notification"
)

func testService(t *testing.T) *DefaultSchedulingService {
	t.Helper()
	hub := notification.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	return &DefaultSchedulingService{
		Repo:      bookingRepo.NewMemoryBookingRepo(),
		Engine:    NewSlotEngine(30, 30),
		Hub:       hub,
		Directory: &agentRepo.StaticAgentDirectory{Hours: models.WorkingHours{StartMinutes: 0, EndMinutes: 24 * 60}},
		Logger:    zap.NewNop(),
	}
}

// tomorrowAt gives a future start time safely inside any workday.
func tomorrowAt(hour int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
}

func requestInput(start time.Time) RequestTourInput {
	return RequestTourInput{
		PropertyID:      "prop-1",
		AgentID:         "agent-1",
		RequesterID:     "user-1",
		Start:           start,
		DurationMinutes: 60,
	}
}

func TestRequestTourValidation(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	in := requestInput(tomorrowAt(10))
	in.AgentID = ""
	if _, err := svc.RequestTour(ctx, in); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("missing agent: got %v, want validation error", err)
	}

	in = requestInput(tomorrowAt(10))
	in.DurationMinutes = 45
	if _, err := svc.RequestTour(ctx, in); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("bad duration: got %v, want validation error", err)
	}

	in = requestInput(time.Now().UTC().Add(-time.Hour))
	if _, err := svc.RequestTour(ctx, in); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("past start: got %v, want validation error", err)
	}

	in = requestInput(time.Now().UTC().AddDate(0, 0, 45))
	if _, err := svc.RequestTour(ctx, in); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("beyond horizon: got %v, want validation error", err)
	}
}

func TestRequestTourOutsideWorkingHours(t *testing.T) {
	svc := testService(t)
	svc.Directory = &agentRepo.StaticAgentDirectory{Hours: models.WorkingHours{StartMinutes: 9 * 60, EndMinutes: 17 * 60}}

	if _, err := svc.RequestTour(context.Background(), requestInput(tomorrowAt(20))); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("outside working hours: got %v, want validation error", err)
	}
	if _, err := svc.RequestTour(context.Background(), requestInput(tomorrowAt(10))); err != nil {
		t.Errorf("inside working hours: %v", err)
	}
}

func TestTourLifecycleEventsInOrder(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	sub, err := svc.SubscribeToChanges(models.ScopeFilter{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer svc.Unsubscribe(sub)

	b, err := svc.RequestTour(ctx, requestInput(tomorrowAt(10)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if b.Status != models.StatusPending || b.Version != 1 {
		t.Fatalf("new booking: got %s v%d, want pending v1", b.Status, b.Version)
	}

	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	if _, err := svc.ConfirmTour(ctx, b.ID, agent, nil); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := svc.CompleteTour(ctx, b.ID, agent, "great visit"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	want := []models.BookingStatus{models.StatusPending, models.StatusConfirmed, models.StatusCompleted}
	for _, status := range want {
		select {
		case ev := <-sub.C:
			if ev.BookingID != b.ID || ev.Status != status {
				t.Fatalf("got event %s/%s, want %s", ev.BookingID, ev.Status, status)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", status)
		}
	}
}

func TestConfirmVirtualTourAssignsMeetingLink(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	in := requestInput(tomorrowAt(10))
	in.IsVirtual = true
	b, err := svc.RequestTour(ctx, in)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	confirmed, err := svc.ConfirmTour(ctx, b.ID, agent, nil)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !strings.HasPrefix(confirmed.MeetingLink, "https://meet.tourly.app/t/") {
		t.Errorf("got meeting link %q, want a generated one", confirmed.MeetingLink)
	}

	// Re-confirming after a reschedule keeps the original link.
	if _, err := svc.RequestReschedule(ctx, b.ID, agent, nil, "running late"); err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	again, err := svc.ConfirmTour(ctx, b.ID, agent, nil)
	if err != nil {
		t.Fatalf("re-confirm failed: %v", err)
	}
	if again.MeetingLink != confirmed.MeetingLink {
		t.Error("meeting link changed across reschedule")
	}
}

func TestConcurrentDoubleBooking(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	start := tomorrowAt(10)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := requestInput(start)
			in.RequesterID = "user-" + string(rune('a'+i))
			_, errs[i] = svc.RequestTour(ctx, in)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch models.CodeOf(err) {
		case "":
			won++
		case models.CodeSlotConflict:
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != n-1 {
		t.Errorf("got %d winners and %d conflicts, want exactly one winner", won, lost)
	}
}

func TestCancelledTourCannotBeConfirmed(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	b, err := svc.RequestTour(ctx, requestInput(tomorrowAt(10)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	user := models.Actor{ID: "user-1", Role: models.RoleUser}
	if _, err := svc.CancelTour(ctx, b.ID, user, "changed my mind"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	if _, err := svc.ConfirmTour(ctx, b.ID, agent, nil); models.CodeOf(err) != models.CodeInvalidTransition {
		t.Errorf("confirm after cancel: got %v, want invalid transition", err)
	}
}

func TestRescheduleHoldBlocksAvailability(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	start := tomorrowAt(10)

	b, err := svc.RequestTour(ctx, requestInput(start))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	user := models.Actor{ID: "user-1", Role: models.RoleUser}
	if _, err := svc.RequestReschedule(ctx, b.ID, user, nil, ""); err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}

	slots, err := svc.GetAvailableSlots(ctx, "agent-1", "prop-1", start.Add(-2*time.Hour), start.Add(2*time.Hour), 60)
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	for _, s := range slots {
		if s.Start.Equal(start) {
			t.Error("a reschedule-held interval leaked back into availability")
		}
	}
}

func TestRescheduleWithProposedTimeKeepsHold(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	start := tomorrowAt(10)

	b, err := svc.RequestTour(ctx, requestInput(start))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	user := models.Actor{ID: "user-1", Role: models.RoleUser}
	proposed := tomorrowAt(14)
	held, err := svc.RequestReschedule(ctx, b.ID, user, &proposed, "afternoon works better")
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if !held.Start.Equal(start) || !held.End.Equal(start.Add(time.Hour)) {
		t.Fatalf("reschedule request moved the interval to %v-%v", held.Start, held.End)
	}
	if held.ProposedStart == nil || !held.ProposedStart.Equal(proposed) {
		t.Errorf("got proposal %v, want %v", held.ProposedStart, proposed)
	}

	// The original slot stays held against availability and new bookings.
	slots, err := svc.GetAvailableSlots(ctx, "agent-1", "prop-1", start.Add(-time.Hour), start.Add(3*time.Hour), 60)
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	for _, s := range slots {
		if s.Start.Equal(start) {
			t.Error("the held slot leaked back into availability")
		}
	}
	in := requestInput(start)
	in.RequesterID = "user-2"
	if _, err := svc.RequestTour(ctx, in); models.CodeOf(err) != models.CodeSlotConflict {
		t.Errorf("booking over a held slot: got %v, want slot conflict", err)
	}

	// Confirming at the proposed time applies the move and drops the proposal.
	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	confirmed, err := svc.ConfirmTour(ctx, b.ID, agent, &proposed)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !confirmed.Start.Equal(proposed) || confirmed.ProposedStart != nil {
		t.Errorf("got start %v proposal %v, want moved with proposal cleared", confirmed.Start, confirmed.ProposedStart)
	}
}

func TestConfirmWithoutNewTimeKeepsHeldInterval(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	start := tomorrowAt(10)

	b, err := svc.RequestTour(ctx, requestInput(start))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	user := models.Actor{ID: "user-1", Role: models.RoleUser}
	proposed := tomorrowAt(14)
	if _, err := svc.RequestReschedule(ctx, b.ID, user, &proposed, ""); err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}

	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	confirmed, err := svc.ConfirmTour(ctx, b.ID, agent, nil)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !confirmed.Start.Equal(start) {
		t.Errorf("confirm without a new time must keep the held interval, got %v", confirmed.Start)
	}
	if confirmed.ProposedStart != nil {
		t.Error("resolving the request must clear the proposal")
	}
}

func TestConfirmAtNewTimeMovesInterval(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	b, err := svc.RequestTour(ctx, requestInput(tomorrowAt(10)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	newStart := tomorrowAt(14)
	moved, err := svc.ConfirmTour(ctx, b.ID, agent, &newStart)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !moved.Start.Equal(newStart) || !moved.End.Equal(newStart.Add(time.Hour)) {
		t.Errorf("got interval %v to %v, want moved with duration preserved", moved.Start, moved.End)
	}
}

func TestConfirmAtTakenTimeConflicts(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	taken := requestInput(tomorrowAt(14))
	taken.RequesterID = "user-2"
	if _, err := svc.RequestTour(ctx, taken); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	b, err := svc.RequestTour(ctx, requestInput(tomorrowAt(10)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	newStart := tomorrowAt(14)
	if _, err := svc.ConfirmTour(ctx, b.ID, agent, &newStart); models.CodeOf(err) != models.CodeSlotConflict {
		t.Errorf("confirm onto taken slot: got %v, want slot conflict", err)
	}
}

func TestParticipantLifecycle(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	b, err := svc.RequestTour(ctx, requestInput(tomorrowAt(10)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	user := models.Actor{ID: "user-1", Role: models.RoleUser}
	updated, err := svc.AddParticipant(ctx, b.ID, user, models.Participant{Name: "Ada", Relationship: "spouse"})
	if err != nil {
		t.Fatalf("add participant failed: %v", err)
	}
	if len(updated.Participants) != 1 {
		t.Fatalf("got %d participants, want 1", len(updated.Participants))
	}

	stranger := models.Actor{ID: "user-9", Role: models.RoleUser}
	if _, err := svc.AddParticipant(ctx, b.ID, stranger, models.Participant{Name: "Eve"}); models.CodeOf(err) != models.CodeForbidden {
		t.Errorf("foreign user adding participant: got %v, want forbidden", err)
	}

	updated, err = svc.RemoveParticipant(ctx, b.ID, user, "Ada")
	if err != nil {
		t.Fatalf("remove participant failed: %v", err)
	}
	if len(updated.Participants) != 0 {
		t.Errorf("participant not removed: %+v", updated.Participants)
	}

	if _, err := svc.CancelTour(ctx, b.ID, user, "moving away"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := svc.AddParticipant(ctx, b.ID, user, models.Participant{Name: "Bob"}); models.CodeOf(err) != models.CodeInvalidTransition {
		t.Errorf("participant change on cancelled tour: got %v, want invalid transition", err)
	}
}

func TestNotesAccumulateAcrossTransitions(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	in := requestInput(tomorrowAt(10))
	in.Notes = "interested in the garden"
	b, err := svc.RequestTour(ctx, in)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(b.Notes) != 1 {
		t.Fatalf("got %d notes after request, want 1", len(b.Notes))
	}

	agent := models.Actor{ID: "agent-1", Role: models.RoleAgent}
	if _, err := svc.ConfirmTour(ctx, b.ID, agent, nil); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	done, err := svc.CompleteTour(ctx, b.ID, agent, "client loved it")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if len(done.Notes) != 2 {
		t.Errorf("got %d notes after completion, want request plus completion", len(done.Notes))
	}
	last := done.Notes[len(done.Notes)-1]
	if !strings.Contains(last.Text, "client loved it") {
		t.Errorf("completion note missing, got %q", last.Text)
	}
}

func TestGetAndListTours(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	b, err := svc.RequestTour(ctx, requestInput(tomorrowAt(10)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	other := requestInput(tomorrowAt(14))
	other.AgentID = "agent-2"
	if _, err := svc.RequestTour(ctx, other); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	got, err := svc.GetTour(ctx, b.ID)
	if err != nil || got.ID != b.ID {
		t.Errorf("get tour: got %v, %v", got, err)
	}
	if _, err := svc.GetTour(ctx, "missing"); models.CodeOf(err) != models.CodeNotFound {
		t.Errorf("missing tour: got %v, want not found", err)
	}

	mine, err := svc.ListTours(ctx, bookingRepo.ScopeQuery{AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != b.ID {
		t.Errorf("agent scope: got %+v", mine)
	}
}
