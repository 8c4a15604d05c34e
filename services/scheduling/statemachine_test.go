package scheduling

import (
	"testing"
	"time"

	"tourly/models"
)

func pendingBooking() *models.TourBooking {
	start := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	return &models.TourBooking{
		ID:          "b1",
		PropertyID:  "prop-1",
		AgentID:     "agent-1",
		RequesterID: "user-1",
		Start:       start,
		End:         start.Add(time.Hour),
		Status:      models.StatusPending,
		Version:     1,
	}
}

func bookingIn(status models.BookingStatus) *models.TourBooking {
	b := pendingBooking()
	b.Status = status
	return b
}

var (
	theAgent = models.Actor{ID: "agent-1", Role: models.RoleAgent}
	theUser  = models.Actor{ID: "user-1", Role: models.RoleUser}
	anAdmin  = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
)

func TestDecideTransitionTable(t *testing.T) {
	cases := []struct {
		name   string
		from   models.BookingStatus
		action Action
		actor  models.Actor
		want   models.BookingStatus
		code   string
	}{
		{"agent confirms pending", models.StatusPending, ActionConfirm, theAgent, models.StatusConfirmed, ""},
		{"admin confirms pending", models.StatusPending, ActionConfirm, anAdmin, models.StatusConfirmed, ""},
		{"user cannot confirm", models.StatusPending, ActionConfirm, theUser, "", models.CodeForbidden},
		{"user requests reschedule", models.StatusPending, ActionRequestReschedule, theUser, models.StatusRescheduleRequested, ""},
		{"agent requests reschedule", models.StatusConfirmed, ActionRequestReschedule, theAgent, models.StatusRescheduleRequested, ""},
		{"user cannot complete", models.StatusConfirmed, ActionComplete, theUser, "", models.CodeForbidden},
		{"agent completes confirmed", models.StatusConfirmed, ActionComplete, theAgent, models.StatusCompleted, ""},
		{"agent marks no-show", models.StatusConfirmed, ActionMarkNoShow, theAgent, models.StatusNoShow, ""},
		{"cannot complete pending", models.StatusPending, ActionComplete, theAgent, "", models.CodeInvalidTransition},
		{"cannot confirm confirmed", models.StatusConfirmed, ActionConfirm, theAgent, "", models.CodeInvalidTransition},
		{"agent resolves reschedule", models.StatusRescheduleRequested, ActionConfirm, theAgent, models.StatusConfirmed, ""},
		{"agent cancels reschedule", models.StatusRescheduleRequested, ActionCancel, theAgent, models.StatusCancelled, ""},
		{"user cannot cancel held booking", models.StatusRescheduleRequested, ActionCancel, theUser, "", models.CodeInvalidTransition},
		{"cancelled is terminal", models.StatusCancelled, ActionConfirm, anAdmin, "", models.CodeInvalidTransition},
		{"completed is terminal", models.StatusCompleted, ActionCancel, anAdmin, "", models.CodeInvalidTransition},
		{"no-show is terminal", models.StatusNoShow, ActionRequestReschedule, anAdmin, "", models.CodeInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := TransitionInput{}
			if tc.action == ActionCancel {
				in.Reason = "schedule conflict"
			}
			dec, err := Decide(bookingIn(tc.from), tc.actor, tc.action, in)
			if tc.code != "" {
				if models.CodeOf(err) != tc.code {
					t.Fatalf("got error %v, want code %s", err, tc.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dec.Status != tc.want {
				t.Errorf("got status %s, want %s", dec.Status, tc.want)
			}
		})
	}
}

func TestDecideIdentityMismatchIsForbidden(t *testing.T) {
	otherAgent := models.Actor{ID: "agent-2", Role: models.RoleAgent}
	if _, err := Decide(pendingBooking(), otherAgent, ActionConfirm, TransitionInput{}); models.CodeOf(err) != models.CodeForbidden {
		t.Errorf("foreign agent: got %v, want forbidden", err)
	}

	otherUser := models.Actor{ID: "user-2", Role: models.RoleUser}
	if _, err := Decide(pendingBooking(), otherUser, ActionCancel, TransitionInput{Reason: "x"}); models.CodeOf(err) != models.CodeForbidden {
		t.Errorf("foreign user: got %v, want forbidden", err)
	}

	unknown := models.Actor{ID: "x", Role: models.Role("ghost")}
	if _, err := Decide(pendingBooking(), unknown, ActionCancel, TransitionInput{Reason: "x"}); models.CodeOf(err) != models.CodeForbidden {
		t.Errorf("unknown role: got %v, want forbidden", err)
	}
}

func TestDecideCancelRequiresReason(t *testing.T) {
	if _, err := Decide(pendingBooking(), theUser, ActionCancel, TransitionInput{}); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("blank reason: got %v, want validation error", err)
	}
	if _, err := Decide(pendingBooking(), theUser, ActionCancel, TransitionInput{Reason: "   "}); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("whitespace reason: got %v, want validation error", err)
	}

	dec, err := Decide(pendingBooking(), theUser, ActionCancel, TransitionInput{Reason: "found another place"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.AppendNote == nil || dec.AppendNote.Text != "cancelled: found another place" {
		t.Errorf("expected a cancellation note, got %+v", dec.AppendNote)
	}
}

func TestDecideNewStartPreservesDuration(t *testing.T) {
	b := pendingBooking()
	newStart := b.Start.Add(3 * time.Hour)

	dec, err := Decide(b, theAgent, ActionConfirm, TransitionInput{NewStart: &newStart})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.NewStart == nil || !dec.NewStart.Equal(newStart) {
		t.Fatalf("got new start %v, want %v", dec.NewStart, newStart)
	}
	if dec.NewEnd == nil || !dec.NewEnd.Equal(newStart.Add(time.Hour)) {
		t.Errorf("got new end %v, want duration preserved", dec.NewEnd)
	}
}

func TestDecideNewStartRejectedForOtherActions(t *testing.T) {
	b := bookingIn(models.StatusConfirmed)
	newStart := b.Start.Add(time.Hour)
	if _, err := Decide(b, theAgent, ActionComplete, TransitionInput{NewStart: &newStart}); models.CodeOf(err) != models.CodeValidation {
		t.Errorf("complete with new start: got %v, want validation error", err)
	}
}

func TestDecideRescheduleProposalKeepsInterval(t *testing.T) {
	b := pendingBooking()
	proposed := b.Start.Add(4 * time.Hour)

	dec, err := Decide(b, theUser, ActionRequestReschedule, TransitionInput{NewStart: &proposed, Reason: "afternoon works better"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Status != models.StatusRescheduleRequested {
		t.Fatalf("got status %s, want reschedule_requested", dec.Status)
	}
	if dec.NewStart != nil || dec.NewEnd != nil {
		t.Error("a reschedule request must not move the held interval")
	}
	if dec.ProposedStart == nil || !dec.ProposedStart.Equal(proposed) {
		t.Errorf("got proposal %v, want %v", dec.ProposedStart, proposed)
	}
}

func TestDecideResolvingHoldClearsProposal(t *testing.T) {
	held := bookingIn(models.StatusRescheduleRequested)
	proposed := held.Start.Add(4 * time.Hour)
	held.ProposedStart = &proposed

	dec, err := Decide(held, theAgent, ActionConfirm, TransitionInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.ClearProposedStart {
		t.Error("confirming must drop the open proposal")
	}

	dec, err = Decide(held, theAgent, ActionCancel, TransitionInput{Reason: "no longer available"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.ClearProposedStart {
		t.Error("cancelling must drop the open proposal")
	}
}

func TestDecideAssignsMeetingLinkForVirtualTours(t *testing.T) {
	b := pendingBooking()
	b.IsVirtual = true

	dec, err := Decide(b, theAgent, ActionConfirm, TransitionInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.AssignMeetingLink {
		t.Error("confirming a virtual tour without a link must assign one")
	}

	b.MeetingLink = "https://meet.example.com/existing"
	dec, err = Decide(b, theAgent, ActionConfirm, TransitionInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.AssignMeetingLink {
		t.Error("an existing meeting link must be kept")
	}

	inPerson := pendingBooking()
	dec, err = Decide(inPerson, theAgent, ActionConfirm, TransitionInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.AssignMeetingLink {
		t.Error("in-person tours never get a meeting link")
	}
}

func TestTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	actions := []Action{ActionConfirm, ActionRequestReschedule, ActionCancel, ActionComplete, ActionMarkNoShow}
	for _, status := range []models.BookingStatus{models.StatusCancelled, models.StatusCompleted, models.StatusNoShow} {
		for _, action := range actions {
			in := TransitionInput{}
			if action == ActionCancel {
				in.Reason = "x"
			}
			if _, err := Decide(bookingIn(status), anAdmin, action, in); models.CodeOf(err) != models.CodeInvalidTransition {
				t.Errorf("%s from %s: got %v, want invalid transition", action, status, err)
			}
		}
	}
}
