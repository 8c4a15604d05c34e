package scheduling

import (
	"strings"
	"time"

	"tourly/models"
)

// Action is a status-changing operation on a tour booking.
type Action string

const (
	ActionConfirm           Action = "confirm"
	ActionRequestReschedule Action = "request_reschedule"
	ActionCancel            Action = "cancel"
	ActionComplete          Action = "complete"
	ActionMarkNoShow        Action = "mark_no_show"
)

// TransitionInput carries the optional parameters of an action.
type TransitionInput struct {
	// NewStart is the start to confirm at, or the start proposed in a
	// reschedule request. The current duration is preserved either way.
	NewStart *time.Time
	// Reason is required for cancel, optional for reschedule requests.
	Reason string
	// Notes is appended on complete/no-show.
	Notes string
}

// Decision is the pure outcome of a valid transition: the new state plus the
// side effects the store must apply in one commit. The state machine never
// performs I/O itself.
type Decision struct {
	Status models.BookingStatus
	// NewStart/NewEnd move the interval; only confirm emits them. A
	// reschedule request records ProposedStart instead and keeps holding
	// the original interval until resolved.
	NewStart *time.Time
	NewEnd   *time.Time
	// ProposedStart is the time asked for in a reschedule request.
	// ClearProposedStart drops an open proposal when the request resolves.
	ProposedStart      *time.Time
	ClearProposedStart bool
	// AppendNote is the notes entry this action adds, if any.
	AppendNote *models.Note
	// AssignMeetingLink is set when confirming a virtual tour without a link.
	AssignMeetingLink bool
}

type transitionRule struct {
	to    models.BookingStatus
	roles []models.Role
}

// transitionTable is the full set of permitted (state, action) pairs and the
// roles allowed to invoke each.
var transitionTable = map[models.BookingStatus]map[Action]transitionRule{
	models.StatusPending: {
		ActionConfirm:           {models.StatusConfirmed, []models.Role{models.RoleAgent, models.RoleAdmin}},
		ActionRequestReschedule: {models.StatusRescheduleRequested, []models.Role{models.RoleAgent, models.RoleUser, models.RoleAdmin}},
		ActionCancel:            {models.StatusCancelled, []models.Role{models.RoleAgent, models.RoleUser, models.RoleAdmin}},
	},
	models.StatusConfirmed: {
		ActionRequestReschedule: {models.StatusRescheduleRequested, []models.Role{models.RoleAgent, models.RoleUser, models.RoleAdmin}},
		ActionCancel:            {models.StatusCancelled, []models.Role{models.RoleAgent, models.RoleUser, models.RoleAdmin}},
		ActionComplete:          {models.StatusCompleted, []models.Role{models.RoleAgent, models.RoleAdmin}},
		ActionMarkNoShow:        {models.StatusNoShow, []models.Role{models.RoleAgent, models.RoleAdmin}},
	},
	models.StatusRescheduleRequested: {
		ActionConfirm: {models.StatusConfirmed, []models.Role{models.RoleAgent, models.RoleAdmin}},
		ActionCancel:  {models.StatusCancelled, []models.Role{models.RoleAgent, models.RoleAdmin}},
	},
}

func roleIn(role models.Role, roles []models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// actionRoles is the union of roles that may invoke an action from any state.
// Used to distinguish Forbidden (never allowed) from InvalidTransition
// (allowed in general, not from this state).
func actionRoles(action Action) []models.Role {
	var union []models.Role
	for _, rules := range transitionTable {
		rule, ok := rules[action]
		if !ok {
			continue
		}
		for _, r := range rule.roles {
			if !roleIn(r, union) {
				union = append(union, r)
			}
		}
	}
	return union
}

// authorize verifies the actor may act on this booking at all: known role,
// and for non-admins, the matching identity on the booking.
func authorize(b *models.TourBooking, actor models.Actor) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleAgent:
		if actor.ID != b.AgentID {
			return models.ErrForbidden("you are not the agent for this tour")
		}
		return nil
	case models.RoleUser:
		if actor.ID != b.RequesterID {
			return models.ErrForbidden("you did not request this tour")
		}
		return nil
	default:
		return models.ErrForbidden("unknown role %q", actor.Role)
	}
}

// Decide validates a transition against the table and returns the pure
// decision to commit, or a typed rejection. Role permission is checked before
// the table lookup: an actor whose role can never invoke the action fails
// with Forbidden; a permitted role attempting it from the wrong state (or on
// a terminal booking) fails with InvalidTransition.
func Decide(b *models.TourBooking, actor models.Actor, action Action, in TransitionInput) (*Decision, error) {
	if err := authorize(b, actor); err != nil {
		return nil, err
	}
	if !roleIn(actor.Role, actionRoles(action)) {
		return nil, models.ErrForbidden("role %s may not %s a tour", actor.Role, action)
	}

	rules, ok := transitionTable[b.Status]
	if !ok {
		// Terminal states have no outgoing transitions at all.
		return nil, models.ErrInvalidTransition("tour is already %s", b.Status)
	}
	rule, ok := rules[action]
	if !ok {
		return nil, models.ErrInvalidTransition("cannot %s a %s tour", action, b.Status)
	}
	if !roleIn(actor.Role, rule.roles) {
		return nil, models.ErrInvalidTransition("role %s cannot %s a %s tour", actor.Role, action, b.Status)
	}

	if action == ActionCancel && strings.TrimSpace(in.Reason) == "" {
		return nil, models.ErrValidation("a cancellation reason is required")
	}

	dec := &Decision{Status: rule.to}

	if in.NewStart != nil {
		switch action {
		case ActionConfirm:
			newStart := *in.NewStart
			newEnd := newStart.Add(b.End.Sub(b.Start))
			if !newEnd.After(newStart) {
				return nil, models.ErrValidation("tour end must be after start")
			}
			dec.NewStart = &newStart
			dec.NewEnd = &newEnd
		case ActionRequestReschedule:
			// A proposal only. The booking keeps holding its original
			// interval until an agent confirms, so the old slot cannot be
			// taken out from under an unresolved request.
			proposed := *in.NewStart
			dec.ProposedStart = &proposed
		default:
			return nil, models.ErrValidation("%s does not accept a new time", action)
		}
	}

	// Resolving a reschedule request drops the open proposal either way.
	if b.Status == models.StatusRescheduleRequested {
		dec.ClearProposedStart = true
	}

	if action == ActionConfirm && b.IsVirtual && b.MeetingLink == "" {
		dec.AssignMeetingLink = true
	}

	if note := noteFor(action, actor.Role, in); note != nil {
		dec.AppendNote = note
	}

	return dec, nil
}

func noteFor(action Action, role models.Role, in TransitionInput) *models.Note {
	var text string
	switch action {
	case ActionCancel:
		text = "cancelled: " + strings.TrimSpace(in.Reason)
	case ActionRequestReschedule:
		if strings.TrimSpace(in.Reason) == "" {
			return nil
		}
		text = "reschedule requested: " + strings.TrimSpace(in.Reason)
	case ActionComplete:
		if strings.TrimSpace(in.Notes) == "" {
			return nil
		}
		text = "completed: " + strings.TrimSpace(in.Notes)
	case ActionMarkNoShow:
		text = "marked no-show"
		if strings.TrimSpace(in.Notes) != "" {
			text += ": " + strings.TrimSpace(in.Notes)
		}
	default:
		return nil
	}
	return &models.Note{AuthorRole: role, Text: text, CreatedAt: time.Now()}
}
