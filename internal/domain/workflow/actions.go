package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/domain/event"
	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
)

// runActions executes a transition's configured side effects in order. Each
// is a best-effort external call: a failure is logged and the remaining
// actions still run. The status change has already committed by the time
// actions execute.
func (e *Engine) runActions(ctx context.Context, cfg *Configuration, t *Transition, p *proposal.Proposal, u *user.User) {
	for _, a := range t.Actions {
		if err := e.runAction(ctx, cfg, a, p, u); err != nil {
			e.logger.Error().Err(err).
				Str("proposal_id", p.ID.String()).
				Str("transition_id", t.ID).
				Str("action", string(a.Kind)).
				Msg("transition action failed")
		}
	}
}

func (e *Engine) runAction(ctx context.Context, cfg *Configuration, a Action, p *proposal.Proposal, u *user.User) error {
	switch a.Kind {
	case ActionNotify:
		return e.notifier.Notify(ctx, p, a.Params["template"], u)

	case ActionSendEmail:
		return e.notifier.NotifyEmail(ctx, p, a.Params["template"], u)

	case ActionAssign:
		if id := a.Params["user_id"]; id != "" {
			assignee, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("assign action: invalid user_id %q", id)
			}
			p.AssignedTo = &assignee
			if err := e.proposals.Update(ctx, p); err != nil {
				return fmt.Errorf("assign action: %w", err)
			}
		}
		return e.events.Append(ctx, &event.Event{
			ProposalID:  p.ID,
			Type:        event.TypeAssignment,
			ActorID:     u.ID,
			ActorRole:   u.Role,
			Description: "proposal assigned",
			Details:     a.Params,
			Internal:    true,
		})

	case ActionUpdateField:
		return e.updateField(ctx, p, a.Params["field"], a.Params["value"])

	case ActionCreateTask:
		// Tasks live on the audit trail; the surrounding application reads
		// them from there.
		return e.events.Append(ctx, &event.Event{
			ProposalID:  p.ID,
			Type:        event.TypeAssignment,
			ActorID:     u.ID,
			ActorRole:   u.Role,
			Description: fmt.Sprintf("task created: %s", a.Params["title"]),
			Details:     a.Params,
			Internal:    true,
		})

	case ActionLogEvent:
		return e.events.Append(ctx, &event.Event{
			ProposalID:  p.ID,
			Type:        event.TypeComment,
			ActorID:     u.ID,
			ActorRole:   u.Role,
			Description: a.Params["message"],
			Details:     a.Params,
			Internal:    true,
		})

	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// updateField applies an update_field action. Only annotation fields are
// assignable from configuration; anything else is rejected.
func (e *Engine) updateField(ctx context.Context, p *proposal.Proposal, field, value string) error {
	switch field {
	case "coordinator_notes":
		p.CoordinatorNotes = &value
	case "approval_notes":
		p.ApprovalNotes = &value
	case "admin_notes":
		p.AdminNotes = &value
	case "priority":
		p.Priority = proposal.Priority(value)
	default:
		return fmt.Errorf("update_field action: field %q is not assignable", field)
	}
	return e.proposals.Update(ctx, p)
}
