package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/event"
	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
)

// ProposalStore is the slice of the proposal repository the engine needs.
type ProposalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*proposal.Proposal, error)
	Update(ctx context.Context, p *proposal.Proposal) error
}

// Notifier enqueues notifications as transition side effects. Failures are
// logged and never roll back a committed transition.
type Notifier interface {
	Notify(ctx context.Context, p *proposal.Proposal, templateID string, actor *user.User) error
	NotifyEmail(ctx context.Context, p *proposal.Proposal, templateID string, actor *user.User) error
	NotifyRole(ctx context.Context, p *proposal.Proposal, templateID string, role user.Role) error
}

// PermissionAction names an authorizable action against a proposal.
type PermissionAction string

const (
	ActionView     PermissionAction = "view"
	ActionEdit     PermissionAction = "edit"
	ActionApprove  PermissionAction = "approve"
	ActionReject   PermissionAction = "reject"
	ActionEscalate PermissionAction = "escalate"
)

// StepState is the display status derived for a step relative to a
// proposal's position. Skipped and rejected placements come from explicit
// transition outcomes, not from this derivation.
type StepState string

const (
	StepCompleted  StepState = "completed"
	StepInProgress StepState = "in_progress"
	StepPending    StepState = "pending"
)

// AnnotatedStep is a configured step tagged with its derived state.
type AnnotatedStep struct {
	Step
	State StepState `json:"state"`
}

// Engine computes step/transition state for proposals under a configuration
// and applies transitions. It is a synchronous rules evaluator: every
// operation runs to completion on the calling goroutine and nothing is
// retried internally.
type Engine struct {
	configs   ConfigStore
	proposals ProposalStore
	events    event.Log
	comments  CommentStore
	notifier  Notifier
	logger    zerolog.Logger
	now       func() time.Time
}

func NewEngine(configs ConfigStore, proposals ProposalStore, events event.Log, comments CommentStore, notifier Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		configs:   configs,
		proposals: proposals,
		events:    events,
		comments:  comments,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the engine's time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// CurrentStep maps the proposal's status to its pipeline step. A status no
// step maps is a configuration error, reported as not-found.
func (e *Engine) CurrentStep(ctx context.Context, workflowID string, p *proposal.Proposal) (*Step, error) {
	cfg, err := e.configs.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	step, ok := cfg.StepForStatus(p.Status)
	if !ok {
		return nil, &NotFoundError{Resource: "step for status", ID: string(p.Status)}
	}
	return step, nil
}

// NextStep returns the step after the proposal's current one, or not-found
// at the end of the pipeline.
func (e *Engine) NextStep(ctx context.Context, workflowID string, p *proposal.Proposal) (*Step, error) {
	return e.adjacentStep(ctx, workflowID, p, +1)
}

// PreviousStep returns the step before the proposal's current one, or
// not-found at the start of the pipeline.
func (e *Engine) PreviousStep(ctx context.Context, workflowID string, p *proposal.Proposal) (*Step, error) {
	return e.adjacentStep(ctx, workflowID, p, -1)
}

func (e *Engine) adjacentStep(ctx context.Context, workflowID string, p *proposal.Proposal, delta int) (*Step, error) {
	cfg, err := e.configs.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	cur, ok := cfg.StepForStatus(p.Status)
	if !ok {
		return nil, &NotFoundError{Resource: "step for status", ID: string(p.Status)}
	}
	step, ok := cfg.StepAtOrder(cur.Order + delta)
	if !ok {
		return nil, &NotFoundError{Resource: "step at order", ID: fmt.Sprintf("%d", cur.Order+delta)}
	}
	return step, nil
}

// StepsWithStatus returns every configured step annotated with a derived
// state relative to the proposal's current position. Best-effort display
// logic, not per-step ground truth.
func (e *Engine) StepsWithStatus(ctx context.Context, workflowID string, p *proposal.Proposal) ([]AnnotatedStep, error) {
	cfg, err := e.configs.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	cur, ok := cfg.StepForStatus(p.Status)
	if !ok {
		return nil, &NotFoundError{Resource: "step for status", ID: string(p.Status)}
	}
	out := make([]AnnotatedStep, 0, len(cfg.Steps))
	for _, s := range cfg.Steps {
		state := StepPending
		switch {
		case s.Order < cur.Order:
			state = StepCompleted
		case s.Order == cur.Order:
			state = StepInProgress
		}
		out = append(out, AnnotatedStep{Step: s, State: state})
	}
	return out, nil
}

// Authorize checks the configuration's permission lists for the user's role.
// Pure function of role; there is no per-proposal ACL beyond role.
func (e *Engine) Authorize(cfg *Configuration, u *user.User, action PermissionAction) error {
	var allowed []user.Role
	switch action {
	case ActionView:
		allowed = cfg.Permissions.CanView
	case ActionEdit:
		allowed = cfg.Permissions.CanEdit
	case ActionApprove:
		allowed = cfg.Permissions.CanApprove
	case ActionReject:
		allowed = cfg.Permissions.CanReject
	case ActionEscalate:
		allowed = cfg.Permissions.CanEscalate
	default:
		return &AuthorizationError{Action: string(action), Role: string(u.Role)}
	}
	for _, r := range allowed {
		if r == u.Role {
			return nil
		}
	}
	return &AuthorizationError{Action: string(action), Role: string(u.Role)}
}

// impliedAction maps a transition target to the permission it exercises.
func impliedAction(to proposal.Status) PermissionAction {
	switch to {
	case proposal.StatusApproved:
		return ActionApprove
	case proposal.StatusRejected:
		return ActionReject
	default:
		return ActionEdit
	}
}

// AvailableTransitions lists the transitions the user may apply to the
// proposal in its current status.
func (e *Engine) AvailableTransitions(ctx context.Context, workflowID string, p *proposal.Proposal, u *user.User) ([]Transition, error) {
	cfg, err := e.configs.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	var out []Transition
	for _, t := range cfg.Transitions {
		if t.FromStatus != p.Status {
			continue
		}
		if t.RequiredRole != "" && t.RequiredRole != u.Role {
			continue
		}
		if err := e.Authorize(cfg, u, impliedAction(t.ToStatus)); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ApplyTransition applies one transition to a proposal: authorization and
// guard checks, the status change with its status-specific fields, the
// best-effort side-effect actions, a status-change audit event, and the
// transition's notification. Failures before the status change leave the
// proposal untouched; failures after it (actions, event write, notification)
// are logged but never roll it back — the pipeline favors forward progress
// with manual correction over hard rollback.
func (e *Engine) ApplyTransition(ctx context.Context, workflowID string, proposalID uuid.UUID, u *user.User, transitionID, notes string) (*proposal.Proposal, error) {
	cfg, err := e.configs.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	t, ok := cfg.TransitionByID(transitionID)
	if !ok {
		return nil, &NotFoundError{Resource: "transition", ID: transitionID}
	}
	p, err := e.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, &NotFoundError{Resource: "proposal", ID: proposalID.String()}
	}

	if t.FromStatus != p.Status {
		return nil, &PreconditionError{
			Condition: fmt.Sprintf("transition %s applies to status %s, proposal is %s", t.ID, t.FromStatus, p.Status),
		}
	}
	if t.RequiredRole != "" && t.RequiredRole != u.Role {
		return nil, &AuthorizationError{Action: "apply transition " + t.ID, Role: string(u.Role)}
	}
	if err := e.Authorize(cfg, u, impliedAction(t.ToStatus)); err != nil {
		return nil, err
	}
	if err := evaluateConditions(p, t.Conditions); err != nil {
		return nil, err
	}

	from := p.Status
	now := e.now()
	updated := *p
	updated.Status = t.ToStatus
	switch t.ToStatus {
	case proposal.StatusSubmitted:
		updated.SubmittedAt = &now
	case proposal.StatusUnderReview:
		updated.ReviewedAt = &now
		reviewer := u.ID
		updated.ReviewedBy = &reviewer
	case proposal.StatusApproved:
		if notes != "" {
			updated.FinalApprovalNotes = &notes
		}
	case proposal.StatusRejected:
		if notes != "" {
			updated.ApprovalNotes = &notes
		}
	case proposal.StatusCompleted:
		updated.CompletedAt = &now
	}
	updated.UpdatedAt = now

	if err := e.proposals.Update(ctx, &updated); err != nil {
		return nil, err
	}

	e.runActions(ctx, cfg, t, &updated, u)

	evt := &event.Event{
		ProposalID:  updated.ID,
		Type:        event.TypeStatusChange,
		ActorID:     u.ID,
		ActorRole:   u.Role,
		Description: fmt.Sprintf("%s: %s -> %s", t.Name, from, t.ToStatus),
		Details: map[string]string{
			"transition_id": t.ID,
			"from_status":   string(from),
			"to_status":     string(t.ToStatus),
		},
	}
	if notes != "" {
		evt.Details["notes"] = notes
	}
	if err := e.events.Append(ctx, evt); err != nil {
		e.logger.Error().Err(err).
			Str("proposal_id", updated.ID.String()).
			Str("transition_id", t.ID).
			Msg("failed to append status change event")
	}

	if t.NotificationTemplate != "" {
		if err := e.notifier.Notify(ctx, &updated, t.NotificationTemplate, u); err != nil {
			e.logger.Error().Err(err).
				Str("proposal_id", updated.ID.String()).
				Str("template", t.NotificationTemplate).
				Msg("failed to enqueue transition notification")
		}
	}

	return &updated, nil
}

// Escalate flags an overdue proposal at its current step: an escalation
// event plus notifications to the configured roles. The status does not
// change; reassignment and deadline restarts are configuration
// (DeadlinePolicy), not engine behavior.
func (e *Engine) Escalate(ctx context.Context, workflowID string, proposalID uuid.UUID, u *user.User, reason string) error {
	cfg, err := e.configs.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if err := e.Authorize(cfg, u, ActionEscalate); err != nil {
		return err
	}
	p, err := e.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return &NotFoundError{Resource: "proposal", ID: proposalID.String()}
	}
	step, ok := cfg.StepForStatus(p.Status)
	if !ok {
		return &NotFoundError{Resource: "step for status", ID: string(p.Status)}
	}

	evt := &event.Event{
		ProposalID:  p.ID,
		Type:        event.TypeEscalation,
		ActorID:     u.ID,
		ActorRole:   u.Role,
		Description: fmt.Sprintf("escalated at step %s", step.ID),
		Details:     map[string]string{"step_id": step.ID, "reason": reason},
		Internal:    true,
	}
	if err := e.events.Append(ctx, evt); err != nil {
		return err
	}

	template := cfg.Deadline.Template
	if template == "" {
		template = "proposal-overdue"
	}
	for _, role := range cfg.Deadline.NotifyRoles {
		if err := e.notifier.NotifyRole(ctx, p, template, role); err != nil {
			e.logger.Error().Err(err).
				Str("proposal_id", p.ID.String()).
				Str("role", string(role)).
				Msg("failed to enqueue escalation notification")
		}
	}
	return nil
}

// AddComment attaches an immutable note to the proposal's current step and
// records a comment event.
func (e *Engine) AddComment(ctx context.Context, workflowID string, c *Comment, u *user.User) error {
	cfg, err := e.configs.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if err := e.Authorize(cfg, u, ActionView); err != nil {
		return err
	}
	p, err := e.proposals.GetByID(ctx, c.ProposalID)
	if err != nil {
		return &NotFoundError{Resource: "proposal", ID: c.ProposalID.String()}
	}
	if step, ok := cfg.StepForStatus(p.Status); ok && c.StepID == "" {
		c.StepID = step.ID
	}
	c.AuthorID = u.ID
	c.AuthorRole = u.Role
	if err := e.comments.Add(ctx, c); err != nil {
		return err
	}
	evt := &event.Event{
		ProposalID:  p.ID,
		Type:        event.TypeComment,
		ActorID:     u.ID,
		ActorRole:   u.Role,
		Description: "comment added",
		Details:     map[string]string{"comment_id": c.ID.String(), "step_id": c.StepID},
		Internal:    c.Internal,
	}
	if err := e.events.Append(ctx, evt); err != nil {
		e.logger.Error().Err(err).Str("proposal_id", p.ID.String()).Msg("failed to append comment event")
	}
	return nil
}

// Comments lists a proposal's comments oldest first.
func (e *Engine) Comments(ctx context.Context, proposalID uuid.UUID) ([]*Comment, error) {
	return e.comments.ForProposal(ctx, proposalID)
}

// Events lists a proposal's audit trail oldest first.
func (e *Engine) Events(ctx context.Context, proposalID uuid.UUID) ([]*event.Event, error) {
	return e.events.ForProposal(ctx, proposalID)
}
