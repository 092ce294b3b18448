// Package workflow implements the therapeutic-proposal approval pipeline:
// named, versioned workflow configurations, a rules engine that computes and
// applies role-gated status transitions with guard conditions and side-effect
// actions, and the append-only audit trail around them.
package workflow

import (
	"fmt"
	"time"

	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
)

// Step is one named stage of the pipeline. Statuses lists the proposal
// statuses that place a proposal at this step; a step may map no status at
// all (a display-only stage such as budget review inside coordinator review).
type Step struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Order         int               `json:"order"`
	Required      bool              `json:"required"`
	Skippable     bool              `json:"skippable"`
	Role          user.Role         `json:"role"`
	Statuses      []proposal.Status `json:"statuses,omitempty"`
	DeadlineHours int               `json:"deadline_hours,omitempty"`
}

// MatchesStatus reports whether the step is the pipeline position for the
// given proposal status.
func (s *Step) MatchesStatus(status proposal.Status) bool {
	for _, st := range s.Statuses {
		if st == status {
			return true
		}
	}
	return false
}

// TriggerKind says how a transition is initiated.
type TriggerKind string

const (
	TriggerManual    TriggerKind = "manual"
	TriggerAutomatic TriggerKind = "automatic"
)

// Operator is a guard-condition comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
)

var validOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true, OpGreaterThan: true, OpLessThan: true,
	OpContains: true, OpIsEmpty: true, OpIsNotEmpty: true,
}

// Condition is a field-level predicate on the proposal that must hold before
// a transition is allowed. Field is the JSON path of a proposal field.
type Condition struct {
	Field       string   `json:"field"`
	Operator    Operator `json:"operator"`
	Value       string   `json:"value,omitempty"`
	Description string   `json:"description"`
}

// ActionKind names a side-effect executed after a transition commits.
type ActionKind string

const (
	ActionNotify      ActionKind = "notify"
	ActionAssign      ActionKind = "assign"
	ActionUpdateField ActionKind = "update_field"
	ActionSendEmail   ActionKind = "send_email"
	ActionCreateTask  ActionKind = "create_task"
	ActionLogEvent    ActionKind = "log_event"
)

var validActions = map[ActionKind]bool{
	ActionNotify: true, ActionAssign: true, ActionUpdateField: true,
	ActionSendEmail: true, ActionCreateTask: true, ActionLogEvent: true,
}

// Action is one configured side effect. Actions are best-effort: a failing
// action never rolls back the status change it follows.
type Action struct {
	Kind   ActionKind        `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Transition is a permitted status change between two steps.
type Transition struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	FromStatus           proposal.Status `json:"from_status"`
	ToStatus             proposal.Status `json:"to_status"`
	Trigger              TriggerKind     `json:"trigger"`
	RequiredRole         user.Role       `json:"required_role,omitempty"`
	RequiresApproval     bool            `json:"requires_approval"`
	Conditions           []Condition     `json:"conditions,omitempty"`
	Actions              []Action        `json:"actions,omitempty"`
	NotificationTemplate string          `json:"notification_template,omitempty"`
}

// Permissions holds the per-action role lists consulted by Authorize.
type Permissions struct {
	CanView     []user.Role `json:"can_view"`
	CanEdit     []user.Role `json:"can_edit"`
	CanApprove  []user.Role `json:"can_approve"`
	CanReject   []user.Role `json:"can_reject"`
	CanEscalate []user.Role `json:"can_escalate"`
}

// DeadlinePolicy configures what an overdue proposal triggers. Escalation
// behavior is deliberately configuration, not code: the sweeper notifies the
// listed roles and, when ReassignRole is set, reassignment is recorded as an
// assignment event for that role's queue.
type DeadlinePolicy struct {
	NotifyRoles  []user.Role `json:"notify_roles,omitempty"`
	ReassignRole user.Role   `json:"reassign_role,omitempty"`
	Template     string      `json:"template,omitempty"`
}

// Configuration is a named, versioned pipeline definition. Exactly one
// configuration is active per workflow id.
type Configuration struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     int            `json:"version"`
	Active      bool           `json:"active"`
	Steps       []Step         `json:"steps"`
	Transitions []Transition   `json:"transitions"`
	Permissions Permissions    `json:"permissions"`
	Deadline    DeadlinePolicy `json:"deadline"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StepForStatus returns the step a proposal status maps to.
func (c *Configuration) StepForStatus(status proposal.Status) (*Step, bool) {
	for i := range c.Steps {
		if c.Steps[i].MatchesStatus(status) {
			return &c.Steps[i], true
		}
	}
	return nil, false
}

// StepAtOrder returns the step with the given order.
func (c *Configuration) StepAtOrder(order int) (*Step, bool) {
	for i := range c.Steps {
		if c.Steps[i].Order == order {
			return &c.Steps[i], true
		}
	}
	return nil, false
}

// TransitionByID returns the transition with the given id.
func (c *Configuration) TransitionByID(id string) (*Transition, bool) {
	for i := range c.Transitions {
		if c.Transitions[i].ID == id {
			return &c.Transitions[i], true
		}
	}
	return nil, false
}

// Validate checks structural invariants: step orders unique and contiguous
// from 1, steps and transitions well-formed, and every transition to-status
// mapped to some step.
func (c *Configuration) Validate() error {
	if c.ID == "" {
		return &ValidationError{Msg: "workflow id is required"}
	}
	if len(c.Steps) == 0 {
		return &ValidationError{Msg: "workflow has no steps"}
	}

	seen := make(map[int]string, len(c.Steps))
	for _, s := range c.Steps {
		if s.ID == "" {
			return &ValidationError{Msg: "step id is required"}
		}
		if prev, dup := seen[s.Order]; dup {
			return &ValidationError{Msg: fmt.Sprintf("steps %q and %q share order %d", prev, s.ID, s.Order)}
		}
		seen[s.Order] = s.ID
		for _, st := range s.Statuses {
			if !proposal.ValidStatuses[st] {
				return &ValidationError{Msg: fmt.Sprintf("step %q maps unknown status %q", s.ID, st)}
			}
		}
	}
	for order := 1; order <= len(c.Steps); order++ {
		if _, ok := seen[order]; !ok {
			return &ValidationError{Msg: fmt.Sprintf("step orders are not contiguous: missing order %d", order)}
		}
	}

	for _, t := range c.Transitions {
		if t.ID == "" {
			return &ValidationError{Msg: "transition id is required"}
		}
		if !proposal.ValidStatuses[t.FromStatus] {
			return &ValidationError{Msg: fmt.Sprintf("transition %q has unknown from-status %q", t.ID, t.FromStatus)}
		}
		if !proposal.ValidStatuses[t.ToStatus] {
			return &ValidationError{Msg: fmt.Sprintf("transition %q has unknown to-status %q", t.ID, t.ToStatus)}
		}
		if _, ok := c.StepForStatus(t.ToStatus); !ok {
			return &ValidationError{Msg: fmt.Sprintf("transition %q targets status %q which no step maps", t.ID, t.ToStatus)}
		}
		if t.Trigger != TriggerManual && t.Trigger != TriggerAutomatic {
			return &ValidationError{Msg: fmt.Sprintf("transition %q has unknown trigger %q", t.ID, t.Trigger)}
		}
		if t.RequiredRole != "" && !user.ValidRoles[t.RequiredRole] {
			return &ValidationError{Msg: fmt.Sprintf("transition %q requires unknown role %q", t.ID, t.RequiredRole)}
		}
		for _, cond := range t.Conditions {
			if !validOperators[cond.Operator] {
				return &ValidationError{Msg: fmt.Sprintf("transition %q condition on %q has unknown operator %q", t.ID, cond.Field, cond.Operator)}
			}
		}
		for _, a := range t.Actions {
			if !validActions[a.Kind] {
				return &ValidationError{Msg: fmt.Sprintf("transition %q has unknown action kind %q", t.ID, a.Kind)}
			}
		}
	}
	return nil
}
