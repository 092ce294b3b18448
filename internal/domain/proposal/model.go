package proposal

import (
	"time"

	"github.com/google/uuid"
)

// Status is the review-pipeline state of a proposal. A proposal's status must
// always correspond to exactly one step of the active workflow configuration.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
)

// ValidStatuses lists every status the service accepts.
var ValidStatuses = map[Status]bool{
	StatusDraft:       true,
	StatusSubmitted:   true,
	StatusUnderReview: true,
	StatusApproved:    true,
	StatusRejected:    true,
	StatusCancelled:   true,
	StatusCompleted:   true,
}

// IsTerminal reports whether no further transition may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Proposal maps to the proposal table: a treatment-plan approval request.
// Status is mutated only through workflow transitions; VersionID guards
// against two actors applying a transition to the same proposal at once.
type Proposal struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	TherapistID uuid.UUID `db:"therapist_id" json:"therapist_id"`
	Title       string    `db:"title" json:"title"`
	Status      Status    `db:"status" json:"status"`
	Priority    Priority  `db:"priority" json:"priority"`

	TotalSessions    int   `db:"total_sessions" json:"total_sessions"`
	TotalDurationMin int   `db:"total_duration_min" json:"total_duration_min"`
	TotalCostCents   int64 `db:"total_cost_cents" json:"total_cost_cents"`

	Notes            *string `db:"notes" json:"notes,omitempty"`
	TherapeuticGoals *string `db:"therapeutic_goals" json:"therapeutic_goals,omitempty"`

	// Role-specific annotations filled in as the proposal moves through steps.
	CoordinatorNotes   *string `db:"coordinator_notes" json:"coordinator_notes,omitempty"`
	ApprovalNotes      *string `db:"approval_notes" json:"approval_notes,omitempty"`
	FinalApprovalNotes *string `db:"final_approval_notes" json:"final_approval_notes,omitempty"`
	AdminNotes         *string `db:"admin_notes" json:"admin_notes,omitempty"`

	AssignedTo  *uuid.UUID `db:"assigned_to" json:"assigned_to,omitempty"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy  *uuid.UUID `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	VersionID int       `db:"version_id" json:"version_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GetVersionID returns the current version.
func (p *Proposal) GetVersionID() int { return p.VersionID }

// SetVersionID sets the current version.
func (p *Proposal) SetVersionID(v int) { p.VersionID = v }

// ProposalService maps to the proposal_service table: one selected
// therapeutic service line within a proposal.
type ProposalService struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProposalID  uuid.UUID `db:"proposal_id" json:"proposal_id"`
	Name        string    `db:"name" json:"name"`
	Sessions    int       `db:"sessions" json:"sessions"`
	DurationMin int       `db:"duration_min" json:"duration_min"`
	CostCents   int64     `db:"cost_cents" json:"cost_cents"`
}
