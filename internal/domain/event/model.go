package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/domain/user"
)

// Type classifies a workflow event.
type Type string

const (
	TypeStatusChange Type = "status_change"
	TypeAssignment   Type = "assignment"
	TypeComment      Type = "comment"
	TypeApproval     Type = "approval"
	TypeRejection    Type = "rejection"
	TypeEscalation   Type = "escalation"
	TypeDeadline     Type = "deadline"
)

// Event maps to the workflow_event table: an immutable audit record of
// something that happened to a proposal. Events are appended, never updated
// or deleted.
type Event struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	ProposalID  uuid.UUID         `db:"proposal_id" json:"proposal_id"`
	Type        Type              `db:"type" json:"type"`
	ActorID     uuid.UUID         `db:"actor_id" json:"actor_id"`
	ActorRole   user.Role         `db:"actor_role" json:"actor_role"`
	Description string            `db:"description" json:"description"`
	Details     map[string]string `db:"details" json:"details,omitempty"`
	Internal    bool              `db:"internal" json:"internal"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}
