package proposal

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned when an update carries a stale VersionID,
// i.e. another actor changed the proposal first. Callers should re-fetch and
// retry if the operation is still meaningful.
var ErrVersionConflict = errors.New("proposal version conflict")

type Repository interface {
	Create(ctx context.Context, p *Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Proposal, error)
	// Update persists the full proposal row. It must fail with
	// ErrVersionConflict when the stored version no longer matches
	// p.VersionID, and bump the version on success.
	Update(ctx context.Context, p *Proposal) error
	List(ctx context.Context, limit, offset int) ([]*Proposal, int, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Proposal, int, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*Proposal, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Proposal, int, error)
	// ListOpen returns every proposal not in a terminal status, for the
	// deadline sweeper and metrics aggregation.
	ListOpen(ctx context.Context) ([]*Proposal, error)
	// Services
	AddService(ctx context.Context, s *ProposalService) error
	GetServices(ctx context.Context, proposalID uuid.UUID) ([]*ProposalService, error)
}
