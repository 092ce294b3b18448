package event

import (
	"context"

	"github.com/google/uuid"
)

// Log is an append-only store of workflow events. ForProposal returns events
// oldest first and can be re-queried any number of times.
type Log interface {
	Append(ctx context.Context, e *Event) error
	ForProposal(ctx context.Context, proposalID uuid.UUID) ([]*Event, error)
	// List returns every event in the log oldest first, for read-side
	// aggregation. Metrics is the only consumer; there is no pagination
	// because aggregation always wants the full window.
	List(ctx context.Context) ([]*Event, error)
}
