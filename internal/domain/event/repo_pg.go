package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type logPG struct{ pool *pgxpool.Pool }

func NewLogPG(pool *pgxpool.Pool) Log {
	return &logPG{pool: pool}
}

const eventCols = `id, proposal_id, type, actor_id, actor_role, description, details, internal, created_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var details []byte
	err := row.Scan(&e.ID, &e.ProposalID, &e.Type, &e.ActorID, &e.ActorRole,
		&e.Description, &details, &e.Internal, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode event details: %w", err)
		}
	}
	return &e, nil
}

func (l *logPG) Append(ctx context.Context, e *Event) error {
	if e.ProposalID == uuid.Nil {
		return fmt.Errorf("proposal_id is required")
	}
	e.ID = uuid.New()
	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
		details = b
	}
	return l.pool.QueryRow(ctx, `
		INSERT INTO workflow_event (id, proposal_id, type, actor_id, actor_role, description, details, internal)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		e.ID, e.ProposalID, e.Type, e.ActorID, e.ActorRole, e.Description, details, e.Internal,
	).Scan(&e.CreatedAt)
}

func (l *logPG) ForProposal(ctx context.Context, proposalID uuid.UUID) ([]*Event, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+eventCols+` FROM workflow_event WHERE proposal_id = $1 ORDER BY created_at, id`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (l *logPG) List(ctx context.Context) ([]*Event, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+eventCols+` FROM workflow_event ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
