package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type commentStorePG struct{ pool *pgxpool.Pool }

func NewCommentStorePG(pool *pgxpool.Pool) CommentStore {
	return &commentStorePG{pool: pool}
}

func (s *commentStorePG) Add(ctx context.Context, c *Comment) error {
	if c.ProposalID == uuid.Nil {
		return fmt.Errorf("proposal_id is required")
	}
	if c.Content == "" {
		return fmt.Errorf("content is required")
	}
	c.ID = uuid.New()
	return s.pool.QueryRow(ctx, `
		INSERT INTO workflow_comment (id, proposal_id, step_id, author_id, author_role, content, internal, attachments)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		c.ID, c.ProposalID, c.StepID, c.AuthorID, c.AuthorRole, c.Content, c.Internal, c.Attachments,
	).Scan(&c.CreatedAt)
}

func (s *commentStorePG) ForProposal(ctx context.Context, proposalID uuid.UUID) ([]*Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, proposal_id, step_id, author_id, author_role, content, internal, attachments, created_at
		FROM workflow_comment WHERE proposal_id = $1 ORDER BY created_at, id`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ProposalID, &c.StepID, &c.AuthorID, &c.AuthorRole,
			&c.Content, &c.Internal, &c.Attachments, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
