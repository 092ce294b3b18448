package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/domain/user"
)

// Comment is an immutable note attached to a workflow step.
type Comment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProposalID  uuid.UUID `db:"proposal_id" json:"proposal_id"`
	StepID      string    `db:"step_id" json:"step_id"`
	AuthorID    uuid.UUID `db:"author_id" json:"author_id"`
	AuthorRole  user.Role `db:"author_role" json:"author_role"`
	Content     string    `db:"content" json:"content"`
	Internal    bool      `db:"internal" json:"internal"`
	Attachments []string  `db:"attachments" json:"attachments,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CommentStore appends and lists comments. There is no update or delete.
type CommentStore interface {
	Add(ctx context.Context, c *Comment) error
	ForProposal(ctx context.Context, proposalID uuid.UUID) ([]*Comment, error)
}

type commentStoreMem struct {
	mu       sync.RWMutex
	comments []*Comment
}

func NewCommentStoreMem() CommentStore {
	return &commentStoreMem{}
}

func (s *commentStoreMem) Add(_ context.Context, c *Comment) error {
	if c.ProposalID == uuid.Nil {
		return fmt.Errorf("proposal_id is required")
	}
	if c.Content == "" {
		return fmt.Errorf("content is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	cp := *c
	s.comments = append(s.comments, &cp)
	return nil
}

func (s *commentStoreMem) ForProposal(_ context.Context, proposalID uuid.UUID) ([]*Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Comment
	for _, c := range s.comments {
		if c.ProposalID == proposalID {
			out = append(out, c)
		}
	}
	return out, nil
}
