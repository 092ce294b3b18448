package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// logMem is an in-memory Log, ordered by append. Used in tests and as the
// fallback when the service runs without a database.
type logMem struct {
	mu     sync.RWMutex
	events []*Event
}

func NewLogMem() Log {
	return &logMem{}
}

// copyEvent detaches an event from the log, including its details map.
func copyEvent(e *Event) *Event {
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	return &cp
}

func (l *logMem) Append(_ context.Context, e *Event) error {
	if e.ProposalID == uuid.Nil {
		return fmt.Errorf("proposal_id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := copyEvent(e)
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now().UTC()
	l.events = append(l.events, cp)
	e.ID = cp.ID
	e.CreatedAt = cp.CreatedAt
	return nil
}

// Read paths return copies so a caller cannot edit the log in place.
func (l *logMem) ForProposal(_ context.Context, proposalID uuid.UUID) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Event
	for _, e := range l.events {
		if e.ProposalID == proposalID {
			out = append(out, copyEvent(e))
		}
	}
	return out, nil
}

func (l *logMem) List(_ context.Context) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Event, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, copyEvent(e))
	}
	return out, nil
}
