package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store persists the notification queue. The dispatcher is the only writer;
// read paths must return copies so callers can serialize or inspect a record
// without racing a concurrent status update.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id uuid.UUID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]*Notification, error)
	Stats(ctx context.Context) (map[Status]int, error)
}

// clone deep-copies a notification, detaching the payload map and the
// optional timestamps from the source.
func clone(n *Notification) *Notification {
	out := *n
	if n.Payload != nil {
		out.Payload = make(map[string]string, len(n.Payload))
		for k, v := range n.Payload {
			out.Payload[k] = v
		}
	}
	if n.SentAt != nil {
		sentAt := *n.SentAt
		out.SentAt = &sentAt
	}
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		out.ReadAt = &readAt
	}
	return &out
}

type memStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Notification
	order []uuid.UUID
}

// NewMemStore creates an in-memory Store, used in tests and in deployments
// running without a database.
func NewMemStore() Store {
	return &memStore{byID: make(map[uuid.UUID]*Notification)}
}

func (s *memStore) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[n.ID]; exists {
		return fmt.Errorf("notification %q already exists", n.ID)
	}
	s.byID[n.ID] = clone(n)
	s.order = append(s.order, n.ID)
	return nil
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return clone(n), nil
}

func (s *memStore) Update(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[n.ID]; !ok {
		return fmt.Errorf("notification %q not found", n.ID)
	}
	s.byID[n.ID] = clone(n)
	return nil
}

func (s *memStore) ListByRecipient(_ context.Context, recipient string, limit int) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Notification
	for _, id := range s.order {
		n := s.byID[id]
		if n.Recipient != recipient {
			continue
		}
		result = append(result, clone(n))
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *memStore) Stats(_ context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[Status]int)
	for _, n := range s.byID {
		stats[n.Status]++
	}
	return stats, nil
}
