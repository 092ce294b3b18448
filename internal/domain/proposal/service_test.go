package proposal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// repoMem is an in-memory Repository for service tests.
type repoMem struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]*Proposal
	services  map[uuid.UUID][]*ProposalService
}

func newRepoMem() *repoMem {
	return &repoMem{
		proposals: make(map[uuid.UUID]*Proposal),
		services:  make(map[uuid.UUID][]*ProposalService),
	}
}

func (r *repoMem) Create(_ context.Context, p *Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.VersionID = 1
	cp := *p
	r.proposals[p.ID] = &cp
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return nil, errors.New("proposal not found")
	}
	cp := *p
	return &cp, nil
}

func (r *repoMem) Update(_ context.Context, p *Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.proposals[p.ID]
	if !ok {
		return errors.New("proposal not found")
	}
	if stored.VersionID != p.VersionID {
		return ErrVersionConflict
	}
	cp := *p
	cp.VersionID++
	r.proposals[p.ID] = &cp
	p.VersionID = cp.VersionID
	return nil
}

func (r *repoMem) List(_ context.Context, limit, offset int) ([]*Proposal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*Proposal
	for _, p := range r.proposals {
		all = append(all, p)
	}
	return all, len(all), nil
}

func (r *repoMem) ListByStatus(_ context.Context, status Status, limit, offset int) ([]*Proposal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Proposal
	for _, p := range r.proposals {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *repoMem) ListByTherapist(_ context.Context, therapistID uuid.UUID, limit, offset int) ([]*Proposal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Proposal
	for _, p := range r.proposals {
		if p.TherapistID == therapistID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *repoMem) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Proposal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Proposal
	for _, p := range r.proposals {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (r *repoMem) ListOpen(_ context.Context) ([]*Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Proposal
	for _, p := range r.proposals {
		if !p.Status.IsTerminal() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *repoMem) AddService(_ context.Context, s *ProposalService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.services[s.ProposalID] = append(r.services[s.ProposalID], &cp)
	return nil
}

func (r *repoMem) GetServices(_ context.Context, proposalID uuid.UUID) ([]*ProposalService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.services[proposalID], nil
}

func validDraft() *Proposal {
	return &Proposal{
		PatientID:   uuid.New(),
		TherapistID: uuid.New(),
		Title:       "Occupational therapy block",
	}
}

func TestCreateDraft(t *testing.T) {
	svc := NewService(newRepoMem())
	p := validDraft()

	if err := svc.CreateDraft(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusDraft {
		t.Errorf("expected draft status, got %s", p.Status)
	}
	if p.Priority != PriorityNormal {
		t.Errorf("expected default priority normal, got %s", p.Priority)
	}
	if p.VersionID != 1 {
		t.Errorf("expected version 1, got %d", p.VersionID)
	}
}

func TestCreateDraft_ForcesDraftStatus(t *testing.T) {
	svc := NewService(newRepoMem())
	p := validDraft()
	p.Status = StatusApproved

	if err := svc.CreateDraft(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusDraft {
		t.Errorf("expected status forced to draft, got %s", p.Status)
	}
}

func TestCreateDraft_Validation(t *testing.T) {
	svc := NewService(newRepoMem())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Proposal)
		want   string
	}{
		{"missing patient", func(p *Proposal) { p.PatientID = uuid.Nil }, "patient_id"},
		{"missing therapist", func(p *Proposal) { p.TherapistID = uuid.Nil }, "therapist_id"},
		{"blank title", func(p *Proposal) { p.Title = "   " }, "title"},
		{"bad priority", func(p *Proposal) { p.Priority = "critical" }, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validDraft()
			tt.mutate(p)
			err := svc.CreateDraft(ctx, p)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestUpdateDraft(t *testing.T) {
	repo := newRepoMem()
	svc := NewService(repo)
	ctx := context.Background()

	p := validDraft()
	if err := svc.CreateDraft(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.Title = "Revised OT block"
	if err := svc.UpdateDraft(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := svc.Get(ctx, p.ID)
	if got.Title != "Revised OT block" {
		t.Errorf("expected updated title, got %q", got.Title)
	}
}

func TestUpdateDraft_OnlyDrafts(t *testing.T) {
	repo := newRepoMem()
	svc := NewService(repo)
	ctx := context.Background()

	p := validDraft()
	if err := svc.CreateDraft(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo.mu.Lock()
	repo.proposals[p.ID].Status = StatusSubmitted
	repo.mu.Unlock()

	if err := svc.UpdateDraft(ctx, p); err == nil {
		t.Fatal("expected error editing a submitted proposal")
	}
}

func TestAddService_UpdatesTotals(t *testing.T) {
	svc := NewService(newRepoMem())
	ctx := context.Background()

	p := validDraft()
	if err := svc.CreateDraft(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := &ProposalService{
		ProposalID:  p.ID,
		Name:        "Individual session",
		Sessions:    8,
		DurationMin: 50,
		CostCents:   9000,
	}
	if err := svc.AddService(ctx, line); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := svc.Get(ctx, p.ID)
	if got.TotalSessions != 8 {
		t.Errorf("expected 8 sessions, got %d", got.TotalSessions)
	}
	if got.TotalDurationMin != 400 {
		t.Errorf("expected 400 minutes, got %d", got.TotalDurationMin)
	}
	if got.TotalCostCents != 72000 {
		t.Errorf("expected 72000 cents, got %d", got.TotalCostCents)
	}

	lines, _ := svc.GetServices(ctx, p.ID)
	if len(lines) != 1 {
		t.Errorf("expected 1 service line, got %d", len(lines))
	}
}

func TestAddService_Validation(t *testing.T) {
	svc := NewService(newRepoMem())
	ctx := context.Background()
	p := validDraft()
	if err := svc.CreateDraft(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.AddService(ctx, &ProposalService{ProposalID: p.ID, Name: "x", Sessions: 0}); err == nil {
		t.Error("expected error for zero sessions")
	}
	if err := svc.AddService(ctx, &ProposalService{ProposalID: p.ID, Name: " ", Sessions: 2}); err == nil {
		t.Error("expected error for blank name")
	}
	if err := svc.AddService(ctx, &ProposalService{Name: "x", Sessions: 2}); err == nil {
		t.Error("expected error without proposal_id")
	}
}

func TestAddService_OnlyDrafts(t *testing.T) {
	repo := newRepoMem()
	svc := NewService(repo)
	ctx := context.Background()
	p := validDraft()
	if err := svc.CreateDraft(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo.mu.Lock()
	repo.proposals[p.ID].Status = StatusUnderReview
	repo.mu.Unlock()

	line := &ProposalService{ProposalID: p.ID, Name: "Group session", Sessions: 4}
	if err := svc.AddService(ctx, line); err == nil {
		t.Fatal("expected error adding a service to a non-draft proposal")
	}
}

func TestListByStatus_InvalidStatus(t *testing.T) {
	svc := NewService(newRepoMem())
	if _, _, err := svc.ListByStatus(context.Background(), "limbo", 10, 0); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestRepoMem_VersionConflict(t *testing.T) {
	repo := newRepoMem()
	ctx := context.Background()
	p := validDraft()
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, _ := repo.GetByID(ctx, p.ID)
	second, _ := repo.GetByID(ctx, p.ID)

	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Update(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale writer, got %v", err)
	}
}
