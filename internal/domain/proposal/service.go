package proposal

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	proposals Repository
}

func NewService(r Repository) *Service {
	return &Service{proposals: r}
}

var validPriorities = map[Priority]bool{
	PriorityLow: true, PriorityNormal: true, PriorityHigh: true, PriorityUrgent: true,
}

// CreateDraft creates a proposal in draft status. Every proposal starts as a
// draft authored by a therapist; later status changes go through the workflow
// engine only.
func (s *Service) CreateDraft(ctx context.Context, p *Proposal) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.TherapistID == uuid.Nil {
		return fmt.Errorf("therapist_id is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}
	if !validPriorities[p.Priority] {
		return fmt.Errorf("invalid priority: %s", p.Priority)
	}
	p.Status = StatusDraft
	return s.proposals.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return s.proposals.GetByID(ctx, id)
}

// UpdateDraft saves edits to a proposal's own fields. Only drafts are
// editable this way; anything past submission changes through transitions.
func (s *Service) UpdateDraft(ctx context.Context, p *Proposal) error {
	current, err := s.proposals.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.Status != StatusDraft {
		return fmt.Errorf("proposal %s is %s; only drafts are editable", p.ID, current.Status)
	}
	p.Status = StatusDraft
	return s.proposals.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Proposal, int, error) {
	return s.proposals.List(ctx, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Proposal, int, error) {
	if !ValidStatuses[status] {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.proposals.ListByStatus(ctx, status, limit, offset)
}

func (s *Service) ListByTherapist(ctx context.Context, therapistID uuid.UUID, limit, offset int) ([]*Proposal, int, error) {
	return s.proposals.ListByTherapist(ctx, therapistID, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Proposal, int, error) {
	return s.proposals.ListByPatient(ctx, patientID, limit, offset)
}

// AddService attaches a service line and refreshes the proposal totals.
func (s *Service) AddService(ctx context.Context, line *ProposalService) error {
	if line.ProposalID == uuid.Nil {
		return fmt.Errorf("proposal_id is required")
	}
	if strings.TrimSpace(line.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if line.Sessions <= 0 {
		return fmt.Errorf("sessions must be positive")
	}
	p, err := s.proposals.GetByID(ctx, line.ProposalID)
	if err != nil {
		return err
	}
	if p.Status != StatusDraft {
		return fmt.Errorf("proposal %s is %s; services can only be added to drafts", p.ID, p.Status)
	}
	if err := s.proposals.AddService(ctx, line); err != nil {
		return err
	}
	p.TotalSessions += line.Sessions
	p.TotalDurationMin += line.Sessions * line.DurationMin
	p.TotalCostCents += int64(line.Sessions) * line.CostCents
	return s.proposals.Update(ctx, p)
}

func (s *Service) GetServices(ctx context.Context, proposalID uuid.UUID) ([]*ProposalService, error) {
	return s.proposals.GetServices(ctx, proposalID)
}
