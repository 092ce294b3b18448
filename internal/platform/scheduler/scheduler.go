// Package scheduler runs the periodic deadline sweep over open proposals.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/event"
	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
	"github.com/clinicflow/clinicflow/internal/domain/workflow"
)

// OpenProposalLister returns every proposal still in a non-terminal status.
type OpenProposalLister interface {
	ListOpen(ctx context.Context) ([]*proposal.Proposal, error)
}

// RoleNotifier is the slice of the notification dispatcher the sweeper uses.
type RoleNotifier interface {
	NotifyRole(ctx context.Context, p *proposal.Proposal, templateID string, role user.Role) error
}

// Sweeper scans open proposals against their step deadlines, records a
// deadline event for each breach, and notifies the roles named by the
// workflow's deadline policy. A breach is recorded once per proposal and
// step; subsequent sweeps skip it.
type Sweeper struct {
	configs   workflow.ConfigStore
	proposals OpenProposalLister
	events    event.Log
	notifier  RoleNotifier
	logger    zerolog.Logger
	now       func() time.Time

	cron  *cron.Cron
	entry cron.EntryID
}

// NewSweeper constructs a Sweeper. Call Start to schedule it.
func NewSweeper(configs workflow.ConfigStore, proposals OpenProposalLister, events event.Log, notifier RoleNotifier, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		configs:   configs,
		proposals: proposals,
		events:    events,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the sweeper's time source.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Start schedules the sweep on the given cron spec (e.g. "@every 15m").
func (s *Sweeper) Start(spec string) error {
	s.cron = cron.New()
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("deadline sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule deadline sweep: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.logger.Info().Str("spec", spec).Msg("deadline sweeper started")
	return nil
}

// Stop halts the cron schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one pass over all open proposals under every active workflow
// configuration and returns the number of new breaches recorded.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cfgs, err := s.configs.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list workflow configurations: %w", err)
	}
	open, err := s.proposals.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open proposals: %w", err)
	}

	breaches := 0
	for _, cfg := range cfgs {
		for _, p := range open {
			breached, err := s.checkProposal(ctx, cfg, p)
			if err != nil {
				s.logger.Error().Err(err).
					Str("proposal_id", p.ID.String()).
					Str("workflow_id", cfg.ID).
					Msg("deadline check failed")
				continue
			}
			if breached {
				breaches++
			}
		}
	}
	return breaches, nil
}

func (s *Sweeper) checkProposal(ctx context.Context, cfg *workflow.Configuration, p *proposal.Proposal) (bool, error) {
	step, ok := cfg.StepForStatus(p.Status)
	if !ok || step.DeadlineHours <= 0 {
		return false, nil
	}

	history, err := s.events.ForProposal(ctx, p.ID)
	if err != nil {
		return false, err
	}

	entered := s.enteredStepAt(history, p)
	deadline := entered.Add(time.Duration(step.DeadlineHours) * time.Hour)
	if s.now().Before(deadline) {
		return false, nil
	}
	if alreadyRecorded(history, step.ID) {
		return false, nil
	}

	ev := &event.Event{
		ID:         uuid.New(),
		ProposalID: p.ID,
		Type:       event.TypeDeadline,
		Description: fmt.Sprintf("proposal overdue in step %q (deadline %dh, entered %s)",
			step.Name, step.DeadlineHours, entered.Format(time.RFC3339)),
		Details: map[string]string{
			"step_id":        step.ID,
			"deadline_hours": fmt.Sprintf("%d", step.DeadlineHours),
			"entered_at":     entered.Format(time.RFC3339),
		},
		Internal: true,
	}
	if cfg.Deadline.ReassignRole != "" {
		ev.Details["reassign_to_role"] = string(cfg.Deadline.ReassignRole)
	}
	if err := s.events.Append(ctx, ev); err != nil {
		return false, fmt.Errorf("append deadline event: %w", err)
	}

	template := cfg.Deadline.Template
	if template == "" {
		template = "proposal-overdue"
	}
	for _, role := range cfg.Deadline.NotifyRoles {
		if err := s.notifier.NotifyRole(ctx, p, template, role); err != nil {
			s.logger.Error().Err(err).
				Str("proposal_id", p.ID.String()).
				Str("role", string(role)).
				Msg("deadline notification failed")
		}
	}

	s.logger.Warn().
		Str("proposal_id", p.ID.String()).
		Str("step_id", step.ID).
		Time("deadline", deadline).
		Msg("proposal deadline breached")
	return true, nil
}

// enteredStepAt finds when the proposal reached its current status: the
// newest status_change event landing on that status, falling back to the
// proposal's own timestamps for statuses with no recorded transition.
func (s *Sweeper) enteredStepAt(history []*event.Event, p *proposal.Proposal) time.Time {
	for i := len(history) - 1; i >= 0; i-- {
		ev := history[i]
		if ev.Type == event.TypeStatusChange && ev.Details["to_status"] == string(p.Status) {
			return ev.CreatedAt
		}
	}
	if p.SubmittedAt != nil && p.Status != proposal.StatusDraft {
		return *p.SubmittedAt
	}
	return p.UpdatedAt
}

func alreadyRecorded(history []*event.Event, stepID string) bool {
	for _, ev := range history {
		if ev.Type == event.TypeDeadline && ev.Details["step_id"] == stepID {
			return true
		}
	}
	return false
}
