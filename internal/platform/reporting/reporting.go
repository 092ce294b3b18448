// Package reporting computes workflow metrics from live proposal and event
// data and exposes them over HTTP. Numbers come from the stores the engine
// writes to, never from canned figures.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/domain/event"
	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

// ProposalLister is the slice of the proposal repository the reporter
// reads. The signatures mirror proposal.Repository so the repository
// satisfies it directly.
type ProposalLister interface {
	List(ctx context.Context, limit, offset int) ([]*proposal.Proposal, int, error)
	ListOpen(ctx context.Context) ([]*proposal.Proposal, error)
}

// listChunk bounds each repository page while scanning the full set.
const listChunk = 500

// Metrics is a point-in-time summary of workflow activity.
type Metrics struct {
	GeneratedAt       time.Time               `json:"generated_at"`
	TotalProposals    int                     `json:"total_proposals"`
	OpenProposals     int                     `json:"open_proposals"`
	ByStatus          map[proposal.Status]int `json:"by_status"`
	CompletionRate    float64                 `json:"completion_rate"`
	RejectionRate     float64                 `json:"rejection_rate"`
	Escalations       int                     `json:"escalations"`
	DeadlineBreaches  int                     `json:"deadline_breaches"`
	AvgApprovalHours  float64                 `json:"avg_approval_hours"`
	AvgDecisionHours  float64                 `json:"avg_decision_hours"`
	TransitionsByUser map[string]int          `json:"transitions_by_user"`
	EventsByType      map[event.Type]int      `json:"events_by_type"`
}

// Reporter derives Metrics from the proposal repository and the event log.
type Reporter struct {
	proposals ProposalLister
	events    event.Log
}

// NewReporter creates a Reporter over the given stores.
func NewReporter(proposals ProposalLister, events event.Log) *Reporter {
	return &Reporter{proposals: proposals, events: events}
}

// Summarize walks every proposal and event and aggregates the workflow
// metrics. Rates are fractions in [0,1] over decided proposals; duration
// averages span submission to the terminal decision event.
func (r *Reporter) Summarize(ctx context.Context) (*Metrics, error) {
	m := &Metrics{
		GeneratedAt:       time.Now().UTC(),
		ByStatus:          make(map[proposal.Status]int),
		TransitionsByUser: make(map[string]int),
		EventsByType:      make(map[event.Type]int),
	}

	proposals, err := r.allProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}

	submittedAt := make(map[uuid.UUID]time.Time)
	m.TotalProposals = len(proposals)
	for _, p := range proposals {
		m.ByStatus[p.Status]++
		if !p.Status.IsTerminal() {
			m.OpenProposals++
		}
		if p.SubmittedAt != nil {
			submittedAt[p.ID] = *p.SubmittedAt
		}
	}

	events, err := r.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var approvalHours, decisionHours float64
	var approvals, decisions int
	for _, ev := range events {
		m.EventsByType[ev.Type]++
		switch ev.Type {
		case event.TypeStatusChange:
			m.TransitionsByUser[ev.ActorID.String()]++
			to := proposal.Status(ev.Details["to_status"])
			start, ok := submittedAt[ev.ProposalID]
			if !ok {
				continue
			}
			elapsed := ev.CreatedAt.Sub(start).Hours()
			if elapsed < 0 {
				continue
			}
			if to == proposal.StatusApproved {
				approvalHours += elapsed
				approvals++
			}
			if to.IsTerminal() || to == proposal.StatusApproved {
				decisionHours += elapsed
				decisions++
			}
		case event.TypeEscalation:
			m.Escalations++
		case event.TypeDeadline:
			m.DeadlineBreaches++
		}
	}

	completed := m.ByStatus[proposal.StatusCompleted]
	rejected := m.ByStatus[proposal.StatusRejected]
	decided := completed + rejected + m.ByStatus[proposal.StatusCancelled] + m.ByStatus[proposal.StatusApproved]
	if decided > 0 {
		m.CompletionRate = float64(completed+m.ByStatus[proposal.StatusApproved]) / float64(decided)
		m.RejectionRate = float64(rejected) / float64(decided)
	}
	if approvals > 0 {
		m.AvgApprovalHours = approvalHours / float64(approvals)
	}
	if decisions > 0 {
		m.AvgDecisionHours = decisionHours / float64(decisions)
	}
	return m, nil
}

func (r *Reporter) allProposals(ctx context.Context) ([]*proposal.Proposal, error) {
	var all []*proposal.Proposal
	for offset := 0; ; offset += listChunk {
		page, _, err := r.proposals.List(ctx, listChunk, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < listChunk {
			return all, nil
		}
	}
}

// Handler provides HTTP handlers for the metrics API.
type Handler struct {
	reporter *Reporter
}

// NewHandler creates a new reporting handler.
func NewHandler(reporter *Reporter) *Handler {
	return &Handler{reporter: reporter}
}

// RegisterRoutes registers the metrics API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	metricsGroup := api.Group("/metrics", auth.RequireRole("admin", "coordinator"))
	metricsGroup.GET("/workflow", h.WorkflowMetrics)
}

// WorkflowMetrics computes and returns the current workflow metrics.
func (h *Handler) WorkflowMetrics(c echo.Context) error {
	m, err := h.reporter.Summarize(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("summarize failed: %v", err))
	}
	return c.JSON(http.StatusOK, m)
}
