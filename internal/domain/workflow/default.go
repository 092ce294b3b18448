package workflow

import (
	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
)

// DefaultWorkflowID is the workflow id the proposal pipeline runs under
// unless a configuration overrides it.
const DefaultWorkflowID = "proposal-approval"

// DefaultConfiguration returns the six-step default approval pipeline.
// Rejected proposals sit back at coordinator review so the annotation trail
// stays visible there; cancelled is a valid status but the default
// transition set never produces it — a cancel transition has to be
// configured explicitly.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		ID:          DefaultWorkflowID,
		Name:        "Therapeutic Proposal Approval",
		Description: "Default multi-role review pipeline for treatment-plan proposals",
		Version:     1,
		Active:      true,
		Steps: []Step{
			{
				ID: "draft", Name: "Draft", Order: 1, Required: true,
				Role: user.RoleTherapist, Statuses: []proposal.Status{proposal.StatusDraft},
			},
			{
				ID: "submission", Name: "Submission", Order: 2, Required: true,
				Role: user.RoleTherapist, Statuses: []proposal.Status{proposal.StatusSubmitted},
				DeadlineHours: 24,
			},
			{
				ID: "coordinator-review", Name: "Coordinator Review", Order: 3, Required: true,
				Role:          user.RoleCoordinator,
				Statuses:      []proposal.Status{proposal.StatusUnderReview, proposal.StatusRejected},
				DeadlineHours: 72,
			},
			{
				ID: "budget-approval", Name: "Budget Approval", Order: 4,
				Skippable: true, Role: user.RoleAdmin, DeadlineHours: 48,
			},
			{
				ID: "final-approval", Name: "Final Approval", Order: 5, Required: true,
				Role: user.RoleAdmin, Statuses: []proposal.Status{proposal.StatusApproved},
				DeadlineHours: 48,
			},
			{
				ID: "implementation", Name: "Implementation", Order: 6, Required: true,
				Role: user.RoleTherapist, Statuses: []proposal.Status{proposal.StatusCompleted},
			},
		},
		Transitions: []Transition{
			{
				ID: "draft-to-submitted", Name: "Submit for review",
				FromStatus: proposal.StatusDraft, ToStatus: proposal.StatusSubmitted,
				Trigger: TriggerManual, RequiredRole: user.RoleTherapist,
				Conditions: []Condition{
					{
						Field: "total_sessions", Operator: OpGreaterThan, Value: "0",
						Description: "proposal must include at least one session",
					},
				},
				Actions: []Action{
					{Kind: ActionNotify, Params: map[string]string{"template": "proposal-submitted"}},
				},
				NotificationTemplate: "proposal-submitted",
			},
			{
				ID: "submitted-to-review", Name: "Begin coordinator review",
				FromStatus: proposal.StatusSubmitted, ToStatus: proposal.StatusUnderReview,
				Trigger: TriggerAutomatic,
			},
			{
				ID: "review-to-approved", Name: "Approve proposal",
				FromStatus: proposal.StatusUnderReview, ToStatus: proposal.StatusApproved,
				Trigger: TriggerManual, RequiredRole: user.RoleAdmin, RequiresApproval: true,
				Actions: []Action{
					{Kind: ActionNotify, Params: map[string]string{"template": "proposal-approved"}},
				},
				NotificationTemplate: "proposal-approved",
			},
			{
				ID: "review-to-rejected", Name: "Reject proposal",
				FromStatus: proposal.StatusUnderReview, ToStatus: proposal.StatusRejected,
				Trigger: TriggerManual, RequiredRole: user.RoleCoordinator,
				Actions: []Action{
					{Kind: ActionNotify, Params: map[string]string{"template": "proposal-rejected"}},
				},
				NotificationTemplate: "proposal-rejected",
			},
			{
				ID: "approved-to-completed", Name: "Mark implemented",
				FromStatus: proposal.StatusApproved, ToStatus: proposal.StatusCompleted,
				Trigger: TriggerManual, RequiredRole: user.RoleTherapist,
				NotificationTemplate: "proposal-completed",
			},
		},
		Permissions: Permissions{
			CanView:     []user.Role{user.RoleTherapist, user.RoleCoordinator, user.RoleAdmin},
			CanEdit:     []user.Role{user.RoleTherapist, user.RoleCoordinator, user.RoleAdmin},
			CanApprove:  []user.Role{user.RoleAdmin},
			CanReject:   []user.Role{user.RoleCoordinator, user.RoleAdmin},
			CanEscalate: []user.Role{user.RoleCoordinator, user.RoleAdmin},
		},
		Deadline: DeadlinePolicy{
			NotifyRoles: []user.Role{user.RoleCoordinator},
			Template:    "proposal-overdue",
		},
	}
}
