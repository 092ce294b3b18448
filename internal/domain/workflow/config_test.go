package workflow

import (
	"errors"
	"testing"

	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
)

func TestDefaultConfiguration_Valid(t *testing.T) {
	cfg := DefaultConfiguration()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}
	if cfg.ID != DefaultWorkflowID {
		t.Errorf("expected id %q, got %q", DefaultWorkflowID, cfg.ID)
	}
	if !cfg.Active {
		t.Error("expected default configuration active")
	}
	if len(cfg.Steps) != 6 {
		t.Errorf("expected 6 steps, got %d", len(cfg.Steps))
	}
}

func TestStepForStatus(t *testing.T) {
	cfg := DefaultConfiguration()

	step, ok := cfg.StepForStatus(proposal.StatusUnderReview)
	if !ok || step.ID != "coordinator-review" {
		t.Errorf("expected coordinator-review, got %v %v", step, ok)
	}

	// Rejected proposals sit back at coordinator review.
	step, ok = cfg.StepForStatus(proposal.StatusRejected)
	if !ok || step.ID != "coordinator-review" {
		t.Errorf("expected rejected to map to coordinator-review, got %v %v", step, ok)
	}

	if _, ok := cfg.StepForStatus(proposal.StatusCancelled); ok {
		t.Error("expected cancelled to map no step in the default pipeline")
	}
}

func TestStepAtOrder(t *testing.T) {
	cfg := DefaultConfiguration()
	step, ok := cfg.StepAtOrder(4)
	if !ok || step.ID != "budget-approval" {
		t.Errorf("expected budget-approval at order 4, got %v %v", step, ok)
	}
	if _, ok := cfg.StepAtOrder(7); ok {
		t.Error("expected no step at order 7")
	}
}

func TestTransitionByID(t *testing.T) {
	cfg := DefaultConfiguration()
	tr, ok := cfg.TransitionByID("review-to-approved")
	if !ok || tr.ToStatus != proposal.StatusApproved {
		t.Errorf("unexpected transition: %v %v", tr, ok)
	}
	if _, ok := cfg.TransitionByID("nope"); ok {
		t.Error("expected unknown transition to miss")
	}
}

func validateError(t *testing.T, cfg *Configuration) *ValidationError {
	t.Helper()
	err := cfg.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return ve
}

func TestValidate_MissingID(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.ID = ""
	validateError(t, cfg)
}

func TestValidate_NoSteps(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Steps = nil
	validateError(t, cfg)
}

func TestValidate_DuplicateOrder(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Steps[1].Order = 1
	validateError(t, cfg)
}

func TestValidate_NonContiguousOrder(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Steps[5].Order = 9
	validateError(t, cfg)
}

func TestValidate_UnknownStepStatus(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Steps[0].Statuses = []proposal.Status{"limbo"}
	validateError(t, cfg)
}

func TestValidate_TransitionUnknownStatus(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Transitions[0].FromStatus = "limbo"
	validateError(t, cfg)
}

func TestValidate_TransitionToUnmappedStatus(t *testing.T) {
	cfg := DefaultConfiguration()
	// Cancelled is a legal status but no default step maps it.
	cfg.Transitions[0].ToStatus = proposal.StatusCancelled
	validateError(t, cfg)
}

func TestValidate_TransitionUnknownRole(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Transitions[0].RequiredRole = user.Role("janitor")
	validateError(t, cfg)
}

func TestValidate_TransitionUnknownTrigger(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Transitions[0].Trigger = TriggerKind("psychic")
	validateError(t, cfg)
}

func TestValidate_UnknownConditionOperator(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Transitions[0].Conditions = []Condition{{Field: "status", Operator: "matches"}}
	validateError(t, cfg)
}

func TestValidate_UnknownActionKind(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Transitions[0].Actions = []Action{{Kind: "launch_rocket"}}
	validateError(t, cfg)
}
