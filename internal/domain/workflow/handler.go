package workflow

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type Handler struct {
	engine *Engine
	store  ConfigStore
}

func NewHandler(engine *Engine, store ConfigStore) *Handler {
	return &Handler{engine: engine, store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("therapist", "coordinator", "admin")

	read := api.Group("", role)
	read.GET("/workflows", h.ListConfigurations)
	read.GET("/workflows/:id", h.GetConfiguration)
	read.GET("/proposals/:id/workflow/steps", h.Steps)
	read.GET("/proposals/:id/workflow/transitions", h.AvailableTransitions)
	read.GET("/proposals/:id/events", h.Events)
	read.GET("/proposals/:id/comments", h.Comments)

	write := api.Group("", role)
	write.POST("/proposals/:id/workflow/transitions/:transitionId", h.ApplyTransition)
	write.POST("/proposals/:id/workflow/escalate", h.Escalate)
	write.POST("/proposals/:id/comments", h.AddComment)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/workflows", h.SaveConfiguration)
	admin.PUT("/workflows/:id", h.SaveConfiguration)
	admin.DELETE("/workflows/:id", h.DeleteConfiguration)
}

// actingUser builds the acting user from the authenticated request context.
// Only the id and role matter to the engine.
func actingUser(c echo.Context) *user.User {
	ctx := c.Request().Context()
	id, _ := uuid.Parse(auth.UserIDFromContext(ctx))
	u := &user.User{ID: id, Active: true}
	for _, r := range auth.RolesFromContext(ctx) {
		if user.ValidRoles[user.Role(r)] {
			u.Role = user.Role(r)
			break
		}
	}
	return u
}

// workflowID resolves the workflow a request addresses, defaulting to the
// proposal-approval pipeline.
func workflowID(c echo.Context) string {
	if id := c.QueryParam("workflow_id"); id != "" {
		return id
	}
	return DefaultWorkflowID
}

// httpStatus maps engine errors onto HTTP statuses.
func httpStatus(err error) int {
	var nf *NotFoundError
	var az *AuthorizationError
	var pc *PreconditionError
	var vd *ValidationError
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &az):
		return http.StatusForbidden
	case errors.As(err, &pc):
		return http.StatusUnprocessableEntity
	case errors.As(err, &vd):
		return http.StatusBadRequest
	case errors.Is(err, proposal.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// transitionResult is the tagged result body for transition attempts.
type transitionResult struct {
	Success  bool               `json:"success"`
	Proposal *proposal.Proposal `json:"proposal,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// -- Configuration CRUD --

func (h *Handler) ListConfigurations(c echo.Context) error {
	configs, err := h.store.ListActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, configs)
}

func (h *Handler) GetConfiguration(c echo.Context) error {
	cfg, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) SaveConfiguration(c echo.Context) error {
	var cfg Configuration
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if id := c.Param("id"); id != "" {
		cfg.ID = id
	}
	if err := h.store.Save(c.Request().Context(), &cfg); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) DeleteConfiguration(c echo.Context) error {
	existed, err := h.store.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !existed {
		return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Engine queries --

func (h *Handler) Steps(c echo.Context) error {
	p, err := h.proposalFromParam(c)
	if err != nil {
		return err
	}
	steps, err := h.engine.StepsWithStatus(c.Request().Context(), workflowID(c), p)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, steps)
}

func (h *Handler) AvailableTransitions(c echo.Context) error {
	p, err := h.proposalFromParam(c)
	if err != nil {
		return err
	}
	transitions, err := h.engine.AvailableTransitions(c.Request().Context(), workflowID(c), p, actingUser(c))
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, transitions)
}

func (h *Handler) Events(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	events, err := h.engine.Events(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (h *Handler) Comments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	comments, err := h.engine.Comments(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, comments)
}

// -- Engine commands --

type applyRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) ApplyTransition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req applyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.engine.ApplyTransition(c.Request().Context(), workflowID(c), id, actingUser(c), c.Param("transitionId"), req.Notes)
	if err != nil {
		return c.JSON(httpStatus(err), transitionResult{Success: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, transitionResult{Success: true, Proposal: updated})
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Escalate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req escalateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.engine.Escalate(c.Request().Context(), workflowID(c), id, actingUser(c), req.Reason); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) AddComment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var cm Comment
	if err := c.Bind(&cm); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cm.ProposalID = id
	if err := h.engine.AddComment(c.Request().Context(), workflowID(c), &cm, actingUser(c)); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, cm)
}

func (h *Handler) proposalFromParam(c echo.Context) (*proposal.Proposal, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.engine.proposals.GetByID(c.Request().Context(), id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "proposal not found")
	}
	return p, nil
}
