// Package notification queues and delivers workflow notifications: template
// rendering, an in-app queue with a read lifecycle, pluggable Email/SMS
// transports, and Echo HTTP handlers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/domain/proposal"
	"github.com/clinicflow/clinicflow/internal/domain/user"
)

// Channel is the delivery channel of a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Status is the delivery state. It advances monotonically
// pending -> sent -> delivered -> read, or to failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Notification is a single queued message.
type Notification struct {
	ID         uuid.UUID         `json:"id"`
	ProposalID uuid.UUID         `json:"proposal_id"`
	Recipient  string            `json:"recipient"`
	Channel    Channel           `json:"channel"`
	Priority   string            `json:"priority"`
	Status     Status            `json:"status"`
	TemplateID string            `json:"template_id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	Payload    map[string]string `json:"payload,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	ReadAt     *time.Time        `json:"read_at,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Sender interfaces
// ---------------------------------------------------------------------------

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ---------------------------------------------------------------------------
// Template engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "proposal-submitted",
			Name:    "Proposal Submitted",
			Subject: "Proposal {{title}} submitted for review",
			Body:    "The proposal {{title}} was submitted by {{actor}} and is awaiting coordinator review.",
			Channel: ChannelInApp,
		},
		{
			ID:      "proposal-approved",
			Name:    "Proposal Approved",
			Subject: "Proposal {{title}} approved",
			Body:    "The proposal {{title}} was approved by {{actor}}. Implementation can begin.",
			Channel: ChannelInApp,
		},
		{
			ID:      "proposal-rejected",
			Name:    "Proposal Rejected",
			Subject: "Proposal {{title}} rejected",
			Body:    "The proposal {{title}} was rejected by {{actor}}. See the approval notes for details.",
			Channel: ChannelInApp,
		},
		{
			ID:      "proposal-completed",
			Name:    "Proposal Completed",
			Subject: "Proposal {{title}} implemented",
			Body:    "The treatment plan for proposal {{title}} has been marked implemented by {{actor}}.",
			Channel: ChannelInApp,
		},
		{
			ID:      "proposal-escalated",
			Name:    "Proposal Escalated",
			Subject: "Proposal {{title}} escalated",
			Body:    "The proposal {{title}} was escalated: {{reason}}",
			Channel: ChannelInApp,
		},
		{
			ID:      "proposal-overdue",
			Name:    "Proposal Overdue",
			Subject: "Proposal {{title}} is overdue",
			Body:    "The proposal {{title}} has exceeded the deadline for step {{step}}.",
			Channel: ChannelInApp,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, channel Channel, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, t.Channel, nil
}

// ---------------------------------------------------------------------------
// Mock senders (test doubles)
// ---------------------------------------------------------------------------

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SendSMS records the call and optionally returns an error.
func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// RecipientPolicy decides who a workflow notification addresses. The source
// behavior notifies the acting user; targeting the assignee instead is a
// configuration choice, not a code change.
type RecipientPolicy string

const (
	// RecipientActor addresses the user who triggered the transition.
	RecipientActor RecipientPolicy = "actor"
	// RecipientAssignee addresses the proposal's assignee, falling back to
	// the actor when nobody is assigned.
	RecipientAssignee RecipientPolicy = "assignee"
)

// Dispatcher queues workflow notifications in a Store and drives the
// optional outbound transports. Queued records are authoritative; delivery
// is best-effort.
type Dispatcher struct {
	store       Store
	emailSender EmailSender
	smsSender   SMSSender
	templates   *TemplateEngine
	policy      RecipientPolicy
}

// NewDispatcher constructs a Dispatcher over an in-memory queue. Senders may
// be nil when the deployment has no outbound transport; in-app queueing
// still works.
func NewDispatcher(email EmailSender, sms SMSSender, tpl *TemplateEngine, policy RecipientPolicy) *Dispatcher {
	return NewDispatcherWithStore(NewMemStore(), email, sms, tpl, policy)
}

// NewDispatcherWithStore constructs a Dispatcher over the given Store, used
// by the server to persist the queue in Postgres.
func NewDispatcherWithStore(store Store, email EmailSender, sms SMSSender, tpl *TemplateEngine, policy RecipientPolicy) *Dispatcher {
	if policy == "" {
		policy = RecipientActor
	}
	return &Dispatcher{
		store:       store,
		emailSender: email,
		smsSender:   sms,
		templates:   tpl,
		policy:      policy,
	}
}

func (d *Dispatcher) recipient(p *proposal.Proposal, actor *user.User) string {
	if d.policy == RecipientAssignee && p.AssignedTo != nil {
		return p.AssignedTo.String()
	}
	if actor.Email != "" {
		return actor.Email
	}
	return actor.ID.String()
}

func templateData(p *proposal.Proposal, actorName string) map[string]string {
	name := actorName
	if name == "" {
		name = "a team member"
	}
	return map[string]string{
		"title":  p.Title,
		"status": string(p.Status),
		"actor":  name,
	}
}

// Enqueue renders the template and queues a pending in-app notification for
// the proposal. The returned record has a generated id and timestamp and
// status pending; delivery confirmation is an external concern.
func (d *Dispatcher) Enqueue(ctx context.Context, p *proposal.Proposal, templateID string, actor *user.User) (*Notification, error) {
	return d.enqueue(ctx, p, templateID, d.recipient(p, actor), templateData(p, actor.Name), ChannelInApp)
}

func (d *Dispatcher) enqueue(ctx context.Context, p *proposal.Proposal, templateID, recipient string, data map[string]string, channel Channel) (*Notification, error) {
	subject, body, _, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		ID:         uuid.New(),
		ProposalID: p.ID,
		Recipient:  recipient,
		Channel:    channel,
		Priority:   "normal",
		Status:     StatusPending,
		TemplateID: templateID,
		Subject:    subject,
		Body:       body,
		Payload:    data,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.store.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("queue notification: %w", err)
	}
	return n, nil
}

// Notify implements the workflow engine's notifier contract for the default
// in-app channel.
func (d *Dispatcher) Notify(ctx context.Context, p *proposal.Proposal, templateID string, actor *user.User) error {
	_, err := d.Enqueue(ctx, p, templateID, actor)
	return err
}

// NotifyEmail queues an email-channel notification and immediately attempts
// delivery through the configured transport.
func (d *Dispatcher) NotifyEmail(ctx context.Context, p *proposal.Proposal, templateID string, actor *user.User) error {
	n, err := d.enqueue(ctx, p, templateID, d.recipient(p, actor), templateData(p, actor.Name), ChannelEmail)
	if err != nil {
		return err
	}
	return d.Send(ctx, n.ID)
}

// NotifyRole queues an in-app notification addressed to a role's shared
// queue, used by escalation and deadline sweeps.
func (d *Dispatcher) NotifyRole(ctx context.Context, p *proposal.Proposal, templateID string, role user.Role) error {
	data := templateData(p, "")
	_, err := d.enqueue(ctx, p, templateID, "role:"+string(role), data, ChannelInApp)
	return err
}

// Send attempts delivery of a queued notification through its channel's
// transport and advances the status to sent or failed. In-app notifications
// are sent by definition once queued.
func (d *Dispatcher) Send(ctx context.Context, id uuid.UUID) error {
	n, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}

	var sendErr error
	switch n.Channel {
	case ChannelInApp:
		// Nothing to transport; the queue record is the delivery.
	case ChannelEmail:
		if d.emailSender == nil {
			sendErr = errors.New("no email sender configured")
		} else {
			sendErr = d.emailSender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
		}
	case ChannelSMS:
		if d.smsSender == nil {
			sendErr = errors.New("no sms sender configured")
		} else {
			sendErr = d.smsSender.SendSMS(ctx, n.Recipient, n.Body)
		}
	default:
		sendErr = fmt.Errorf("unsupported channel: %s", n.Channel)
	}

	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	if err := d.store.Update(ctx, n); err != nil {
		return err
	}
	return sendErr
}

// Retry re-sends a failed notification. Returns an error if the
// notification is not in failed status.
func (d *Dispatcher) Retry(ctx context.Context, id uuid.UUID) error {
	n, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != StatusFailed {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}
	return d.Send(ctx, id)
}

// MarkRead transitions a notification to read and stamps readAt, reporting
// whether the id was known.
func (d *Dispatcher) MarkRead(ctx context.Context, id uuid.UUID) bool {
	n, err := d.store.Get(ctx, id)
	if err != nil {
		return false
	}
	n.Status = StatusRead
	readAt := time.Now().UTC()
	n.ReadAt = &readAt
	return d.store.Update(ctx, n) == nil
}

// Get retrieves a notification by id. The store hands back a copy, so the
// caller may hold it across concurrent status updates.
func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return d.store.Get(ctx, id)
}

// ListByRecipient returns a recipient's notifications oldest first, up to limit.
func (d *Dispatcher) ListByRecipient(ctx context.Context, recipient string, limit int) ([]*Notification, error) {
	return d.store.ListByRecipient(ctx, recipient, limit)
}

// Stats returns counts of notifications grouped by status.
func (d *Dispatcher) Stats(ctx context.Context) (map[Status]int, error) {
	return d.store.Stats(ctx)
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// Handler exposes notification operations over HTTP via Echo.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a new Handler.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes registers all notification routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.POST("/notifications/:id/read", h.HandleMarkRead)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

// HandleList handles GET /notifications?recipient=...
func (h *Handler) HandleList(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "recipient query parameter is required"})
	}
	list, err := h.dispatcher.ListByRecipient(c.Request().Context(), recipient, 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, list)
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	n, err := h.dispatcher.Get(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, n)
}

// HandleMarkRead handles POST /notifications/:id/read.
func (h *Handler) HandleMarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if !h.dispatcher.MarkRead(c.Request().Context(), id) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "notification not found"})
	}
	n, _ := h.dispatcher.Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, n)
}

// HandleRetry handles POST /notifications/:id/retry.
func (h *Handler) HandleRetry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}
	if err := h.dispatcher.Retry(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	n, _ := h.dispatcher.Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, n)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.dispatcher.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}
