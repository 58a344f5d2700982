package feedback

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/feedbackhq/pulse/internal/api"
	"github.com/feedbackhq/pulse/internal/session"
)

// RequestService is the slice of the api client the request workflow uses.
type RequestService interface {
	PendingRequests(ctx context.Context) ([]api.FeedbackRequest, error)
	FulfillRequest(ctx context.Context, id int) (api.FeedbackRequest, error)
}

// RequestCreator is the employee-side capability for filing a new request.
type RequestCreator interface {
	CreateFeedbackRequest(ctx context.Context, message string, tags []string) (api.FeedbackRequest, error)
}

// PendingMsg carries the open-request list fetch result.
type PendingMsg struct {
	Requests []api.FeedbackRequest
	Err      error
}

// FulfilledMsg reports one request's fulfillment.
type FulfilledMsg struct {
	RequestID int
	Err       error
}

// RequestCreatedMsg reports an employee's new feedback request.
type RequestCreatedMsg struct {
	Request api.FeedbackRequest
	Err     error
}

// Workflow tracks the manager's open feedback requests and links a request
// to an in-progress submission. Fulfillment is an explicit manager action,
// never inferred from a successful submit: a manager may submit feedback
// unrelated to any request, or want to review before closing one.
type Workflow struct {
	svc  RequestService
	log  *zap.Logger
	role session.Role

	pending    []api.FeedbackRequest
	loading    bool
	fulfilling map[int]bool
}

// NewWorkflow builds the request workflow for a viewer with the given role.
func NewWorkflow(svc RequestService, role session.Role, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{svc: svc, log: log, role: role, fulfilling: map[int]bool{}}
}

// LoadPending fetches the open requests. Manager-only.
func (w *Workflow) LoadPending() tea.Cmd {
	if w.role != session.RoleManager {
		err := api.NewAuthorizationError("manager role required")
		return func() tea.Msg { return PendingMsg{Err: err} }
	}
	w.loading = true
	return func() tea.Msg {
		reqs, err := w.svc.PendingRequests(context.Background())
		return PendingMsg{Requests: reqs, Err: err}
	}
}

// BeginFulfillment seeds a submission for the request's employee: it returns
// the subject to select and an empty form. The workflow only feeds the
// controller's subject-selection slot; it holds no reference to the
// controller itself.
func (w *Workflow) BeginFulfillment(req api.FeedbackRequest) (int, api.FeedbackForm) {
	return req.EmployeeID, api.FeedbackForm{Sentiment: api.SentimentPositive}
}

// MarkFulfilled closes the request server-side. On success Apply removes
// exactly that request from the local pending list.
func (w *Workflow) MarkFulfilled(id int) tea.Cmd {
	if w.role != session.RoleManager {
		err := api.NewAuthorizationError("manager role required")
		return func() tea.Msg { return FulfilledMsg{RequestID: id, Err: err} }
	}
	w.fulfilling[id] = true
	return func() tea.Msg {
		_, err := w.svc.FulfillRequest(context.Background(), id)
		return FulfilledMsg{RequestID: id, Err: err}
	}
}

// Apply folds request workflow messages into local state.
func (w *Workflow) Apply(msg tea.Msg) {
	switch m := msg.(type) {
	case PendingMsg:
		w.loading = false
		if m.Err != nil {
			w.log.Warn("pending requests fetch failed", zap.Error(m.Err))
			return
		}
		w.pending = m.Requests

	case FulfilledMsg:
		delete(w.fulfilling, m.RequestID)
		if m.Err != nil {
			w.log.Warn("fulfill request failed", zap.Int("request_id", m.RequestID), zap.Error(m.Err))
			return
		}
		kept := w.pending[:0]
		for _, req := range w.pending {
			if req.ID != m.RequestID {
				kept = append(kept, req)
			}
		}
		w.pending = kept
	}
}

// Pending returns the cached open requests.
func (w *Workflow) Pending() []api.FeedbackRequest { return w.pending }

// Loading reports whether the pending fetch is in flight.
func (w *Workflow) Loading() bool { return w.loading }

// Fulfilling reports whether a fulfillment for the given request is in flight.
func (w *Workflow) Fulfilling(id int) bool { return w.fulfilling[id] }

// CreateRequest files an employee's request for feedback with their manager.
func CreateRequest(svc RequestCreator, message string, tags []string) tea.Cmd {
	return func() tea.Msg {
		req, err := svc.CreateFeedbackRequest(context.Background(), message, tags)
		return RequestCreatedMsg{Request: req, Err: err}
	}
}
