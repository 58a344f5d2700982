// Package feedback holds the client-side state machines around feedback
// items: the per-viewer lifecycle controller, the manager's request
// workflow, and the lazy comment thread cache. All server work runs as
// bubbletea commands; the resulting messages are applied on the UI thread,
// so none of this state needs locking.
package feedback

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/feedbackhq/pulse/internal/api"
	"github.com/feedbackhq/pulse/internal/session"
)

// Service is the slice of the api client the controller consumes.
type Service interface {
	ListFeedback(ctx context.Context, employeeID int) ([]api.FeedbackItem, error)
	CreateFeedback(ctx context.Context, form api.FeedbackForm, employeeID int) (api.FeedbackItem, error)
	UpdateFeedback(ctx context.Context, id int, form api.FeedbackForm, employeeID int) (api.FeedbackItem, error)
	DeleteFeedback(ctx context.Context, id int) error
	Acknowledge(ctx context.Context, id int) (api.FeedbackItem, error)
	TeamSummaries(ctx context.Context) ([]api.TeamMemberSummary, error)
}

// Invalidation names the cached collections a mutation forces a re-fetch of.
// Each mutation declares its own set; Apply re-fetches exactly those.
type Invalidation uint8

const (
	// InvalidateItems refreshes the subject's feedback list.
	InvalidateItems Invalidation = 1 << iota
	// InvalidateTeam refreshes the manager's team aggregate.
	InvalidateTeam
)

// Op identifies which mutation produced an ActionMsg.
type Op string

const (
	OpAcknowledge Op = "acknowledge"
	OpSubmit      Op = "submit"
	OpUpdate      Op = "update"
	OpDelete      Op = "delete"
)

// ItemsMsg carries one list fetch result. Seq ties it to the request that
// issued it; stale results are discarded by Apply.
type ItemsMsg struct {
	Seq       uint64
	SubjectID int
	Items     []api.FeedbackItem
	Err       error
}

// TeamMsg carries the team aggregate fetch result.
type TeamMsg struct {
	Rows []api.TeamMemberSummary
	Err  error
}

// ActionMsg carries a mutation result plus the collections it invalidates.
type ActionMsg struct {
	Op          Op
	FeedbackID  int
	Invalidates Invalidation
	Err         error
}

// Controller orchestrates fetch/create/update/delete/acknowledge for one
// viewer. Employees view their own items; managers view a selected team
// member's. Every mutation that succeeds triggers a re-fetch of the
// collections it declares invalid rather than patching local copies, so the
// UI always reflects authoritative server state.
type Controller struct {
	svc  Service
	log  *zap.Logger
	role session.Role

	subjectID int
	seq       uint64

	items []api.FeedbackItem
	team  []api.TeamMemberSummary

	listLoading bool
	teamLoading bool
	submitting  bool
	busy        map[int]bool
}

// NewController builds a controller for a viewer with the given role.
func NewController(svc Service, role session.Role, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		svc:  svc,
		log:  log,
		role: role,
		busy: map[int]bool{},
	}
}

// SelectSubject switches the active subject and fetches their feedback. The
// fetch is stamped with a fresh sequence number; if the subject changes again
// before this fetch resolves, its result arrives with an old stamp and is
// dropped.
func (c *Controller) SelectSubject(subjectID int) tea.Cmd {
	c.subjectID = subjectID
	return c.fetchItems()
}

// Refresh re-fetches the current subject's feedback. No-op without a subject.
func (c *Controller) Refresh() tea.Cmd {
	if c.subjectID == 0 {
		return nil
	}
	return c.fetchItems()
}

func (c *Controller) fetchItems() tea.Cmd {
	c.seq++
	seq := c.seq
	subject := c.subjectID
	c.listLoading = true
	return func() tea.Msg {
		items, err := c.svc.ListFeedback(context.Background(), subject)
		return ItemsMsg{Seq: seq, SubjectID: subject, Items: items, Err: err}
	}
}

// LoadTeam fetches the manager's team aggregate.
func (c *Controller) LoadTeam() tea.Cmd {
	if err := c.requireRole(session.RoleManager); err != nil {
		return func() tea.Msg { return TeamMsg{Err: err} }
	}
	c.teamLoading = true
	return func() tea.Msg {
		rows, err := c.svc.TeamSummaries(context.Background())
		return TeamMsg{Rows: rows, Err: err}
	}
}

// Acknowledge marks an item reviewed. Employee-only; the acknowledged flag
// moves false to true exactly once and the follow-up list refresh shows the
// authoritative state instead of an optimistic local flip.
func (c *Controller) Acknowledge(id int) tea.Cmd {
	if err := c.requireRole(session.RoleEmployee); err != nil {
		return actionFailure(OpAcknowledge, id, err)
	}
	c.busy[id] = true
	return func() tea.Msg {
		_, err := c.svc.Acknowledge(context.Background(), id)
		return ActionMsg{Op: OpAcknowledge, FeedbackID: id, Invalidates: InvalidateItems, Err: err}
	}
}

// Submit creates a feedback item for the current subject. Manager-only.
func (c *Controller) Submit(form api.FeedbackForm) tea.Cmd {
	if err := c.requireRole(session.RoleManager); err != nil {
		return actionFailure(OpSubmit, 0, err)
	}
	if c.subjectID == 0 {
		return actionFailure(OpSubmit, 0, api.NewValidationError("no team member selected", 0))
	}
	if !form.Sentiment.Valid() {
		return actionFailure(OpSubmit, 0, api.NewValidationError(fmt.Sprintf("unknown sentiment %q", form.Sentiment), 0))
	}
	subject := c.subjectID
	c.submitting = true
	return func() tea.Msg {
		item, err := c.svc.CreateFeedback(context.Background(), form, subject)
		return ActionMsg{Op: OpSubmit, FeedbackID: item.ID, Invalidates: InvalidateItems | InvalidateTeam, Err: err}
	}
}

// Update edits an existing item. Manager-only; the payload never touches the
// acknowledged flag.
func (c *Controller) Update(id int, form api.FeedbackForm) tea.Cmd {
	if err := c.requireRole(session.RoleManager); err != nil {
		return actionFailure(OpUpdate, id, err)
	}
	if !form.Sentiment.Valid() {
		return actionFailure(OpUpdate, id, api.NewValidationError(fmt.Sprintf("unknown sentiment %q", form.Sentiment), 0))
	}
	subject := c.subjectID
	c.busy[id] = true
	return func() tea.Msg {
		_, err := c.svc.UpdateFeedback(context.Background(), id, form, subject)
		return ActionMsg{Op: OpUpdate, FeedbackID: id, Invalidates: InvalidateItems | InvalidateTeam, Err: err}
	}
}

// Delete removes an item. Manager-only.
func (c *Controller) Delete(id int) tea.Cmd {
	if err := c.requireRole(session.RoleManager); err != nil {
		return actionFailure(OpDelete, id, err)
	}
	c.busy[id] = true
	return func() tea.Msg {
		err := c.svc.DeleteFeedback(context.Background(), id)
		return ActionMsg{Op: OpDelete, FeedbackID: id, Invalidates: InvalidateItems | InvalidateTeam, Err: err}
	}
}

// Apply folds a result message into controller state and returns any
// follow-up fetches the message's invalidation set demands. Loading flags
// clear on every path, success or failure; a failed operation leaves the
// cached collections untouched.
func (c *Controller) Apply(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case ItemsMsg:
		if m.Seq != c.seq {
			// A newer fetch was issued after this one; the response is
			// stale and dropped without touching state.
			c.log.Debug("stale list result dropped",
				zap.Uint64("seq", m.Seq),
				zap.Uint64("latest", c.seq),
				zap.Int("subject_id", m.SubjectID))
			return nil
		}
		c.listLoading = false
		if m.Err != nil {
			c.log.Warn("list feedback failed", zap.Int("subject_id", m.SubjectID), zap.Error(m.Err))
			return nil
		}
		c.items = m.Items
		return nil

	case TeamMsg:
		c.teamLoading = false
		if m.Err != nil {
			c.log.Warn("team summaries failed", zap.Error(m.Err))
			return nil
		}
		c.team = m.Rows
		return nil

	case ActionMsg:
		c.submitting = false
		delete(c.busy, m.FeedbackID)
		if m.Err != nil {
			c.log.Warn("feedback mutation failed", zap.String("op", string(m.Op)), zap.Int("feedback_id", m.FeedbackID), zap.Error(m.Err))
			return nil
		}
		var cmds []tea.Cmd
		if m.Invalidates&InvalidateItems != 0 {
			if cmd := c.Refresh(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		if m.Invalidates&InvalidateTeam != 0 {
			cmds = append(cmds, c.LoadTeam())
		}
		if len(cmds) == 0 {
			return nil
		}
		return tea.Batch(cmds...)
	}
	return nil
}

// Items returns the cached feedback list for the active subject.
func (c *Controller) Items() []api.FeedbackItem { return c.items }

// Team returns the cached team aggregate.
func (c *Controller) Team() []api.TeamMemberSummary { return c.team }

// Subject returns the active subject id, zero when none is selected.
func (c *Controller) Subject() int { return c.subjectID }

// Loading reports whether a list fetch is in flight.
func (c *Controller) Loading() bool { return c.listLoading }

// TeamLoading reports whether the aggregate fetch is in flight.
func (c *Controller) TeamLoading() bool { return c.teamLoading }

// Submitting reports whether a create is in flight.
func (c *Controller) Submitting() bool { return c.submitting }

// Busy reports whether a mutation on the given item is in flight.
func (c *Controller) Busy(id int) bool { return c.busy[id] }

func (c *Controller) requireRole(role session.Role) error {
	if c.role != role {
		return api.NewAuthorizationError(fmt.Sprintf("%s role required", role))
	}
	return nil
}

func actionFailure(op Op, id int, err error) tea.Cmd {
	return func() tea.Msg {
		return ActionMsg{Op: op, FeedbackID: id, Err: err}
	}
}
