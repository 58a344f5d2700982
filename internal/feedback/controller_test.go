package feedback

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/feedbackhq/pulse/internal/api"
	"github.com/feedbackhq/pulse/internal/session"
)

type fakeService struct {
	listFn    func(employeeID int) ([]api.FeedbackItem, error)
	createFn  func(form api.FeedbackForm, employeeID int) (api.FeedbackItem, error)
	updateFn  func(id int, form api.FeedbackForm, employeeID int) (api.FeedbackItem, error)
	deleteFn  func(id int) error
	ackFn     func(id int) (api.FeedbackItem, error)
	teamFn    func() ([]api.TeamMemberSummary, error)
	pendingFn func() ([]api.FeedbackRequest, error)
	fulfillFn func(id int) (api.FeedbackRequest, error)
	reqFn     func(message string, tags []string) (api.FeedbackRequest, error)
	listCmFn  func(feedbackID int) ([]api.Comment, error)
	addCmFn   func(feedbackID int, text string) (api.Comment, error)

	calls map[string]int
}

func newFakeService() *fakeService {
	return &fakeService{calls: map[string]int{}}
}

func (f *fakeService) count(name string) { f.calls[name]++ }

func (f *fakeService) ListFeedback(_ context.Context, employeeID int) ([]api.FeedbackItem, error) {
	f.count("list")
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(employeeID)
}

func (f *fakeService) CreateFeedback(_ context.Context, form api.FeedbackForm, employeeID int) (api.FeedbackItem, error) {
	f.count("create")
	if f.createFn == nil {
		return api.FeedbackItem{}, nil
	}
	return f.createFn(form, employeeID)
}

func (f *fakeService) UpdateFeedback(_ context.Context, id int, form api.FeedbackForm, employeeID int) (api.FeedbackItem, error) {
	f.count("update")
	if f.updateFn == nil {
		return api.FeedbackItem{}, nil
	}
	return f.updateFn(id, form, employeeID)
}

func (f *fakeService) DeleteFeedback(_ context.Context, id int) error {
	f.count("delete")
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(id)
}

func (f *fakeService) Acknowledge(_ context.Context, id int) (api.FeedbackItem, error) {
	f.count("acknowledge")
	if f.ackFn == nil {
		return api.FeedbackItem{}, nil
	}
	return f.ackFn(id)
}

func (f *fakeService) TeamSummaries(_ context.Context) ([]api.TeamMemberSummary, error) {
	f.count("team")
	if f.teamFn == nil {
		return nil, nil
	}
	return f.teamFn()
}

func (f *fakeService) PendingRequests(_ context.Context) ([]api.FeedbackRequest, error) {
	f.count("pending")
	if f.pendingFn == nil {
		return nil, nil
	}
	return f.pendingFn()
}

func (f *fakeService) FulfillRequest(_ context.Context, id int) (api.FeedbackRequest, error) {
	f.count("fulfill")
	if f.fulfillFn == nil {
		return api.FeedbackRequest{}, nil
	}
	return f.fulfillFn(id)
}

func (f *fakeService) CreateFeedbackRequest(_ context.Context, message string, tags []string) (api.FeedbackRequest, error) {
	f.count("create-request")
	if f.reqFn == nil {
		return api.FeedbackRequest{}, nil
	}
	return f.reqFn(message, tags)
}

func (f *fakeService) ListComments(_ context.Context, feedbackID int) ([]api.Comment, error) {
	f.count("list-comments")
	if f.listCmFn == nil {
		return nil, nil
	}
	return f.listCmFn(feedbackID)
}

func (f *fakeService) AddComment(_ context.Context, feedbackID int, text string) (api.Comment, error) {
	f.count("add-comment")
	if f.addCmFn == nil {
		return api.Comment{}, nil
	}
	return f.addCmFn(feedbackID, text)
}

// drain runs a command tree to completion, feeding every message through
// apply and collecting follow-up commands, the way the bubbletea runtime
// would.
func drain(t *testing.T, cmd tea.Cmd, apply func(tea.Msg) tea.Cmd) []tea.Msg {
	t.Helper()
	var seen []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if msg == nil {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, sub := range batch {
				queue = append(queue, sub)
			}
			continue
		}
		seen = append(seen, msg)
		if follow := apply(msg); follow != nil {
			queue = append(queue, follow)
		}
	}
	return seen
}

func TestStaleListResultIsDiscarded(t *testing.T) {
	svc := newFakeService()
	svc.listFn = func(employeeID int) ([]api.FeedbackItem, error) {
		return []api.FeedbackItem{{ID: employeeID * 10, EmployeeID: employeeID}}, nil
	}
	ctrl := NewController(svc, session.RoleManager, nil)

	cmdA := ctrl.SelectSubject(1)
	cmdB := ctrl.SelectSubject(2)

	// B's fetch resolves first; A's response arrives after and must be
	// dropped because a newer request was issued.
	msgB := cmdB()
	msgA := cmdA()
	ctrl.Apply(msgB)
	ctrl.Apply(msgA)

	items := ctrl.Items()
	if len(items) != 1 || items[0].EmployeeID != 2 {
		t.Fatalf("final list = %+v, want subject 2's items", items)
	}
	if ctrl.Loading() {
		t.Fatal("loading flag must clear once the latest fetch resolved")
	}
}

func TestStaleResultAfterFreshOneStillDropped(t *testing.T) {
	svc := newFakeService()
	responses := map[int][]api.FeedbackItem{
		1: {{ID: 11, EmployeeID: 1}},
		2: {{ID: 22, EmployeeID: 2}},
	}
	svc.listFn = func(employeeID int) ([]api.FeedbackItem, error) {
		return responses[employeeID], nil
	}
	ctrl := NewController(svc, session.RoleManager, nil)

	cmdA := ctrl.SelectSubject(1)
	msgA := cmdA()
	cmdB := ctrl.SelectSubject(2)
	msgB := cmdB()

	// A resolved before B was issued but is applied late; order of
	// application must not matter, only issue order.
	ctrl.Apply(msgB)
	ctrl.Apply(msgA)

	if got := ctrl.Items(); len(got) != 1 || got[0].ID != 22 {
		t.Fatalf("final list = %+v, want subject 2's items", got)
	}
}

func TestAcknowledgeRefreshesItemsOnly(t *testing.T) {
	svc := newFakeService()
	acked := false
	svc.ackFn = func(id int) (api.FeedbackItem, error) {
		acked = true
		return api.FeedbackItem{ID: id, Acknowledged: true}, nil
	}
	svc.listFn = func(employeeID int) ([]api.FeedbackItem, error) {
		return []api.FeedbackItem{{ID: 7, EmployeeID: employeeID, Acknowledged: acked}}, nil
	}
	ctrl := NewController(svc, session.RoleEmployee, nil)
	drain(t, ctrl.SelectSubject(42), ctrl.Apply)

	drain(t, ctrl.Acknowledge(7), ctrl.Apply)

	if items := ctrl.Items(); len(items) != 1 || !items[0].Acknowledged {
		t.Fatalf("list not refreshed after acknowledge: %+v", items)
	}
	if svc.calls["list"] != 2 {
		t.Fatalf("list called %d times, want 2 (initial + refresh)", svc.calls["list"])
	}
	if svc.calls["team"] != 0 {
		t.Fatal("acknowledge must not refresh the team aggregate")
	}
	if ctrl.Busy(7) {
		t.Fatal("busy flag must clear")
	}
}

func TestSubmitRefreshesItemsAndTeam(t *testing.T) {
	svc := newFakeService()
	count := 0
	svc.createFn = func(form api.FeedbackForm, employeeID int) (api.FeedbackItem, error) {
		count++
		return api.FeedbackItem{ID: 99, EmployeeID: employeeID, Strengths: form.Strengths, Sentiment: form.Sentiment}, nil
	}
	svc.listFn = func(employeeID int) ([]api.FeedbackItem, error) {
		items := []api.FeedbackItem{}
		if count > 0 {
			items = append(items, api.FeedbackItem{ID: 99, EmployeeID: employeeID, Strengths: "Great communication", Sentiment: api.SentimentPositive})
		}
		return items, nil
	}
	svc.teamFn = func() ([]api.TeamMemberSummary, error) {
		return []api.TeamMemberSummary{{ID: 42, Name: "E", FeedbackCount: count, Sentiments: api.SentimentCounts{Positive: count}}}, nil
	}
	ctrl := NewController(svc, session.RoleManager, nil)
	drain(t, ctrl.SelectSubject(42), ctrl.Apply)
	drain(t, ctrl.LoadTeam(), ctrl.Apply)

	form := api.FeedbackForm{Strengths: "Great communication", Sentiment: api.SentimentPositive}
	drain(t, ctrl.Submit(form), ctrl.Apply)

	items := ctrl.Items()
	if len(items) != 1 || items[0].Strengths != "Great communication" {
		t.Fatalf("new item missing from refreshed list: %+v", items)
	}
	team := ctrl.Team()
	if len(team) != 1 || team[0].FeedbackCount != 1 {
		t.Fatalf("team aggregate not refreshed: %+v", team)
	}
	if ctrl.Submitting() {
		t.Fatal("submitting flag must clear")
	}
}

func TestDeleteFailureLeavesStateUntouched(t *testing.T) {
	svc := newFakeService()
	svc.listFn = func(employeeID int) ([]api.FeedbackItem, error) {
		return []api.FeedbackItem{{ID: 5, EmployeeID: employeeID}}, nil
	}
	svc.deleteFn = func(id int) error {
		return api.NewNetworkError("DELETE /feedback/5 failed", errors.New("connection refused"))
	}
	ctrl := NewController(svc, session.RoleManager, nil)
	drain(t, ctrl.SelectSubject(42), ctrl.Apply)
	listCalls := svc.calls["list"]

	msgs := drain(t, ctrl.Delete(5), ctrl.Apply)

	if len(msgs) != 1 {
		t.Fatalf("expected one action message, got %d", len(msgs))
	}
	action, ok := msgs[0].(ActionMsg)
	if !ok || action.Err == nil {
		t.Fatalf("expected failed ActionMsg, got %+v", msgs[0])
	}
	if api.KindOf(action.Err) != api.KindNetwork {
		t.Fatalf("kind = %s, want network", api.KindOf(action.Err))
	}
	if items := ctrl.Items(); len(items) != 1 || items[0].ID != 5 {
		t.Fatalf("item list changed on failure: %+v", items)
	}
	if svc.calls["list"] != listCalls {
		t.Fatal("failed delete must not trigger a refresh")
	}
	if ctrl.Busy(5) {
		t.Fatal("busy flag must clear on failure")
	}
}

func TestRoleGuardsBlockWithoutNetworkCall(t *testing.T) {
	t.Run("employee cannot submit", func(t *testing.T) {
		svc := newFakeService()
		ctrl := NewController(svc, session.RoleEmployee, nil)
		drain(t, ctrl.SelectSubject(1), ctrl.Apply)
		msgs := drain(t, ctrl.Submit(api.FeedbackForm{}), ctrl.Apply)
		action := msgs[0].(ActionMsg)
		if api.KindOf(action.Err) != api.KindAuthorization {
			t.Fatalf("kind = %s, want authorization", api.KindOf(action.Err))
		}
		if svc.calls["create"] != 0 {
			t.Fatal("no network call may be issued")
		}
	})
	t.Run("manager cannot acknowledge", func(t *testing.T) {
		svc := newFakeService()
		ctrl := NewController(svc, session.RoleManager, nil)
		msgs := drain(t, ctrl.Acknowledge(7), ctrl.Apply)
		action := msgs[0].(ActionMsg)
		if api.KindOf(action.Err) != api.KindAuthorization {
			t.Fatalf("kind = %s, want authorization", api.KindOf(action.Err))
		}
		if svc.calls["acknowledge"] != 0 {
			t.Fatal("no network call may be issued")
		}
	})
	t.Run("employee cannot load team", func(t *testing.T) {
		svc := newFakeService()
		ctrl := NewController(svc, session.RoleEmployee, nil)
		msgs := drain(t, ctrl.LoadTeam(), ctrl.Apply)
		team := msgs[0].(TeamMsg)
		if api.KindOf(team.Err) != api.KindAuthorization {
			t.Fatalf("kind = %s, want authorization", api.KindOf(team.Err))
		}
		if svc.calls["team"] != 0 {
			t.Fatal("no network call may be issued")
		}
	})
}

func TestSubmitWithoutSubjectIsValidationError(t *testing.T) {
	svc := newFakeService()
	ctrl := NewController(svc, session.RoleManager, nil)
	msgs := drain(t, ctrl.Submit(api.FeedbackForm{Strengths: "x"}), ctrl.Apply)
	action := msgs[0].(ActionMsg)
	if api.KindOf(action.Err) != api.KindValidation {
		t.Fatalf("kind = %s, want validation", api.KindOf(action.Err))
	}
	if svc.calls["create"] != 0 {
		t.Fatal("no network call may be issued")
	}
}

func TestRejectedRepeatAcknowledgeLeavesItemUntouched(t *testing.T) {
	svc := newFakeService()
	svc.listFn = func(employeeID int) ([]api.FeedbackItem, error) {
		return []api.FeedbackItem{{ID: 7, EmployeeID: employeeID, Acknowledged: true}}, nil
	}
	svc.ackFn = func(id int) (api.FeedbackItem, error) {
		return api.FeedbackItem{}, api.NewValidationError("feedback already acknowledged", 409)
	}
	ctrl := NewController(svc, session.RoleEmployee, nil)
	drain(t, ctrl.SelectSubject(42), ctrl.Apply)
	listCalls := svc.calls["list"]

	msgs := drain(t, ctrl.Acknowledge(7), ctrl.Apply)

	action := msgs[0].(ActionMsg)
	if api.KindOf(action.Err) != api.KindValidation {
		t.Fatalf("kind = %s, want validation", api.KindOf(action.Err))
	}
	if items := ctrl.Items(); len(items) != 1 || !items[0].Acknowledged {
		t.Fatalf("acknowledged flag must never flip back: %+v", items)
	}
	if svc.calls["list"] != listCalls {
		t.Fatal("rejected acknowledge must not trigger a refresh")
	}
	if ctrl.Busy(7) {
		t.Fatal("busy flag must clear on rejection")
	}
}

func TestSubmitRejectsUnknownSentiment(t *testing.T) {
	svc := newFakeService()
	ctrl := NewController(svc, session.RoleManager, nil)
	drain(t, ctrl.SelectSubject(42), ctrl.Apply)

	form := api.FeedbackForm{Strengths: "x", Sentiment: api.Sentiment("furious")}
	msgs := drain(t, ctrl.Submit(form), ctrl.Apply)

	action := msgs[0].(ActionMsg)
	if api.KindOf(action.Err) != api.KindValidation {
		t.Fatalf("kind = %s, want validation", api.KindOf(action.Err))
	}
	if svc.calls["create"] != 0 {
		t.Fatal("no network call may be issued for an unknown sentiment")
	}
}

func TestListFailureKeepsPriorItems(t *testing.T) {
	svc := newFakeService()
	fail := false
	svc.listFn = func(employeeID int) ([]api.FeedbackItem, error) {
		if fail {
			return nil, api.NewNetworkError("boom", nil)
		}
		return []api.FeedbackItem{{ID: 1, EmployeeID: employeeID}}, nil
	}
	ctrl := NewController(svc, session.RoleEmployee, nil)
	drain(t, ctrl.SelectSubject(42), ctrl.Apply)

	fail = true
	drain(t, ctrl.Refresh(), ctrl.Apply)

	if items := ctrl.Items(); len(items) != 1 {
		t.Fatalf("prior items lost on failed refresh: %+v", items)
	}
	if ctrl.Loading() {
		t.Fatal("loading flag must clear after a failed fetch")
	}
}
