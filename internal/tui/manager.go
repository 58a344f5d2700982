package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/feedbackhq/pulse/internal/api"
	"github.com/feedbackhq/pulse/internal/feedback"
	"github.com/feedbackhq/pulse/internal/session"
)

type managerPanel int

const (
	panelTeam managerPanel = iota
	panelFeedback
	panelRequests
)

var sentimentOrder = []api.Sentiment{api.SentimentPositive, api.SentimentNeutral, api.SentimentNegative}

// managerView is the manager dashboard: team roster with sentiment
// aggregates, the selected member's feedback history, and the open request
// queue. A submission form overlays the dashboard when composing.
type managerView struct {
	app *App

	controller *feedback.Controller
	workflow   *feedback.Workflow
	threads    *feedback.ThreadCache

	focus      managerPanel
	teamCursor int
	itemCursor int
	reqCursor  int
	expanded   map[int]bool

	// form state; editingID is zero for a fresh submission.
	formOpen  bool
	editingID int
	strengths textinput.Model
	areas     textinput.Model
	tags      textinput.Model
	sentiment int
	formFocus int

	commenting bool
	comment    textinput.Model

	spin spinner.Model
}

func newManagerView(app *App) *managerView {
	strengths := textinput.New()
	strengths.Placeholder = "strengths"
	strengths.CharLimit = 1000

	areas := textinput.New()
	areas.Placeholder = "areas to improve"
	areas.CharLimit = 1000

	tags := textinput.New()
	tags.Placeholder = "tags (comma separated)"
	tags.CharLimit = 200

	comment := textinput.New()
	comment.Placeholder = "write a comment"
	comment.CharLimit = 500

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &managerView{
		app:        app,
		controller: feedback.NewController(app.client, session.RoleManager, app.log),
		workflow:   feedback.NewWorkflow(app.client, session.RoleManager, app.log),
		threads:    feedback.NewThreadCache(app.client, app.log),
		expanded:   map[int]bool{},
		strengths:  strengths,
		areas:      areas,
		tags:       tags,
		comment:    comment,
		spin:       spin,
	}
}

func (v *managerView) Init() tea.Cmd {
	return tea.Batch(
		v.controller.LoadTeam(),
		v.workflow.LoadPending(),
		v.spin.Tick,
	)
}

func (v *managerView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(msg)
		if v.controller.Loading() || v.controller.TeamLoading() || v.workflow.Loading() {
			return cmd
		}
		return nil

	case feedback.ItemsMsg:
		cmd := v.controller.Apply(msg)
		if msg.Err != nil {
			return tea.Batch(cmd, v.app.flashError(msg.Err))
		}
		v.clampItemCursor()
		return cmd

	case feedback.TeamMsg:
		cmd := v.controller.Apply(msg)
		if msg.Err != nil {
			return tea.Batch(cmd, v.app.flashError(msg.Err))
		}
		if n := len(v.controller.Team()); v.teamCursor >= n && n > 0 {
			v.teamCursor = n - 1
		}
		return cmd

	case feedback.ActionMsg:
		cmd := v.controller.Apply(msg)
		if msg.Err != nil {
			return tea.Batch(cmd, v.app.flashError(msg.Err))
		}
		var note string
		switch msg.Op {
		case feedback.OpSubmit:
			note = "Feedback submitted"
		case feedback.OpUpdate:
			note = "Feedback updated"
		case feedback.OpDelete:
			note = "Feedback deleted"
		}
		return tea.Batch(cmd, v.app.flash(noticeSuccess, note), v.spin.Tick)

	case feedback.PendingMsg:
		v.workflow.Apply(msg)
		if msg.Err != nil {
			return v.app.flashError(msg.Err)
		}
		v.clampReqCursor()
		return nil

	case feedback.FulfilledMsg:
		v.workflow.Apply(msg)
		if msg.Err != nil {
			return v.app.flashError(msg.Err)
		}
		v.clampReqCursor()
		return v.app.flash(noticeSuccess, "Request marked fulfilled")

	case feedback.ThreadMsg:
		cmd := v.threads.Apply(msg)
		if msg.Err != nil {
			return tea.Batch(cmd, v.app.flashError(msg.Err))
		}
		return cmd

	case feedback.CommentAddedMsg:
		cmd := v.threads.Apply(msg)
		if msg.Err != nil {
			return tea.Batch(cmd, v.app.flashError(msg.Err))
		}
		return tea.Batch(cmd, v.app.flash(noticeSuccess, "Comment posted"))

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return nil
}

func (v *managerView) handleKey(key tea.KeyMsg) tea.Cmd {
	if v.formOpen {
		return v.updateForm(key)
	}
	if v.commenting {
		return v.updateCommentForm(key)
	}

	switch key.String() {
	case "q":
		return tea.Quit
	case "tab":
		v.focus = (v.focus + 1) % 3
		return nil
	case "shift+tab":
		v.focus = (v.focus + 2) % 3
		return nil
	case "R":
		return tea.Batch(
			v.controller.LoadTeam(),
			v.workflow.LoadPending(),
			v.controller.Refresh(),
			v.spin.Tick,
		)
	case "up", "k":
		v.moveCursor(-1)
		return nil
	case "down", "j":
		v.moveCursor(1)
		return nil
	case "enter":
		return v.activate()
	case "s":
		if v.controller.Subject() == 0 {
			return v.app.flash(noticeError, "Select a team member first")
		}
		v.openForm(0, api.FeedbackForm{Sentiment: api.SentimentPositive})
		return v.strengths.Focus()
	case "e":
		if item, ok := v.selectedItem(); ok {
			v.openForm(item.ID, api.FeedbackForm{
				Strengths:      item.Strengths,
				AreasToImprove: item.AreasToImprove,
				Sentiment:      item.Sentiment,
				Tags:           item.TagList(),
			})
			return v.strengths.Focus()
		}
	case "d":
		if item, ok := v.selectedItem(); ok {
			if v.controller.Busy(item.ID) {
				return nil
			}
			return tea.Batch(v.controller.Delete(item.ID), v.spin.Tick)
		}
	case "c":
		if item, ok := v.selectedItem(); ok {
			v.commenting = true
			v.comment.SetValue("")
			v.expanded[item.ID] = true
			return tea.Batch(v.comment.Focus(), v.threads.EnsureLoaded(item.ID))
		}
	case "f":
		if req, ok := v.selectedRequest(); ok {
			subject, form := v.workflow.BeginFulfillment(req)
			v.openForm(0, form)
			v.focus = panelFeedback
			return tea.Batch(
				v.controller.SelectSubject(subject),
				v.strengths.Focus(),
				v.spin.Tick,
			)
		}
	case "m":
		if req, ok := v.selectedRequest(); ok {
			if v.workflow.Fulfilling(req.ID) {
				return nil
			}
			return v.workflow.MarkFulfilled(req.ID)
		}
	}
	return nil
}

func (v *managerView) moveCursor(delta int) {
	switch v.focus {
	case panelTeam:
		v.teamCursor = clamp(v.teamCursor+delta, len(v.controller.Team()))
	case panelFeedback:
		v.itemCursor = clamp(v.itemCursor+delta, len(v.controller.Items()))
	case panelRequests:
		v.reqCursor = clamp(v.reqCursor+delta, len(v.workflow.Pending()))
	}
}

func (v *managerView) activate() tea.Cmd {
	switch v.focus {
	case panelTeam:
		team := v.controller.Team()
		if v.teamCursor < len(team) {
			v.itemCursor = 0
			return tea.Batch(v.controller.SelectSubject(team[v.teamCursor].ID), v.spin.Tick)
		}
	case panelFeedback:
		if item, ok := v.selectedItem(); ok {
			v.expanded[item.ID] = !v.expanded[item.ID]
			if v.expanded[item.ID] {
				return v.threads.EnsureLoaded(item.ID)
			}
		}
	case panelRequests:
		if req, ok := v.selectedRequest(); ok {
			subject, form := v.workflow.BeginFulfillment(req)
			v.openForm(0, form)
			v.focus = panelFeedback
			return tea.Batch(
				v.controller.SelectSubject(subject),
				v.strengths.Focus(),
				v.spin.Tick,
			)
		}
	}
	return nil
}

func (v *managerView) openForm(editingID int, form api.FeedbackForm) {
	v.formOpen = true
	v.editingID = editingID
	v.formFocus = 0
	v.strengths.SetValue(form.Strengths)
	v.areas.SetValue(form.AreasToImprove)
	v.tags.SetValue(api.JoinTags(form.Tags))
	v.sentiment = 0
	for i, s := range sentimentOrder {
		if s == form.Sentiment {
			v.sentiment = i
		}
	}
	v.areas.Blur()
	v.tags.Blur()
}

func (v *managerView) closeForm() {
	v.formOpen = false
	v.editingID = 0
	v.strengths.Blur()
	v.areas.Blur()
	v.tags.Blur()
}

func (v *managerView) updateForm(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		v.closeForm()
		return nil
	case "tab", "shift+tab", "up", "down":
		step := 1
		if key.String() == "shift+tab" || key.String() == "up" {
			step = 3
		}
		v.formFocus = (v.formFocus + step) % 4
		v.strengths.Blur()
		v.areas.Blur()
		v.tags.Blur()
		switch v.formFocus {
		case 0:
			return v.strengths.Focus()
		case 1:
			return v.areas.Focus()
		case 2:
			return v.tags.Focus()
		}
		return nil
	case "left", "right":
		if v.formFocus == 3 {
			if key.String() == "left" {
				v.sentiment = (v.sentiment + len(sentimentOrder) - 1) % len(sentimentOrder)
			} else {
				v.sentiment = (v.sentiment + 1) % len(sentimentOrder)
			}
			return nil
		}
	case "enter":
		return v.submitForm()
	}

	var cmd tea.Cmd
	switch v.formFocus {
	case 0:
		v.strengths, cmd = v.strengths.Update(key)
	case 1:
		v.areas, cmd = v.areas.Update(key)
	case 2:
		v.tags, cmd = v.tags.Update(key)
	}
	return cmd
}

func (v *managerView) submitForm() tea.Cmd {
	form := api.FeedbackForm{
		Strengths:      strings.TrimSpace(v.strengths.Value()),
		AreasToImprove: strings.TrimSpace(v.areas.Value()),
		Sentiment:      sentimentOrder[v.sentiment],
		Tags:           api.SplitTags(v.tags.Value()),
	}
	if form.Strengths == "" && form.AreasToImprove == "" {
		return v.app.flash(noticeError, "Feedback cannot be empty")
	}
	editingID := v.editingID
	v.closeForm()
	if editingID != 0 {
		return tea.Batch(v.controller.Update(editingID, form), v.spin.Tick)
	}
	return tea.Batch(v.controller.Submit(form), v.spin.Tick)
}

func (v *managerView) updateCommentForm(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		v.commenting = false
		v.comment.Blur()
		return nil
	case "enter":
		item, ok := v.selectedItem()
		if !ok {
			v.commenting = false
			return nil
		}
		text := strings.TrimSpace(v.comment.Value())
		if text == "" {
			return v.app.flash(noticeError, "Comment cannot be empty")
		}
		v.commenting = false
		v.comment.Blur()
		return v.threads.AddComment(item.ID, text)
	}
	var cmd tea.Cmd
	v.comment, cmd = v.comment.Update(key)
	return cmd
}

func (v *managerView) selectedItem() (api.FeedbackItem, bool) {
	items := v.controller.Items()
	if v.itemCursor < 0 || v.itemCursor >= len(items) {
		return api.FeedbackItem{}, false
	}
	return items[v.itemCursor], true
}

func (v *managerView) selectedRequest() (api.FeedbackRequest, bool) {
	pending := v.workflow.Pending()
	if v.reqCursor < 0 || v.reqCursor >= len(pending) {
		return api.FeedbackRequest{}, false
	}
	return pending[v.reqCursor], true
}

func (v *managerView) clampItemCursor() {
	v.itemCursor = clamp(v.itemCursor, len(v.controller.Items()))
}

func (v *managerView) clampReqCursor() {
	v.reqCursor = clamp(v.reqCursor, len(v.workflow.Pending()))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (v *managerView) View(width, height int) string {
	if v.formOpen {
		return v.renderForm(width)
	}

	leftWidth := width / 3
	rightWidth := width - leftWidth - 4

	team := v.renderTeam(leftWidth)
	items := v.renderItems(rightWidth)
	top := lipgloss.JoinHorizontal(lipgloss.Top, team, items)

	requests := v.renderRequests(width - 2)
	return lipgloss.JoinVertical(lipgloss.Left, top, requests)
}

func (v *managerView) renderTeam(width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Team"))
	if v.controller.TeamLoading() {
		b.WriteString(" " + v.spin.View())
	}
	b.WriteString("\n\n")
	for i, member := range v.controller.Team() {
		line := fmt.Sprintf("%s  %d items  +%d ~%d -%d",
			member.Name,
			member.FeedbackCount,
			member.Sentiments.Positive,
			member.Sentiments.Neutral,
			member.Sentiments.Negative)
		if member.ID == v.controller.Subject() {
			line = "● " + line
		} else {
			line = "  " + line
		}
		if v.focus == panelTeam && i == v.teamCursor {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	style := panelStyle
	if v.focus == panelTeam {
		style = focusedPanelStyle
	}
	return style.Width(width).Render(b.String())
}

func (v *managerView) renderItems(width int) string {
	var b strings.Builder
	title := "Feedback"
	if subject := v.controller.Subject(); subject != 0 {
		for _, member := range v.controller.Team() {
			if member.ID == subject {
				title = "Feedback for " + member.Name
			}
		}
	}
	b.WriteString(panelTitleStyle.Render(title))
	if v.controller.Loading() {
		b.WriteString(" " + v.spin.View())
	}
	b.WriteString("\n\n")

	if v.controller.Subject() == 0 {
		b.WriteString(dimStyle.Render("Select a team member to see their feedback.") + "\n")
	}
	for i, item := range v.controller.Items() {
		marker := "  "
		if v.focus == panelFeedback && i == v.itemCursor {
			marker = selectedRowStyle.Render("> ")
		}
		status := dimStyle.Render("unread")
		if item.Acknowledged {
			status = successStyle.Render("acknowledged")
		}
		if v.controller.Busy(item.ID) {
			status = dimStyle.Render("saving...")
		}
		b.WriteString(fmt.Sprintf("%s%s  %s  %s\n", marker,
			renderSentiment(item.Sentiment),
			item.CreatedAt.Format("2006-01-02"),
			status))
		b.WriteString("  " + labelStyle.Render("Strengths: ") + item.Strengths + "\n")
		b.WriteString("  " + labelStyle.Render("Improve:   ") + item.AreasToImprove + "\n")
		if tags := item.TagList(); len(tags) > 0 {
			b.WriteString("  " + renderTags(tags) + "\n")
		}
		if v.expanded[item.ID] {
			b.WriteString(v.renderThread(item.ID))
		}
		b.WriteString("\n")
	}

	if v.commenting {
		b.WriteString(labelStyle.Render("New comment (Enter to post, Esc to cancel)") + "\n")
		b.WriteString(v.comment.View() + "\n")
	}

	style := panelStyle
	if v.focus == panelFeedback {
		style = focusedPanelStyle
	}
	return style.Width(width).Render(b.String())
}

func (v *managerView) renderThread(feedbackID int) string {
	comments, state := v.threads.Comments(feedbackID)
	var b strings.Builder
	switch state {
	case feedback.ThreadLoading:
		b.WriteString("  " + dimStyle.Render("loading comments...") + "\n")
	case feedback.ThreadLoaded:
		if len(comments) == 0 {
			b.WriteString("  " + dimStyle.Render("no comments") + "\n")
		}
		for _, c := range comments {
			b.WriteString(fmt.Sprintf("  %s %s\n",
				dimStyle.Render(c.CreatedAt.Format("Jan 2 15:04")),
				c.Text))
		}
	}
	if v.threads.Posting(feedbackID) {
		b.WriteString("  " + dimStyle.Render("posting...") + "\n")
	}
	return b.String()
}

func (v *managerView) renderRequests(width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Open feedback requests"))
	if v.workflow.Loading() {
		b.WriteString(" " + v.spin.View())
	}
	b.WriteString("\n\n")

	pending := v.workflow.Pending()
	if len(pending) == 0 && !v.workflow.Loading() {
		b.WriteString(dimStyle.Render("No open requests.") + "\n")
	}
	for i, req := range pending {
		marker := "  "
		if v.focus == panelRequests && i == v.reqCursor {
			marker = selectedRowStyle.Render("> ")
		}
		line := fmt.Sprintf("%s#%d from employee %d: %s", marker, req.ID, req.EmployeeID, req.Message)
		if tags := req.TagList(); len(tags) > 0 {
			line += "  " + renderTags(tags)
		}
		if v.workflow.Fulfilling(req.ID) {
			line += "  " + dimStyle.Render("closing...")
		}
		b.WriteString(line + "\n")
	}

	style := panelStyle
	if v.focus == panelRequests {
		style = focusedPanelStyle
	}
	return style.Width(width).Render(b.String())
}

func (v *managerView) renderForm(width int) string {
	var b strings.Builder
	title := "Submit feedback"
	if v.editingID != 0 {
		title = fmt.Sprintf("Edit feedback #%d", v.editingID)
	}
	b.WriteString(panelTitleStyle.Render(title) + "\n\n")
	b.WriteString(labelStyle.Render("Strengths") + "\n" + v.strengths.View() + "\n\n")
	b.WriteString(labelStyle.Render("Areas to improve") + "\n" + v.areas.View() + "\n\n")
	b.WriteString(labelStyle.Render("Tags") + "\n" + v.tags.View() + "\n\n")

	sentimentLine := labelStyle.Render("Sentiment  ")
	for i, s := range sentimentOrder {
		label := renderSentiment(s)
		if i == v.sentiment {
			label = "[" + label + "]"
		} else {
			label = " " + label + " "
		}
		sentimentLine += label + " "
	}
	if v.formFocus == 3 {
		sentimentLine += hintStyle.Render(" ←/→ to change")
	}
	b.WriteString(sentimentLine + "\n")

	if v.controller.Submitting() {
		b.WriteString("\n" + dimStyle.Render("submitting...") + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("Enter submit · Tab next field · Esc cancel"))

	return panelStyle.Width(min(width-2, 72)).Render(b.String())
}
