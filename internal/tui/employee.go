package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/feedbackhq/pulse/internal/api"
	"github.com/feedbackhq/pulse/internal/feedback"
	"github.com/feedbackhq/pulse/internal/session"
)

type employeeMode int

const (
	employeeBrowsing employeeMode = iota
	employeeCommenting
	employeeRequesting
)

// employeeView is the employee dashboard: the viewer's own feedback
// timeline, lazily expanded comment threads, and the request-feedback form.
type employeeView struct {
	app *App

	controller *feedback.Controller
	threads    *feedback.ThreadCache

	cursor   int
	expanded map[int]bool
	mode     employeeMode

	comment    textinput.Model
	reqMessage textinput.Model
	reqTags    textinput.Model
	reqFocus   int

	spin spinner.Model
}

func newEmployeeView(app *App) *employeeView {
	comment := textinput.New()
	comment.Placeholder = "write a comment"
	comment.CharLimit = 500

	reqMessage := textinput.New()
	reqMessage.Placeholder = "what would you like feedback on?"
	reqMessage.CharLimit = 500

	reqTags := textinput.New()
	reqTags.Placeholder = "tags (comma separated, optional)"
	reqTags.CharLimit = 200

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &employeeView{
		app:        app,
		controller: feedback.NewController(app.client, session.RoleEmployee, app.log),
		threads:    feedback.NewThreadCache(app.client, app.log),
		expanded:   map[int]bool{},
		comment:    comment,
		reqMessage: reqMessage,
		reqTags:    reqTags,
		spin:       spin,
	}
}

func (v *employeeView) Init() tea.Cmd {
	sess, ok := v.app.sessions.Current()
	if !ok {
		return nil
	}
	return tea.Batch(
		v.controller.SelectSubject(sess.UserID),
		v.spin.Tick,
	)
}

func (v *employeeView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(msg)
		if v.controller.Loading() {
			return cmd
		}
		return nil

	case feedback.ItemsMsg:
		cmd := v.controller.Apply(msg)
		if msg.Err != nil {
			return tea.Batch(cmd, v.app.flashError(msg.Err))
		}
		v.clampCursor()
		return cmd

	case feedback.ActionMsg:
		cmd := v.controller.Apply(msg)
		if msg.Err != nil {
			return tea.Batch(cmd, v.app.flashError(msg.Err))
		}
		if msg.Op == feedback.OpAcknowledge {
			return tea.Batch(cmd, v.app.flash(noticeSuccess, "Feedback acknowledged"), v.spin.Tick)
		}
		return cmd

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

	case feedback.RequestCreatedMsg:
		if msg.Err != nil {
			return v.app.flashError(msg.Err)
		}
		return v.app.flash(noticeSuccess, "Feedback request sent to your manager")

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return nil
}

func (v *employeeView) handleKey(key tea.KeyMsg) tea.Cmd {
	switch v.mode {
	case employeeCommenting:
		return v.updateCommentForm(key)
	case employeeRequesting:
		return v.updateRequestForm(key)
	}

	items := v.controller.Items()
	switch key.String() {
	case "q":
		return tea.Quit
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(items)-1 {
			v.cursor++
		}
	case "enter":
		if item, ok := v.selected(); ok {
			v.expanded[item.ID] = !v.expanded[item.ID]
			if v.expanded[item.ID] {
				return v.threads.EnsureLoaded(item.ID)
			}
		}
	case "a":
		if item, ok := v.selected(); ok {
			if item.Acknowledged {
				return v.app.flash(noticeInfo, "Already acknowledged")
			}
			if v.controller.Busy(item.ID) {
				return nil
			}
			return v.controller.Acknowledge(item.ID)
		}
	case "c":
		if item, ok := v.selected(); ok {
			v.mode = employeeCommenting
			v.comment.SetValue("")
			v.expanded[item.ID] = true
			return tea.Batch(v.comment.Focus(), v.threads.EnsureLoaded(item.ID))
		}
	case "r":
		v.mode = employeeRequesting
		v.reqMessage.SetValue("")
		v.reqTags.SetValue("")
		v.reqFocus = 0
		v.reqTags.Blur()
		return v.reqMessage.Focus()
	case "R":
		return tea.Batch(v.controller.Refresh(), v.spin.Tick)
	}
	return nil
}

func (v *employeeView) updateCommentForm(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		v.mode = employeeBrowsing
		v.comment.Blur()
		return nil
	case "enter":
		item, ok := v.selected()
		if !ok {
			v.mode = employeeBrowsing
			return nil
		}
		text := strings.TrimSpace(v.comment.Value())
		if text == "" {
			return v.app.flash(noticeError, "Comment cannot be empty")
		}
		v.mode = employeeBrowsing
		v.comment.Blur()
		return v.threads.AddComment(item.ID, text)
	}
	var cmd tea.Cmd
	v.comment, cmd = v.comment.Update(key)
	return cmd
}

func (v *employeeView) updateRequestForm(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		v.mode = employeeBrowsing
		v.reqMessage.Blur()
		v.reqTags.Blur()
		return nil
	case "tab", "shift+tab":
		v.reqFocus = (v.reqFocus + 1) % 2
		if v.reqFocus == 0 {
			v.reqTags.Blur()
			return v.reqMessage.Focus()
		}
		v.reqMessage.Blur()
		return v.reqTags.Focus()
	case "enter":
		if err := session.RequireRole(v.app.sessions, session.RoleEmployee); err != nil {
			return v.app.flashError(err)
		}
		message := strings.TrimSpace(v.reqMessage.Value())
		if message == "" {
			return v.app.flash(noticeError, "A message is required")
		}
		tags := api.SplitTags(v.reqTags.Value())
		v.mode = employeeBrowsing
		v.reqMessage.Blur()
		v.reqTags.Blur()
		return feedback.CreateRequest(v.app.client, message, tags)
	}
	var cmds []tea.Cmd
	var cmd tea.Cmd
	v.reqMessage, cmd = v.reqMessage.Update(key)
	cmds = append(cmds, cmd)
	v.reqTags, cmd = v.reqTags.Update(key)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (v *employeeView) selected() (api.FeedbackItem, bool) {
	items := v.controller.Items()
	if v.cursor < 0 || v.cursor >= len(items) {
		return api.FeedbackItem{}, false
	}
	return items[v.cursor], true
}

func (v *employeeView) clampCursor() {
	if n := len(v.controller.Items()); v.cursor >= n {
		v.cursor = n - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
}

func (v *employeeView) View(width, height int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Your feedback"))
	if v.controller.Loading() {
		b.WriteString(" " + v.spin.View())
	}
	b.WriteString("\n\n")

	items := v.controller.Items()
	if len(items) == 0 && !v.controller.Loading() {
		b.WriteString(dimStyle.Render("No feedback yet. Press r to request some.") + "\n")
	}
	for i, item := range items {
		b.WriteString(v.renderItem(item, i == v.cursor))
	}

	switch v.mode {
	case employeeCommenting:
		b.WriteString("\n" + labelStyle.Render("New comment (Enter to post, Esc to cancel)") + "\n")
		b.WriteString(v.comment.View() + "\n")
	case employeeRequesting:
		b.WriteString("\n" + labelStyle.Render("Request feedback (Enter to send, Esc to cancel)") + "\n")
		b.WriteString(v.reqMessage.View() + "\n")
		b.WriteString(v.reqTags.View() + "\n")
	}

	return panelStyle.Width(width - 2).Render(b.String())
}

func (v *employeeView) renderItem(item api.FeedbackItem, selected bool) string {
	marker := "  "
	if selected {
		marker = selectedRowStyle.Render("> ")
	}
	ack := dimStyle.Render("unread")
	if item.Acknowledged {
		ack = successStyle.Render("acknowledged")
	}
	if v.controller.Busy(item.ID) {
		ack = dimStyle.Render("saving...")
	}
	head := fmt.Sprintf("%s%s  %s  %s\n", marker,
		renderSentiment(item.Sentiment),
		item.CreatedAt.Format("2006-01-02"),
		ack)

	var b strings.Builder
	b.WriteString(head)
	b.WriteString("  " + labelStyle.Render("Strengths: ") + item.Strengths + "\n")
	b.WriteString("  " + labelStyle.Render("Improve:   ") + item.AreasToImprove + "\n")
	if tags := item.TagList(); len(tags) > 0 {
		b.WriteString("  " + renderTags(tags) + "\n")
	}
	if v.expanded[item.ID] {
		b.WriteString(v.renderThread(item.ID))
	}
	b.WriteString("\n")
	return b.String()
}

func (v *employeeView) renderThread(feedbackID int) string {
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

func renderSentiment(s api.Sentiment) string {
	if style, ok := sentimentStyles[string(s)]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

func renderTags(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = tagStyle.Render(t)
	}
	return strings.Join(parts, " ")
}
