// Package tui is the terminal UI for pulse. It follows The Elm
// Architecture via bubbletea: server calls run as commands, their result
// messages are applied on the UI thread, and each view renders from the
// state the feedback controllers cache.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/feedbackhq/pulse/internal/api"
	"github.com/feedbackhq/pulse/internal/config"
	"github.com/feedbackhq/pulse/internal/session"
)

const noticeTTL = 3 * time.Second

// noticeLevel mirrors the snackbar variants of the web client this tool
// replaces: success for confirmations, error for failed operations.
type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeSuccess
	noticeError
)

// notice is the transient footer message; it expires on a timer rather
// than sticking around like a permanent error pane.
type notice struct {
	text  string
	level noticeLevel
	id    int
}

type noticeExpiredMsg struct{ id int }

// loginResultMsg carries the token exchange result back to the app.
type loginResultMsg struct {
	token string
	err   error
}

// view is what each screen implements. Views are not tea.Models
// themselves; the App owns the program loop and delegates.
type view interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
}

// App is the root model: it owns the session store, routes between the
// login view and the two dashboards, and renders the shared chrome.
type App struct {
	cfg      *config.Config
	sessions *session.Store
	client   *api.Client
	log      *zap.Logger

	route  session.Route
	active view

	width  int
	height int

	notice   notice
	noticeID int
}

// NewApp wires the root model. It attempts to restore a persisted session;
// when one exists the matching dashboard becomes the initial route,
// otherwise the login view does.
func NewApp(cfg *config.Config, sessions *session.Store, client *api.Client, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{
		cfg:      cfg,
		sessions: sessions,
		client:   client,
		log:      log,
	}
	route := session.RouteLogin
	if sess, ok := sessions.Restore(); ok {
		route = session.HomeRoute(sess.Role)
	}
	app.mount(route)
	return app
}

// mount resolves the requested route through the guard and constructs the
// resulting view. All navigation funnels through here; there is no way to
// reach a dashboard without passing the guard.
func (a *App) mount(requested session.Route) {
	resolved := session.Resolve(a.sessions, requested)
	if resolved != requested {
		a.log.Info("route denied",
			zap.Int("requested", int(requested)),
			zap.Int("resolved", int(resolved)))
	}
	a.route = resolved
	switch resolved {
	case session.RouteEmployee:
		a.active = newEmployeeView(a)
	case session.RouteManager:
		a.active = newManagerView(a)
	default:
		a.active = newLoginView(a)
	}
}

// navigate mounts a route and returns the new view's init command.
func (a *App) navigate(requested session.Route) tea.Cmd {
	a.mount(requested)
	return a.active.Init()
}

// Init starts the initial view.
func (a *App) Init() tea.Cmd {
	return a.active.Init()
}

// Update is the single message pump for the whole client.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case noticeExpiredMsg:
		if msg.id == a.notice.id {
			a.notice = notice{}
		}
		return a, nil

	case loginResultMsg:
		return a, a.completeLogin(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "L":
			if a.route != session.RouteLogin {
				return a, a.logout()
			}
		}
	}

	return a, a.active.Update(msg)
}

// completeLogin decodes and stores the token, then navigates by the
// decoded role. A token the store rejects surfaces an error and stays on
// the login view; no navigation happens on a failed decode.
func (a *App) completeLogin(msg loginResultMsg) tea.Cmd {
	if login, ok := a.active.(*loginView); ok {
		login.loading = false
	}
	if msg.err != nil {
		return a.flashError(msg.err)
	}
	sess, err := a.sessions.Login(msg.token)
	if err != nil {
		a.log.Warn("token rejected after login", zap.Error(err))
		return a.flash(noticeError, "Invalid token received")
	}
	return tea.Batch(
		a.flash(noticeSuccess, "Login successful"),
		a.navigate(session.HomeRoute(sess.Role)),
	)
}

func (a *App) logout() tea.Cmd {
	a.sessions.Logout()
	return tea.Batch(
		a.flash(noticeInfo, "Signed out"),
		a.navigate(session.RouteLogin),
	)
}

// flash shows a transient footer notice for a few seconds.
func (a *App) flash(level noticeLevel, text string) tea.Cmd {
	a.noticeID++
	a.notice = notice{text: text, level: level, id: a.noticeID}
	id := a.noticeID
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

// flashError renders any failure as a notice, never a crash: dashboards
// stay mounted whatever a request returned.
func (a *App) flashError(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	var text string
	switch api.KindOf(err) {
	case api.KindAuthorization:
		text = "Not allowed: " + err.Error()
	case api.KindValidation:
		text = "Rejected: " + err.Error()
	case api.KindInvalidToken:
		text = "Invalid token received"
	default:
		text = "Request failed: " + err.Error()
	}
	return a.flash(noticeError, text)
}

// loginCmd exchanges credentials for a token off the UI thread.
func (a *App) loginCmd(email, password string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		token, err := client.Login(context.Background(), email, password)
		return loginResultMsg{token: token, err: err}
	}
}

// View renders the active view inside the shared chrome.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	height := a.height
	if height <= 0 {
		height = 30
	}

	header := headerStyle.Render("● PULSE")
	if sess, ok := a.sessions.Current(); ok {
		header = lipgloss.JoinHorizontal(lipgloss.Top,
			header,
			dimStyle.Render(fmt.Sprintf("  signed in as %s #%d", sess.Role, sess.UserID)),
		)
	}

	body := a.active.View(width, height-4)

	footer := a.renderNotice()
	return strings.Join([]string{header, body, footer}, "\n")
}

func (a *App) renderNotice() string {
	if a.notice.text == "" {
		return hintStyle.Render(a.footerHint())
	}
	switch a.notice.level {
	case noticeError:
		return errorStyle.Render(a.notice.text)
	case noticeSuccess:
		return successStyle.Render(a.notice.text)
	default:
		return hintStyle.Render(a.notice.text)
	}
}

func (a *App) footerHint() string {
	switch a.route {
	case session.RouteLogin:
		return "Enter → sign in    Tab → switch field    Ctrl+C → quit"
	case session.RouteEmployee:
		return "↑/↓ select · Enter comments · a acknowledge · c comment · r request feedback · R refresh · L sign out"
	case session.RouteManager:
		return "Tab focus · Enter select · s submit · e edit · d delete · f fulfill · m mark fulfilled · R refresh · L sign out"
	}
	return ""
}
