package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// loginView collects credentials and hands them to the app, which owns the
// token exchange and the navigation that follows it.
type loginView struct {
	app *App

	email    textinput.Model
	password textinput.Model
	focus    int
	loading  bool
}

func newLoginView(app *App) *loginView {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 120
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 120
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return &loginView{app: app, email: email, password: password}
}

func (v *loginView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *loginView) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			v.focus = (v.focus + 1) % 2
			if v.focus == 0 {
				v.password.Blur()
				return v.email.Focus()
			}
			v.email.Blur()
			return v.password.Focus()

		case "enter":
			return v.submit()
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	v.email, cmd = v.email.Update(msg)
	cmds = append(cmds, cmd)
	v.password, cmd = v.password.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (v *loginView) submit() tea.Cmd {
	if v.loading {
		return nil
	}
	email := strings.TrimSpace(v.email.Value())
	password := v.password.Value()
	if email == "" || password == "" {
		return v.app.flash(noticeError, "Email and password are required")
	}
	v.loading = true
	return v.app.loginCmd(email, password)
}

func (v *loginView) View(width, height int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Sign in"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Email") + "\n")
	b.WriteString(v.email.View() + "\n\n")
	b.WriteString(labelStyle.Render("Password") + "\n")
	b.WriteString(v.password.View() + "\n")
	if v.loading {
		b.WriteString("\n" + dimStyle.Render("Signing in..."))
	}
	return panelStyle.Width(min(width-2, 48)).Render(b.String())
}
