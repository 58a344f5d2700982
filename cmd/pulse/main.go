// cmd/pulse/main.go
//
// Entry point for the pulse terminal client. It loads configuration,
// opens the log file, restores any persisted session, and hands control
// to the TUI.
package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/feedbackhq/pulse/internal/api"
	"github.com/feedbackhq/pulse/internal/config"
	"github.com/feedbackhq/pulse/internal/logging"
	"github.com/feedbackhq/pulse/internal/session"
	"github.com/feedbackhq/pulse/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitPulseDir(cfg.Home); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing %s directory: %v\n", config.PulseDir, err)
		os.Exit(1)
	}

	// Logs go to a file, never the terminal: the TUI owns the screen.
	log, err := logging.New(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("pulse starting",
		zap.String("config", cfg.ConfigPath()),
		zap.String("api_base_url", cfg.APIBaseURL))

	sessions := session.NewStore(cfg.CredentialsPath(), log)
	client, err := api.New(cfg.APIBaseURL, time.Duration(cfg.RequestTimeoutSeconds)*time.Second, sessions, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring API client: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(
		tui.NewApp(cfg, sessions, client, log),
		tea.WithAltScreen(),
	)
	if err := runProgram(p); err != nil {
		log.Error("program terminated", zap.Error(err))
		log.Sync()
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// program is the slice of tea.Program that main runs.
type program interface {
	Run() (tea.Model, error)
}

// runProgram runs the TUI and converts a panic escaping the update loop
// into an error, so a crash prints a diagnostic on stderr instead of
// leaving a blank screen.
func runProgram(p program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	_, err = p.Run()
	return err
}
