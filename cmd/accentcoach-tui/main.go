package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"accentcoach/internal/bootstrap"
	"accentcoach/internal/domain"
	"accentcoach/internal/tui"
)

func runMain(stderr io.Writer) int {
	events := tui.NewEvents()

	// The terminal belongs to the UI; logs go to ACCENTCOACH_LOG_FILE or nowhere.
	services, err := bootstrap.Build(events, io.Discard)
	if err != nil {
		fmt.Fprintf(stderr, "accentcoach-tui: %v\n", err)
		return 1
	}
	defer services.Close()
	defer events.Close()

	events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)

	program := tea.NewProgram(tui.New(services.Controller, events), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(stderr, "accentcoach-tui: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(os.Stderr))
}
