// Package tui holds the optional interactive screens flashkit shows when a
// command is run with --interactive: a download progress bar and a device
// picker list, both adapted from the teacher's bubbletea screen pattern.
// Whether stdout is a terminal is not checked.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// ProgressMsg reports bytes sent so far against the download's declared
// total size. The caller streaming a download pushes one of these after
// each chunk handed to the DownloadStreamer.
type ProgressMsg struct {
	Sent, Total uint32
}

// DoneMsg reports the terminal outcome of the streamed operation: the
// completed Finish/Flash call, or the error that aborted it.
type DoneMsg struct {
	Err error
}

// FlashProgress drives a bubbles progress bar from a channel of
// ProgressMsg/DoneMsg values pushed by a download running on another
// goroutine, mirroring the teacher's InstallProgressScreen.
type FlashProgress struct {
	partition string
	updates   <-chan tea.Msg
	progress  progress.Model
	status    string
	done      bool
	err       error
}

// NewFlashProgress builds a FlashProgress reading from updates until it is
// closed or a DoneMsg arrives.
func NewFlashProgress(partition string, updates <-chan tea.Msg) FlashProgress {
	return FlashProgress{
		partition: partition,
		updates:   updates,
		progress:  progress.New(progress.WithDefaultGradient()),
		status:    "Starting download...",
	}
}

// Err returns the error the streamed operation finished with, if any. It is
// only meaningful after the bubbletea program has returned.
func (m FlashProgress) Err() error { return m.err }

func (m FlashProgress) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m FlashProgress) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{}
		}
		return msg
	}
}

func (m FlashProgress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 10
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case ProgressMsg:
		m.status = fmt.Sprintf("%d / %d bytes", msg.Sent, msg.Total)
		var pct float64
		if msg.Total > 0 {
			pct = float64(msg.Sent) / float64(msg.Total)
		}
		cmd := m.progress.SetPercent(pct)
		return m, tea.Batch(cmd, m.waitForUpdate())

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m FlashProgress) View() string {
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("  %s\n", errorStyle.Render(fmt.Sprintf("Error flashing %s: %s", m.partition, m.err)))
		}
		return fmt.Sprintf("  %s\n", titleStyle.Render("Flashed "+m.partition))
	}
	return fmt.Sprintf("  %s\n\n  %s\n\n  %s\n",
		titleStyle.Render("Flashing "+m.partition),
		m.progress.View(),
		dimStyle.Render(m.status))
}
