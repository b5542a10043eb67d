package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voxtype/session"
)

// TUI message types
type StateMsg struct{ State session.State }
type DeviceLineMsg struct{ Text string }
type NoticeMsg struct{ Text string }
type tickMsg time.Time

type tuiModel struct {
	commands   chan<- command
	state      session.State
	startedAt  time.Time
	now        time.Time
	hotkey     string
	deviceLine string
	notice     string
	quitting   bool
	width      int
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	standbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	frameStyle   = lipgloss.NewStyle().Padding(1, 2)
)

func newTUIModel(commands chan<- command, hotkeyLabel string) tuiModel {
	return tuiModel{commands: commands, hotkey: hotkeyLabel, now: time.Now()}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m)
}

func tuiTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) send(c command) {
	select {
	case m.commands <- c:
	default:
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "r", " ", "enter":
			m.send(cmdToggle)
		case "p":
			m.send(cmdPause)
		case "t", "v":
			m.send(cmdView)
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.send(cmdQuit)
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case StateMsg:
		if msg.State.Running && !m.state.Running {
			m.startedAt = m.now
		}
		m.state = msg.State

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case NoticeMsg:
		m.notice = msg.Text
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	switch {
	case m.quitting:
		return standbyStyle.Render("○ STOPPING")
	case m.state.Running && m.state.Paused:
		return pausedStyle.Render("⏸ PAUSED")
	case m.state.Running:
		elapsed := m.now.Sub(m.startedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		return recStyle.Render(fmt.Sprintf("● REC %s", elapsed.Truncate(time.Second)))
	}
	return standbyStyle.Render("○ STANDBY")
}

func (m tuiModel) View() string {
	lines := []string{m.statusLine()}

	if m.deviceLine != "" {
		lines = append(lines, infoStyle.Render(m.deviceLine))
	}
	if p := m.state.TranscriptPath; p != "" {
		label := "transcript: " + filepath.Base(p)
		if !m.state.Running && !m.state.HasTranscriptFile {
			label += " (nothing saved)"
		}
		lines = append(lines, infoStyle.Render(label))
	}
	if m.notice != "" {
		width := m.width - 4
		if width < 20 {
			width = 60
		}
		for _, l := range wrapText(m.notice, width) {
			lines = append(lines, noticeStyle.Render(l))
		}
	}

	lines = append(lines, "")
	help := keyStyle.Render(m.hotkey) + helpStyle.Render(" or ") + keyStyle.Render("r") + helpStyle.Render(" start/stop  ")
	if m.state.Running {
		help += keyStyle.Render("p") + helpStyle.Render(" pause  ")
	}
	if m.state.HasTranscriptFile {
		help += keyStyle.Render("t") + helpStyle.Render(" transcript  ")
	}
	help += keyStyle.Render("q") + helpStyle.Render(" quit")
	lines = append(lines, help)
	lines = append(lines, helpStyle.Render("voxtype "+version))

	return frameStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
