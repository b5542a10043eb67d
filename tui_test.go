package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voxtype/session"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTUIKeysSendCommands(t *testing.T) {
	tests := []struct {
		key  string
		want command
	}{
		{"r", cmdToggle},
		{" ", cmdToggle},
		{"enter", cmdToggle},
		{"p", cmdPause},
		{"t", cmdView},
		{"v", cmdView},
		{"q", cmdQuit},
		{"esc", cmdQuit},
		{"ctrl+c", cmdQuit},
	}
	for _, tt := range tests {
		commands := make(chan command, 1)
		m := newTUIModel(commands, `ctrl+alt+\`)
		m.Update(keyMsg(tt.key))
		select {
		case got := <-commands:
			if got != tt.want {
				t.Errorf("key %q sent %s, want %s", tt.key, got, tt.want)
			}
		default:
			t.Errorf("key %q sent nothing", tt.key)
		}
	}
}

func TestTUIQuitIgnoresFurtherKeys(t *testing.T) {
	commands := make(chan command, 4)
	m := newTUIModel(commands, "f9")
	next, _ := m.Update(keyMsg("q"))
	next, _ = next.Update(keyMsg("r"))
	if len(commands) != 1 {
		t.Fatalf("queued %d commands, want 1", len(commands))
	}
	if !strings.Contains(next.(tuiModel).statusLine(), "STOPPING") {
		t.Errorf("status = %q", next.(tuiModel).statusLine())
	}
}

func TestTUIFullCommandChannelDoesNotBlock(t *testing.T) {
	commands := make(chan command)
	m := newTUIModel(commands, "f9")
	done := make(chan struct{})
	go func() {
		m.Update(keyMsg("r"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Update blocked on a full command channel")
	}
}

func TestTUIStatusLine(t *testing.T) {
	m := newTUIModel(make(chan command, 1), "f9")
	if s := m.statusLine(); !strings.Contains(s, "STANDBY") {
		t.Errorf("idle status = %q", s)
	}

	start := time.Date(2026, 10, 19, 9, 30, 0, 0, time.Local)
	next, _ := m.Update(tickMsg(start))
	next, _ = next.Update(StateMsg{State: session.State{Running: true, SessionID: "20261019_093000"}})
	next, _ = next.Update(tickMsg(start.Add(65 * time.Second)))
	if s := next.(tuiModel).statusLine(); !strings.Contains(s, "REC 1m5s") {
		t.Errorf("running status = %q", s)
	}

	next, _ = next.Update(StateMsg{State: session.State{Running: true, Paused: true}})
	if s := next.(tuiModel).statusLine(); !strings.Contains(s, "PAUSED") {
		t.Errorf("paused status = %q", s)
	}
}

func TestTUIViewShowsTranscriptAndNotice(t *testing.T) {
	m := newTUIModel(make(chan command, 1), "f9")
	next, _ := m.Update(StateMsg{State: session.State{
		HasTranscriptFile: true,
		TranscriptPath:    "transcripts/transcript_20261019_093000.txt",
	}})
	next, _ = next.Update(DeviceLineMsg{Text: "mic: USB Microphone"})
	next, _ = next.Update(NoticeMsg{Text: "Hotkey disabled"})
	view := next.View()
	for _, want := range []string{"transcript_20261019_093000.txt", "USB Microphone", "Hotkey disabled", "transcript"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	next, _ = next.Update(StateMsg{State: session.State{TranscriptPath: "transcripts/transcript_x.txt"}})
	if view := next.View(); !strings.Contains(view, "nothing saved") {
		t.Errorf("view should flag an empty session:\n%s", view)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"hello world again", 8, []string{"hello", "world", "again"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}
