package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"gonum.org/v1/gonum/mat"

	"melspec/internal/analysis"
	"melspec/internal/audio"
	"melspec/internal/dsp"
	"melspec/internal/pipeline"
)

func testResult(n int) *pipeline.Result {
	res := &pipeline.Result{
		Band:     dsp.FilterSpec{LowHz: 100, HighHz: 7920, Order: 4},
		StepSize: 8000,
	}
	for i := range n {
		db := mat.NewDense(4, 3, []float64{-80, -80, -80, -40, -40, -40, -20, -20, -20, 0, -5, -10})
		res.Frames = append(res.Frames, analysis.Frame{DB: db, Index: i, SampleRate: 16000, NFFT: 2048, FMax: 8000})
	}
	return res
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m tea.Model, msgs ...tea.Msg) tea.Model {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func TestBrowserNavigation(t *testing.T) {
	var m tea.Model = NewBrowserModel("call.wav", testResult(3))
	m = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 60})

	tests := []struct {
		key  tea.Msg
		want int
	}{
		{tea.KeyMsg{Type: tea.KeyRight}, 1},
		{runes("l"), 2},
		{runes("n"), 2},
		{tea.KeyMsg{Type: tea.KeyLeft}, 1},
		{runes("g"), 0},
		{runes("h"), 0},
		{runes("G"), 2},
		{tea.KeyMsg{Type: tea.KeyHome}, 0},
		{tea.KeyMsg{Type: tea.KeyEnd}, 2},
	}
	for i, tt := range tests {
		m = press(t, m, tt.key)
		if got := m.(BrowserModel).Index(); got != tt.want {
			t.Fatalf("step %d (%v): index = %d, want %d", i, tt.key, got, tt.want)
		}
	}

	view := m.View()
	if !strings.Contains(view, "Frame 3/3") || !strings.Contains(view, "call.wav") {
		t.Errorf("view missing header:\n%s", view)
	}
	if !strings.Contains(view, "grunt 80-800 Hz") {
		t.Errorf("view missing band levels:\n%s", view)
	}
	if !strings.Contains(view, "@@") {
		t.Errorf("view missing heat map:\n%s", view)
	}
}

func TestBrowserQuit(t *testing.T) {
	m := NewBrowserModel("x", testResult(1))
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestBrowserEmpty(t *testing.T) {
	var m tea.Model = NewBrowserModel("x", &pipeline.Result{})
	if m.View() != "Initializing..." {
		t.Errorf("view before size = %q", m.View())
	}
	m = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 24}, tea.KeyMsg{Type: tea.KeyRight})
	if m.(BrowserModel).Index() != 0 {
		t.Error("index moved with no frames")
	}
	if !strings.Contains(m.View(), "No frames computed") {
		t.Errorf("view = %q", m.View())
	}
}

func TestDevicePicker(t *testing.T) {
	devices := []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2},
		{ID: 1, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 2, Name: "Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 96000},
	}
	var m tea.Model = NewDevicePicker(devices)
	m = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	if strings.Contains(m.View(), "Speakers") {
		t.Error("output-only device listed")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, runes("j"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	id, ok := m.(DevicePicker).Chosen()
	if !ok || id != 2 {
		t.Errorf("chosen = %d, %t; want 2, true", id, ok)
	}
	if cmd == nil {
		t.Error("enter should quit")
	}

	var cancelled tea.Model = NewDevicePicker(devices)
	cancelled = press(t, cancelled, runes("k"), tea.KeyMsg{Type: tea.KeyEsc})
	if id, ok := cancelled.(DevicePicker).Chosen(); ok || id != audio.DefaultDevice {
		t.Errorf("cancelled picker chose %d", id)
	}
}
