// Package tui provides the terminal frame browser and device picker.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"melspec/internal/analysis"
	"melspec/internal/pipeline"
	"melspec/internal/render"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F25D94"))
)

// heatMapRows is the number of text lines used for the mel axis.
const heatMapRows = 32

type browserKeys struct {
	Next, Prev, First, Last, Quit key.Binding
}

var defaultBrowserKeys = browserKeys{
	Next:  key.NewBinding(key.WithKeys("right", "l", "n")),
	Prev:  key.NewBinding(key.WithKeys("left", "h", "p")),
	First: key.NewBinding(key.WithKeys("home", "g")),
	Last:  key.NewBinding(key.WithKeys("end", "G")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

// BrowserModel is the Bubble Tea model for stepping through the frames of
// one pipeline run.
type BrowserModel struct {
	source   string
	result   *pipeline.Result
	index    int
	keys     browserKeys
	viewport viewport.Model
	ready    bool
}

// NewBrowserModel creates a browser over res.
func NewBrowserModel(source string, res *pipeline.Result) BrowserModel {
	return BrowserModel{source: source, result: res, keys: defaultBrowserKeys}
}

// Index returns the selected frame position.
func (m BrowserModel) Index() int { return m.index }

func (m BrowserModel) Init() tea.Cmd { return nil }

func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderFrame())

	case tea.KeyMsg:
		last := len(m.result.Frames) - 1
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			m.index = min(m.index+1, max(last, 0))
		case key.Matches(msg, m.keys.Prev):
			m.index = max(m.index-1, 0)
		case key.Matches(msg, m.keys.First):
			m.index = 0
		case key.Matches(msg, m.keys.Last):
			m.index = max(last, 0)
		}
		if m.ready {
			m.viewport.SetContent(m.renderFrame())
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m BrowserModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("melspec " + m.source)
	help := infoStyle.Render("←/→: Frame • g/G: First/Last • ↑/↓: Scroll • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m BrowserModel) renderFrame() string {
	res := m.result
	var sb strings.Builder
	fmt.Fprintf(&sb, "Band %s, trimmed %d samples (top_db %.1f, adaptive %t)\n",
		res.Band, res.Trim.Removed, res.Trim.TopDB, res.Trim.Adaptive)
	if len(res.Failed) > 0 {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("%d frames skipped", len(res.Failed))))
		sb.WriteString("\n")
	}
	if len(res.Frames) == 0 {
		sb.WriteString("\nNo frames computed.")
		return sb.String()
	}

	f := res.Frames[m.index]
	st := f.Stats()
	mels, cols := f.Dims()
	sb.WriteString(highlightStyle.Render(fmt.Sprintf("Frame %d/%d (index %d, starts %.2fs)",
		m.index+1, len(res.Frames), f.Index, startSeconds(f, res.StepSize))))
	fmt.Fprintf(&sb, "\n%d mel bands x %d columns, %.0f-%.0f Hz\n", mels, cols, f.FMin, f.FMax)
	fmt.Fprintf(&sb, "min %.1f dB  mean %.1f dB  max %.1f dB  peak band %d\n", st.Min, st.Mean, st.Max, st.PeakBand)
	if levels, err := analysis.BandLevels(f, analysis.VocalBands); err == nil {
		for _, l := range levels {
			fmt.Fprintf(&sb, "%s %.0f-%.0f Hz: %.1f dB  ", l.Name, l.LowHz, l.HighHz, l.MeanDB)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(heatMap(f, cols, heatMapRows))
	return sb.String()
}

func startSeconds(f analysis.Frame, step int) float64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return float64(f.Index*step) / float64(f.SampleRate)
}

// heatMap draws the frame with two characters per column, coloured along
// the viridis ramp.
func heatMap(f analysis.Frame, width, height int) string {
	var sb strings.Builder
	for _, row := range render.HeatMap(f, width, height) {
		for _, c := range row {
			g := string([]byte{c.Glyph, c.Glyph})
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(render.Viridis.At(c.Level).Hex())).Render(g))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Browse runs the frame browser until the user quits.
func Browse(source string, res *pipeline.Result) error {
	p := tea.NewProgram(NewBrowserModel(source, res), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
