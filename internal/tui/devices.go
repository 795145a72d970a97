package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"melspec/internal/audio"
)

// ErrNoSelection is returned when the picker is closed without choosing.
var ErrNoSelection = errors.New("no input device selected")

// DevicePicker is the Bubble Tea model for choosing a capture device.
type DevicePicker struct {
	devices       []audio.Device
	selectedIndex int
	chosen        int
	done          bool
	viewport      viewport.Model
	ready         bool
}

// NewDevicePicker lists the input-capable devices among devices.
func NewDevicePicker(devices []audio.Device) DevicePicker {
	var inputs []audio.Device
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return DevicePicker{devices: inputs, chosen: audio.DefaultDevice}
}

// Chosen returns the selected device ID and whether one was picked.
func (m DevicePicker) Chosen() (int, bool) { return m.chosen, m.done }

func (m DevicePicker) Init() tea.Cmd { return nil }

func (m DevicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))):
			return m, tea.Quit
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			if len(m.devices) > 0 {
				m.chosen = m.devices[m.selectedIndex].ID
				m.done = true
				return m, tea.Quit
			}
		}
		if m.ready {
			m.viewport.SetContent(m.renderDevices())
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m DevicePicker) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Select Input Device")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Record • q: Cancel")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePicker) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}
	var sb strings.Builder
	for i, d := range m.devices {
		info := fmt.Sprintf("[%d] %s\n    Input channels: %d, default sample rate: %.0f Hz\n",
			d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice lets the user choose a capture device interactively.
func PickDevice() (int, error) {
	devices, err := audio.GetDevices()
	if err != nil {
		return audio.DefaultDevice, err
	}
	final, err := tea.NewProgram(NewDevicePicker(devices), tea.WithAltScreen()).Run()
	if err != nil {
		return audio.DefaultDevice, err
	}
	id, ok := final.(DevicePicker).Chosen()
	if !ok {
		return audio.DefaultDevice, ErrNoSelection
	}
	return id, nil
}
