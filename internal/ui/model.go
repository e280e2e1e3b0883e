package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"storefront/internal/sequencer"
)

// Sequencer is the part of *sequencer.Sequencer the shell drives.
type Sequencer interface {
	Render() sequencer.Frame
	Retry() bool
	Settled() <-chan struct{}
}

type frameMsg sequencer.Frame

type settledMsg struct{}

type rehydratedMsg struct{}

// Model is the bubbletea model for the shell. It shows the loading view until
// the sequencer reports ready, then hands over to the provider chain.
type Model struct {
	seq     Sequencer
	chain   *ProviderChain
	styles  Styles
	spinner spinner.Model
	frame   sequencer.Frame
	width   int
}

func NewModel(seq Sequencer, chain *ProviderChain) Model {
	styles := NewStyles(chain.Theme())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		seq:     seq,
		chain:   chain,
		styles:  styles,
		spinner: sp,
		frame:   sequencer.Frame{View: sequencer.ViewLoading},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.render())
}

// render asks the sequencer for a frame; the first call in loading starts
// the preload.
func (m Model) render() tea.Cmd {
	return func() tea.Msg {
		return frameMsg(m.seq.Render())
	}
}

func waitFor(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			if m.frame.View == sequencer.ViewFailed && m.seq.Retry() {
				m.frame = sequencer.Frame{View: sequencer.ViewLoading}
				return m, tea.Batch(m.spinner.Tick, m.render())
			}
		}
		if m.frame.View == sequencer.ViewReady {
			m.shellKey(msg.String())
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case frameMsg:
		m.frame = sequencer.Frame(msg)
		switch m.frame.View {
		case sequencer.ViewLoading:
			return m, waitFor(m.seq.Settled(), settledMsg{})
		case sequencer.ViewReady:
			return m, waitFor(m.chain.Rehydrated(), rehydratedMsg{})
		}
		return m, nil

	case settledMsg:
		return m, m.render()

	case rehydratedMsg:
		// Redraw once the persist gate opens.
		return m, nil

	case spinner.TickMsg:
		if m.frame.View != sequencer.ViewLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.frame.View {
	case sequencer.ViewReady:
		return m.chain.Render(m.width)
	case sequencer.ViewFailed:
		return m.failedView()
	}
	return m.loadingView()
}

func (m Model) loadingView() string {
	return fmt.Sprintf("\n  %s %s\n", m.spinner.View(), m.styles.Muted.Render("Loading fonts and icons…"))
}

func (m Model) failedView() string {
	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(m.styles.Error.Render("Startup failed"))
	b.WriteString("\n\n  ")
	if m.frame.Err != nil {
		b.WriteString(m.frame.Err.Error())
	}
	b.WriteString("\n\n  ")
	b.WriteString(m.styles.Muted.Render("r: retry • q: quit"))
	b.WriteString("\n")
	return b.String()
}

// shellKey handles navigation and store keys on the ready shell.
func (m Model) shellKey(key string) {
	switch key {
	case "tab":
		m.chain.NextTab()
	case "up", "k":
		m.chain.MoveCursor(-1)
	case "down", "j":
		m.chain.MoveCursor(1)
	case "a":
		m.chain.AddToCart()
	case "w":
		m.chain.ToggleWishlist()
	}
}

// Frame returns the last frame received from the sequencer.
func (m Model) Frame() sequencer.Frame {
	return m.frame
}
