// Package tui provides a terminal user interface for om2bms
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/om2bms/pkg/batch"
	"github.com/james-see/om2bms/pkg/config"
	"github.com/james-see/om2bms/pkg/converter"
)

// Judgement-line colors
var (
	notePink   = lipgloss.Color("#FF66AA")
	laneCyan   = lipgloss.Color("#66CCFF")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#222233")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(notePink).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(notePink).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(laneCyan).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(notePink).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(laneCyan).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	FromFormat  converter.Format
	ToFormat    converter.Format
}

var menuItems = []MenuItem{
	{Title: "OSU → BMS", Description: "Convert one osu!mania beatmap to a BMS chart", FromFormat: converter.FormatOsu, ToFormat: converter.FormatBMS},
	{Title: "OSZ → BMS", Description: "Convert every 7K/8K beatmap of a set, with its assets", FromFormat: converter.FormatOsz, ToFormat: converter.FormatBMS},
	{Title: "OSU → MIDI", Description: "Render a MIDI preview of a beatmap's notes and tempo map", FromFormat: converter.FormatOsu, ToFormat: converter.FormatMIDI},
	{Title: "Exit", Description: "Exit the application"},
}

// Model represents the TUI model
type Model struct {
	cfg          config.Config
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputs      []string
	failed       []string
	conversion   MenuItem
	err          error
	width        int
	height       int
}

// conversionDoneMsg signals conversion completion
type conversionDoneMsg struct {
	outputs []string
	failed  []string
	err     error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model converting with the options in cfg
func New(cfg config.Config) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".osu", ".osz"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(notePink)

	return Model{
		cfg:        cfg,
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateConverting
			return m, tea.Batch(m.spinner.Tick, m.performConversion())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conversionDoneMsg:
		m.state = StateResult
		m.outputs = msg.outputs
		m.failed = msg.failed
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if m.menuIndex == len(menuItems)-1 {
			return m, tea.Quit
		}
		m.conversion = menuItems[m.menuIndex]
		m.state = StateFilePicker
		m.filePicker.AllowedTypes = []string{"." + string(m.conversion.FromFormat)}
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputs = nil
		m.failed = nil
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// outputDir is the configured directory, or the input's own directory. Sets
// get a folder named after the archive.
func (m Model) outputDir() string {
	dir := m.cfg.OutputDir
	if dir == "" {
		dir = filepath.Dir(m.selectedFile)
	}
	if m.conversion.FromFormat == converter.FormatOsz {
		base := filepath.Base(m.selectedFile)
		dir = filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	return dir
}

func (m Model) performConversion() tea.Cmd {
	input, item, outDir := m.selectedFile, m.conversion, m.outputDir()
	opts := m.cfg.Options()
	return func() tea.Msg {
		if item.FromFormat == converter.FormatOsz {
			runner := batch.NewRunner(opts, m.cfg.WorkerCount(), m.cfg.TimeoutDuration(), nil)
			report, err := runner.ConvertOsz(context.Background(), input, outDir)
			if err != nil {
				return conversionDoneMsg{err: err}
			}
			var msg conversionDoneMsg
			for _, res := range report.Converted() {
				msg.outputs = append(msg.outputs, res.Output)
			}
			for _, res := range report.Failed() {
				msg.failed = append(msg.failed, fmt.Sprintf("%s: %v", filepath.Base(res.Source), res.Err))
			}
			if len(msg.outputs) == 0 {
				msg.err = fmt.Errorf("no beatmap in %s could be converted", filepath.Base(input))
			}
			return msg
		}

		var target converter.Target = converter.BMS{}
		if item.ToFormat == converter.FormatMIDI {
			target = converter.MIDI{}
		}
		out, err := converter.New(target, opts, nil).ConvertFile(input, outDir)
		if err != nil {
			return conversionDoneMsg{err: err}
		}
		return conversionDoneMsg{outputs: []string{out}}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateConverting:
		s.WriteString(m.viewConverting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT CONVERSION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(laneCyan).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT %s FILE ", strings.ToUpper(string(m.conversion.FromFormat)))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewConverting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" CONVERTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Converting %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s → %s", m.conversion.FromFormat, m.conversion.ToFormat)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Conversion failed: %s", m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Conversion complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		for _, out := range m.outputs {
			s.WriteString(fmt.Sprintf("Output: %s\n", filepath.Base(out)))
		}
	}
	for _, f := range m.failed {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render("✗ " + f))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
    ___  _ __ ___ |___ \| |__  _ __ ___  ___
   / _ \| '_ ` + "`" + ` _ \  __) | '_ \| '_ ` + "`" + ` _ \/ __|
  | (_) | | | | | |/ __/| |_) | | | | | \__ \
   \___/|_| |_| |_|_____|_.__/|_| |_| |_|___/
`
	return lipgloss.NewStyle().Foreground(notePink).Render(logo)
}

// Run starts the TUI application
func Run(cfg config.Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
