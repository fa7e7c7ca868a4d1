package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var (
		abs  bool
		list bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <executable>",
		Short: "Browse and call the static methods of an executable",
		Long: `Load an executable and pick static methods to call interactively.

When stdout is not a terminal, or with --list, the methods are printed
instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if list || !term.IsTerminal(int(os.Stdout.Fd())) {
				return listMethods(cmd, cfg, args[0], abs)
			}

			p := tea.NewProgram(newInspectModel(cmd.Context(), cfg, args[0], abs), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&abs, "abs", false, "treat the executable name as a path instead of a bin_dir entry")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "print the static methods and exit")
	return cmd
}

func listMethods(cmd *cobra.Command, cfg *config.Config, name string, abs bool) error {
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, cfg, logger, os.Exit)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	a, err := s.state.LoadExecutable(name, abs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range staticMethods(a) {
		fmt.Fprintf(out, "%s.%s(%s)\n", m.typeName, m.name, strings.Join(m.params, ", "))
	}
	return nil
}

type methodInfo struct {
	typeName string
	name     string
	params   []string
	native   bool
}

// staticMethods lists the callable static methods of a, sorted by name.
func staticMethods(a *assembly.Assembly) []methodInfo {
	var methods []methodInfo
	for _, t := range a.Types() {
		if t.Missing() {
			continue
		}
		for _, m := range t.Members() {
			if !m.IsMethod() || !m.IsStatic() {
				continue
			}
			methods = append(methods, methodInfo{
				typeName: t.FullName(),
				name:     m.Name(),
				params:   m.Params(),
				native:   m.IsNative(),
			})
		}
	}
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].typeName != methods[j].typeName {
			return methods[i].typeName < methods[j].typeName
		}
		return methods[i].name < methods[j].name
	})
	return methods
}

// convertArg maps a command-line argument to a script value.
func convertArg(value string) lua.LValue {
	switch value {
	case "true":
		return lua.LTrue
	case "false":
		return lua.LFalse
	case "nil":
		return lua.LNil
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return lua.LNumber(n)
	}
	return lua.LString(value)
}

func formatResults(values []lua.LValue) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if s, ok := v.(lua.LString); ok {
			parts[i] = strconv.Quote(string(s))
			continue
		}
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

type inspectModel struct {
	err      error
	ctx      context.Context
	cfg      *config.Config
	session  *session
	filename string
	result   string
	methods  []methodInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	abs      bool
	state    modelState
}

type modelState int

const (
	stateSelectMethod modelState = iota
	stateInputArgs
	stateShowResult
)

func newInspectModel(ctx context.Context, cfg *config.Config, filename string, abs bool) *inspectModel {
	return &inspectModel{
		ctx:      ctx,
		cfg:      cfg,
		filename: filename,
		abs:      abs,
		state:    stateSelectMethod,
	}
}

type loadedMsg struct {
	err     error
	session *session
	methods []methodInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *inspectModel) Init() tea.Cmd {
	return m.loadExecutable
}

func (m *inspectModel) loadExecutable() tea.Msg {
	// Log output would tear the alternate screen; runtime errors surface
	// as call results instead of terminating the process.
	s, err := openSession(m.ctx, m.cfg, zap.NewNop(), func(int) {})
	if err != nil {
		return loadedMsg{err: err}
	}

	a, err := s.state.LoadExecutable(m.filename, m.abs)
	if err != nil {
		s.close(m.ctx)
		return loadedMsg{err: err}
	}

	methods := staticMethods(a)
	if len(methods) == 0 {
		s.close(m.ctx)
		return loadedMsg{err: fmt.Errorf("%s has no static methods", a.Name())}
	}
	return loadedMsg{session: s, methods: methods}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.session != nil {
				m.session.close(m.ctx)
				m.session = nil
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectMethod && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectMethod && m.selected < len(m.methods)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectMethod:
				if len(m.methods) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callMethod
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callMethod

			case stateShowResult:
				m.state = stateSelectMethod
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectMethod
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectMethod
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.methods = msg.methods

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *inspectModel) prepareInputs() {
	f := m.methods[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = "number, string, true, false or nil"
		ti.Prompt = p + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *inspectModel) callMethod() tea.Msg {
	if m.session == nil {
		return callResultMsg{err: fmt.Errorf("executable not loaded")}
	}

	f := m.methods[m.selected]
	args := make([]lua.LValue, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = convertArg(input.Value())
	}

	results, err := m.session.state.InvokeStaticMethod(m.ctx, f.typeName, f.name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	if len(results) == 0 {
		return callResultMsg{result: "(no results)"}
	}
	return callResultMsg{result: formatResults(results)}
}

func (m *inspectModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.methods) == 0 {
		return "Loading executable..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Loom Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectMethod:
		b.WriteString("Select a static method to call:\n\n")
		for i, f := range m.methods {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatMethod(f)))
			} else {
				b.WriteString("  " + formatMethod(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.methods[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.typeName+"."+f.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.methods[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.typeName+"."+f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatMethod(f methodInfo) string {
	name := typeStyle.Render(f.typeName) + "." + funcStyle.Render(f.name)
	sig := name + "(" + strings.Join(f.params, ", ") + ")"
	if f.native {
		sig += " " + helpStyle.Render("native")
	}
	return sig
}
