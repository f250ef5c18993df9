// Package tui provides the Bubble Tea expression dialog.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/exprparms/internal/dnd"
	"github.com/verte-zerg/exprparms/internal/expr"
	"github.com/verte-zerg/exprparms/internal/model"
	"github.com/verte-zerg/exprparms/internal/session"
)

const (
	tabExpression = iota
	tabParameters
)

const (
	maxNameWidth = 16
	valueWidth   = 10
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	messageStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	focusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	sliderFillStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	sliderKnobStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	sliderTrackStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
)

// Model implements the Bubble Tea expression dialog.
type Model struct {
	ctx     context.Context
	session *session.Session
	config  model.Config

	tabs      []string
	activeTab int

	input textinput.Model
	// focus 0 is the expression field, i+1 is variable i.
	focus       int
	presetIndex int

	// valueInput edits the focused variable while editing is set.
	valueInput textinput.Model
	editing    bool

	parmTable table.Model
	errMsg    string

	width  int
	height int
}

// NewModel constructs the dialog over s and shows it: variables of the
// current expression are created and the preview is applied.
func NewModel(ctx context.Context, s *session.Session, cfg model.Config) *Model {
	m := &Model{
		ctx:         ctx,
		session:     s,
		config:      cfg,
		tabs:        []string{"Expression", "Parameters"},
		presetIndex: -1,
	}
	m.initInput()
	m.valueInput = newValueInput()
	m.initParmTable()
	m.note(s.Show(ctx))
	m.refreshParmTable()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if m.editing && msg.String() != "ctrl+c" {
			cmd := m.updateValueEdit(msg)
			m.refreshParmTable()
			return m, cmd
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			if err := m.session.Cancel(m.ctx); err != nil {
				logErrf("failed to restore parameters: %v\n", err)
			}
			return m, tea.Quit
		case "enter":
			if err := m.session.Accept(m.ctx); err != nil {
				m.note(err)
				m.refreshParmTable()
				return m, nil
			}
			return m, tea.Quit
		case "tab", "shift+tab":
			m.switchTab()
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabParameters {
			cmd = m.updateParameters(msg)
		} else {
			cmd = m.updateExpression(msg)
		}
		m.refreshParmTable()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	header := m.renderHeader()
	body := m.renderBody()
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return strings.Join([]string{header, body, footer}, "\n")
	}
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	bodyHeight := maxInt(1, m.height-headerHeight-footerHeight)
	return strings.Join([]string{
		fitLines(header, m.width, headerHeight),
		fitLines(body, m.width, bodyHeight),
		fitLines(footer, m.width, footerHeight),
	}, "\n")
}

func (m *Model) initInput() {
	input := textinput.New()
	input.Prompt = "Expression: "
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	input.SetValue(m.session.Expression())
	start, length := m.session.SelectableRange()
	input.SetCursor(start + length)
	input.Focus()
	m.input = input
}

func (m *Model) setInputText(text string) {
	m.input.SetValue(text)
	m.input.CursorEnd()
}

func (m *Model) initParmTable() {
	t := table.New(
		table.WithColumns(parmColumns(0)),
		table.WithHeight(5),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	t.SetStyles(styles)
	m.parmTable = t
}

func parmColumns(width int) []table.Column {
	pathWidth := maxInt(20, width-2-2*valueWidth-4)
	return []table.Column{
		{Title: "", Width: 1},
		{Title: "Parameter", Width: pathWidth},
		{Title: "Initial", Width: valueWidth},
		{Title: "Current", Width: valueWidth},
	}
}

func (m *Model) updateLayout() {
	m.input.Width = maxInt(1, m.width-lipgloss.Width(m.input.Prompt)-1)
	m.parmTable.SetColumns(parmColumns(m.width))
	m.parmTable.SetWidth(m.width)
	m.parmTable.SetHeight(maxInt(3, m.height-8))
}

func (m *Model) switchTab() {
	m.activeTab = (m.activeTab + 1) % len(m.tabs)
	if m.activeTab == tabParameters {
		m.input.Blur()
		m.parmTable.Focus()
		return
	}
	m.parmTable.Blur()
	m.setFocus(m.focus)
}

func (m *Model) setFocus(focus int) {
	count := len(m.session.Variables())
	if focus < 0 {
		focus = 0
	}
	if focus > count {
		focus = count
	}
	m.focus = focus
	if focus == 0 {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) updateExpression(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up":
		m.setFocus(m.focus - 1)
		return nil
	case "down":
		m.setFocus(m.focus + 1)
		return nil
	case "ctrl+n":
		created, err := m.session.CreateVariables(m.ctx)
		m.note(err)
		if len(created) > 0 {
			m.session.SetMessage("Created " + strings.Join(created, ", "))
		}
		return nil
	case "ctrl+p":
		m.cyclePreset()
		return nil
	case "ctrl+s":
		if !m.session.SavePreset() {
			m.session.SetMessage("Preset not saved")
		}
		return nil
	}
	if m.focus > 0 {
		m.updateVariable(msg)
		return nil
	}
	if msg.Type == tea.KeyRunes && !expr.Valid(string(msg.Runes)) {
		return nil
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		err := m.session.SetExpression(m.ctx, after)
		if errors.Is(err, session.ErrInvalidExpression) {
			m.input.SetValue(before)
			return cmd
		}
		m.note(err)
	}
	return cmd
}

func (m *Model) updateVariable(msg tea.KeyMsg) {
	vars := m.session.Variables()
	if m.focus-1 >= len(vars) {
		m.setFocus(len(vars))
		return
	}
	v := vars[m.focus-1]
	if msg.Type == tea.KeyRunes && !msg.Paste && startsValue(msg.Runes) {
		m.startValueEdit(string(msg.Runes))
		return
	}
	switch msg.String() {
	case "left":
		m.note(m.session.SetVariable(m.ctx, v.Name, v.Value-m.config.Step))
	case "right":
		m.note(m.session.SetVariable(m.ctx, v.Name, v.Value+m.config.Step))
	case "shift+left":
		m.note(m.session.SetVariable(m.ctx, v.Name, v.Value-m.config.CoarseStep))
	case "shift+right":
		m.note(m.session.SetVariable(m.ctx, v.Name, v.Value+m.config.CoarseStep))
	case "ctrl+r":
		m.note(m.session.ResetVariable(m.ctx, v.Name))
	case "delete", "backspace":
		m.note(m.session.RemoveVariable(m.ctx, v.Name))
		m.setFocus(m.focus)
	}
}

func newValueInput() textinput.Model {
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 32
	input.Width = valueWidth
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// startsValue reports whether typed runes begin a number.
func startsValue(runes []rune) bool {
	if len(runes) == 0 {
		return false
	}
	for _, r := range runes {
		if !strings.ContainsRune("0123456789.-+eE", r) {
			return false
		}
	}
	return true
}

func (m *Model) startValueEdit(initial string) {
	m.editing = true
	m.valueInput.SetValue(initial)
	m.valueInput.CursorEnd()
	m.valueInput.Focus()
	m.input.Blur()
}

func (m *Model) stopValueEdit() {
	m.editing = false
	m.valueInput.Blur()
	m.valueInput.SetValue("")
}

// updateValueEdit handles keys while a variable value is typed in: enter
// applies the number, esc discards it.
func (m *Model) updateValueEdit(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.stopValueEdit()
		return nil
	case "enter":
		vars := m.session.Variables()
		if m.focus < 1 || m.focus > len(vars) {
			m.stopValueEdit()
			return nil
		}
		text := strings.TrimSpace(m.valueInput.Value())
		value, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
			m.errMsg = fmt.Sprintf("invalid value %q", text)
			return nil
		}
		m.stopValueEdit()
		m.note(m.session.SetVariable(m.ctx, vars[m.focus-1].Name, value))
		return nil
	}
	var cmd tea.Cmd
	m.valueInput, cmd = m.valueInput.Update(msg)
	return cmd
}

func (m *Model) cyclePreset() {
	presets := m.session.Presets()
	if len(presets) == 0 {
		m.session.SetMessage("No presets")
		return
	}
	m.presetIndex = (m.presetIndex + 1) % len(presets)
	preset := presets[m.presetIndex]
	m.note(m.session.ApplyPreset(m.ctx, preset))
	m.setInputText(m.session.Expression())
}

func (m *Model) updateParameters(msg tea.KeyMsg) tea.Cmd {
	if msg.Paste {
		paths := dnd.ParsePaths(string(msg.Runes))
		added, err := m.session.BindPaths(m.ctx, paths)
		m.note(err)
		m.session.SetMessage(fmt.Sprintf("Added %d parameter(s)", len(added)))
		return nil
	}
	switch msg.String() {
	case "delete", "backspace":
		if path, ok := m.selectedPath(); ok {
			m.note(m.session.Unbind(m.ctx, []string{path}))
		}
		return nil
	case "s":
		if path, ok := m.selectedPath(); ok {
			m.note(m.session.SetSource(path))
		}
		return nil
	}
	var cmd tea.Cmd
	m.parmTable, cmd = m.parmTable.Update(msg)
	return cmd
}

func (m *Model) selectedPath() (string, bool) {
	row := m.parmTable.SelectedRow()
	if len(row) < 2 {
		return "", false
	}
	return row[1], true
}

func (m *Model) refreshParmTable() {
	infos, err := m.session.Targets(m.ctx)
	if err != nil {
		m.note(err)
		return
	}
	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		marker := ""
		if info.Source {
			marker = "*"
		}
		rows = append(rows, table.Row{
			marker,
			info.Path,
			formatValue(info.Initial),
			formatValue(info.Current),
		})
	}
	m.parmTable.SetRows(rows)
	if cur := m.parmTable.Cursor(); cur >= len(rows) && len(rows) > 0 {
		m.parmTable.SetCursor(len(rows) - 1)
	}
}

// note records failures that are not already reflected in the session
// status. A nil error clears the previous note.
func (m *Model) note(err error) {
	if err == nil || session.IsEvalError(err) {
		m.errMsg = ""
		return
	}
	if m.session.Status().Severity == session.SeverityError && strings.HasSuffix(m.session.Status().Text, err.Error()) {
		m.errMsg = ""
		return
	}
	m.errMsg = err.Error()
}

func (m *Model) renderHeader() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	tabs := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return titleStyle.Render(m.session.Title()) + "\n" + tabs
}

func (m *Model) renderBody() string {
	if m.activeTab == tabParameters {
		if len(m.parmTable.Rows()) == 0 {
			return mutedStyle.Render("No parameters bound (paste parameter or node paths)")
		}
		return m.parmTable.View()
	}
	return m.renderExpression()
}

func (m *Model) renderExpression() string {
	lines := []string{m.input.View(), ""}
	vars := m.session.Variables()
	if len(vars) == 0 {
		lines = append(lines, mutedStyle.Render("No variables (ctrl+n to create)"))
		return strings.Join(lines, "\n")
	}
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	nameWidth := nameColumnWidth(names)
	barWidth := maxInt(10, m.width-nameWidth-valueWidth-6)
	if m.width == 0 {
		barWidth = 20
	}
	for i, v := range vars {
		prefix := "  "
		style := messageStyle
		if m.focus == i+1 {
			prefix = "> "
			style = focusStyle
		}
		label := style.Render(padName(v.Name, nameWidth))
		value := fmt.Sprintf("%*s", valueWidth, formatValue(v.Value))
		if m.editing && m.focus == i+1 {
			value = padLine(m.valueInput.View(), valueWidth)
		}
		lines = append(lines, prefix+label+" "+value+" "+sliderBar(v.Value, barWidth))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderHelp() string {
	help := "Tabs: tab  Focus: up/down  Step: left/right (shift: coarse)  Type value: 0-9 then enter  Revert: ctrl+r  Remove: del  Create: ctrl+n  Presets: ctrl+p/ctrl+s  Apply: enter  Cancel: esc"
	if m.activeTab == tabParameters {
		help = "Tabs: tab  Select: up/down  Unbind: del  Source: s  Bind: paste paths  Apply: enter  Cancel: esc"
	}
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderFooter() string {
	lines := []string{m.renderHelp()}
	status := m.session.Status()
	switch status.Severity {
	case session.SeverityError:
		lines = append(lines, errorStyle.Render(status.Text))
	case session.SeverityMessage:
		lines = append(lines, messageStyle.Render(status.Text))
	}
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
