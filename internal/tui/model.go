package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/tapwrite/internal/compose"
	"github.com/csheth/tapwrite/internal/panel"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Lookup      compose.Lookup
	Messenger   Messenger
	Mode        compose.Mode
	HistoryPath string
	SessionID   string
	Logger      *zap.Logger
	// Context bounds every background lookup; cancel it to abandon them.
	Context context.Context
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	return newModel(config)
}

type model struct {
	config   Config
	logger   *zap.Logger
	tree     *displayTree
	store    *panel.Store
	pipeline *compose.Controller
	jobs     *jobBus
	launch   func(jobKind, jobRunner) tea.Cmd

	keys    keyMap
	help    help.Model
	input   textinput.Model
	spinner spinner.Model
	layout  pageLayout

	cursors      map[panel.ID]int
	running      map[string]jobKind
	infoMessage  string
	errorMessage string
	helpVisible  bool

	// lookupNotice marks infoMessage as a retry hint that the next
	// successful lookup clears.
	lookupNotice bool
}

func newModel(config Config) *model {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "type pinyin…"
	input.CharLimit = 0
	input.Width = 60
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	tree := newDisplayTree()
	store := panel.NewStore(tree)
	pipeline := compose.New(config.Lookup, store, compose.Options{Mode: config.Mode, Logger: logger})

	m := &model{
		config:   config,
		logger:   logger.Named("tui"),
		tree:     tree,
		store:    store,
		pipeline: pipeline,
		jobs:     newJobBus(config.Context, logger),
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    input,
		spinner:  spin,
		layout:   newPageLayout(),
		cursors:  map[panel.ID]int{},
		running:  map[string]jobKind{},
	}
	m.launch = m.jobs.Start
	if pipeline.Mode() == compose.ModeBCI {
		m.infoMessage = "Tab to the letter board and pick letters to look up words."
	} else {
		m.infoMessage = "Type pinyin to look up candidates. Tab moves between panels."
	}
	return m
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.syncFocus()
	return m, cmd
}

func (m *model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.pipeline.Busy() || len(m.running) > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return cmd
		}
		return nil
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height, len(m.visiblePanels()))
		m.input.Width = m.layout.contentWidth - 4
		m.help.Width = m.layout.contentWidth
		return nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case jobStartedMsg:
		m.running[msg.id] = msg.kind
		return m.spinner.Tick
	case jobDoneMsg:
		delete(m.running, msg.id)
		return m.handleJobResult(msg.payload)
	}
	return nil
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.logger.Info("quit requested", zap.Int("running_jobs", len(m.running)))
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.helpVisible = !m.helpVisible
		return nil
	case key.Matches(msg, m.keys.Retry):
		pending := m.pipeline.Retry()
		if pending == nil {
			m.infoMessage = "Nothing to retry."
			return nil
		}
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Retrying %s %q…", pending.Stage, pending.Key)
		m.lookupNotice = true
		return m.start(pending)
	case key.Matches(msg, m.keys.HideSplit):
		m.pipeline.HideSplit()
		return nil
	case key.Matches(msg, m.keys.Send):
		return m.sendOutput()
	case key.Matches(msg, m.keys.WeChat):
		if m.config.Messenger == nil {
			m.errorMessage = "messaging is not configured"
			return nil
		}
		return m.launch(jobKindWeChat, weChatJob(m.config.Messenger))
	case key.Matches(msg, m.keys.NextPanel):
		m.cycleFocus(1)
		return nil
	case key.Matches(msg, m.keys.PrevPanel):
		m.cycleFocus(-1)
		return nil
	case key.Matches(msg, m.keys.Back):
		m.tree.Focus(panel.Input)
		return nil
	}

	if token, ok := m.keys.token(msg); ok {
		m.pipeline.Command(token)
		m.syncInput()
		return nil
	}
	if m.tree.focus == panel.Input {
		return m.handleInputKey(msg)
	}
	return m.handlePanelKey(msg)
}

func (m *model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyEnter {
		return m.start(m.pipeline.Trigger())
	}
	before := m.input.Value()
	if m.tree.takeSelection() {
		switch msg.Type {
		case tea.KeyRunes, tea.KeySpace:
			m.input.SetValue("")
		case tea.KeyBackspace, tea.KeyDelete:
			m.input.SetValue("")
			return m.edited(before)
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return tea.Batch(cmd, m.edited(before))
}

// edited forwards a changed input value to the pipeline.
func (m *model) edited(before string) tea.Cmd {
	value := m.input.Value()
	if value == before {
		return nil
	}
	return m.start(m.pipeline.EditPrimary(value))
}

func (m *model) handlePanelKey(msg tea.KeyMsg) tea.Cmd {
	id := m.tree.focus
	count := len(m.tree.children(id))
	cursor := m.cursors[id]
	switch {
	case key.Matches(msg, m.keys.Left):
		cursor--
	case key.Matches(msg, m.keys.Right):
		cursor++
	case key.Matches(msg, m.keys.Up):
		cursor = m.rowStep(id, cursor, -1)
	case key.Matches(msg, m.keys.Down):
		cursor = m.rowStep(id, cursor, 1)
	case key.Matches(msg, m.keys.Pick):
		pending := m.pipeline.Select(id, cursor)
		m.syncInput()
		m.clampCursors()
		return m.startAll(pending)
	default:
		if msg.Type == tea.KeyRunes {
			m.tree.Focus(panel.Input)
			m.syncFocus()
			return m.handleInputKey(msg)
		}
		return nil
	}
	m.cursors[id] = clamp(cursor, 0, count-1)
	return nil
}

// rowStep moves the cursor to the neighbouring rendered row, keeping the
// column where possible.
func (m *model) rowStep(id panel.ID, cursor, dir int) int {
	if listPanel(id) {
		return cursor + dir
	}
	rows := flow(m.renderCells(id, -1), m.layout.contentWidth)
	for r, row := range rows {
		for c, idx := range row {
			if idx != cursor {
				continue
			}
			target := r + dir
			if target < 0 || target >= len(rows) {
				return cursor
			}
			next := rows[target]
			if c >= len(next) {
				c = len(next) - 1
			}
			return next[c]
		}
	}
	return cursor
}

func (m *model) handleJobResult(payload tea.Msg) tea.Cmd {
	switch msg := payload.(type) {
	case lookupResultMsg:
		m.applyLookup(msg.done)
	case sendResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("send failed: %v", msg.err)
			m.infoMessage = "The message was kept in history. Press ctrl+s to send again."
		} else {
			m.errorMessage = ""
			m.infoMessage = fmt.Sprintf("Sent %q.", msg.text)
		}
		if msg.saveErr != nil {
			m.errorMessage = joinNonEmpty([]string{m.errorMessage, fmt.Sprintf("history not saved: %v", msg.saveErr)})
		}
	case weChatResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("messenger failed: %v", msg.err)
		} else {
			m.infoMessage = "Messenger window requested."
		}
	}
	return nil
}

func (m *model) applyLookup(done compose.Completion) {
	if !m.pipeline.Complete(done) {
		return
	}
	if done.Err != nil {
		m.errorMessage = fmt.Sprintf("%s %q failed: %v", done.Stage, done.Key, done.Err)
		m.infoMessage = "Press ctrl+r to retry."
		m.lookupNotice = true
		return
	}
	m.errorMessage = ""
	if m.lookupNotice {
		m.infoMessage = ""
		m.lookupNotice = false
	}
	m.clampCursors()
}

func (m *model) sendOutput() tea.Cmd {
	text := m.pipeline.Output()
	if strings.TrimSpace(text) == "" {
		m.infoMessage = "Nothing to send yet."
		return nil
	}
	if m.config.Messenger == nil {
		m.errorMessage = "sending is not configured"
		return nil
	}
	m.infoMessage = "Sending…"
	return m.launch(jobKindSend, sendJob(m.config.Messenger, text, m.config.HistoryPath, m.config.SessionID, m.logger))
}

func (m *model) start(p *compose.Pending) tea.Cmd {
	if p == nil {
		return nil
	}
	return m.launch(kindForStage(p.Stage), lookupJob(p))
}

func (m *model) startAll(pending []*compose.Pending) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(pending))
	for _, p := range pending {
		cmds = append(cmds, m.start(p))
	}
	return tea.Batch(cmds...)
}

// syncInput copies the primary buffer into the input widget after commands
// changed it behind the widget's back.
func (m *model) syncInput() {
	if m.input.Value() != m.pipeline.Primary() {
		m.input.SetValue(m.pipeline.Primary())
		m.input.CursorEnd()
	}
}

// syncFocus keeps the widget focus in line with the display tree and moves
// focus off panels that went away.
func (m *model) syncFocus() {
	if m.tree.focus != panel.Input {
		if !m.tree.visible(m.tree.focus) || len(m.tree.children(m.tree.focus)) == 0 {
			m.tree.Focus(panel.Input)
		}
	}
	if m.tree.focus == panel.Input {
		if !m.input.Focused() {
			m.input.Focus()
		}
		return
	}
	m.input.Blur()
}

func (m *model) visiblePanels() []panel.ID {
	ids := make([]panel.ID, 0, len(m.store.IDs()))
	for _, id := range m.store.IDs() {
		if m.tree.visible(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *model) cycleFocus(dir int) {
	order := []panel.ID{panel.Input}
	for _, id := range m.visiblePanels() {
		if len(m.tree.children(id)) > 0 {
			order = append(order, id)
		}
	}
	current := 0
	for i, id := range order {
		if id == m.tree.focus {
			current = i
			break
		}
	}
	next := (current + dir + len(order)) % len(order)
	m.tree.Focus(order[next])
}

func (m *model) clampCursors() {
	for id, cursor := range m.cursors {
		m.cursors[id] = clamp(cursor, 0, len(m.tree.children(id))-1)
	}
}

func clamp(value, low, high int) int {
	if high < low {
		return low
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
