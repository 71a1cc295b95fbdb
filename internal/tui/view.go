package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/tapwrite/internal/compose"
	"github.com/csheth/tapwrite/internal/panel"
	"github.com/csheth/tapwrite/internal/shaper"
)

var panelTitles = map[panel.ID]string{
	panel.Commands:   "Commands",
	panel.Candidates: "Candidates",
	panel.Words:      "Words",
	panel.Sentences:  "Sentences",
	panel.Fragments:  "Fragments",
	panel.Chars:      "Letters",
	panel.Dynamic1:   "Words",
	panel.Dynamic2:   "Follow-ups",
}

const fragmentsHint = "Pick fragments to append them. ctrl+g hides this area."

func (m *model) View() string {
	panels := make([]string, 0, len(m.store.IDs()))
	for _, id := range m.visiblePanels() {
		panels = append(panels, m.panelView(id))
	}
	parts := []string{
		m.headerView(),
		joinLines([]string{m.inputView(), m.outputView()}),
		joinLines(panels),
		m.statusView(),
	}
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(wordwrap.String(m.errorMessage, m.layout.contentWidth)))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(wordwrap.String(m.infoMessage, m.layout.contentWidth)))
	}
	m.help.ShowAll = m.helpVisible
	helpView := m.help.View(m.keys)
	if m.helpVisible {
		helpView = helpBoxStyle.Render(helpView)
	}
	parts = append(parts, helpView)
	return joinNonEmpty(parts)
}

func (m *model) headerView() string {
	return titleStyle.Render("tapwrite") + helperStyle.Render(fmt.Sprintf("  %s mode", m.pipeline.Mode()))
}

func (m *model) inputView() string {
	value := m.input.View()
	if m.tree.focus == panel.Input && m.tree.selected && m.input.Value() != "" {
		value = m.input.Prompt + selectionStyle.Render(m.input.Value())
	}
	return joinLines([]string{m.header(panel.Input, "Input", ""), value})
}

func (m *model) outputView() string {
	body := m.pipeline.Output()
	if body == "" {
		body = helperStyle.Render("composed text appears here")
	} else {
		body = wordwrap.String(body, m.layout.contentWidth-4)
	}
	return outputStyle.Width(m.layout.contentWidth).Render(body)
}

func (m *model) header(id panel.ID, title, suffix string) string {
	label := sectionHeaderStyle.Render(title)
	if m.tree.focus == id {
		label = focusedHeaderStyle.Render(title)
	}
	if suffix == "" {
		return label
	}
	return label + " " + suffix
}

func (m *model) panelView(id panel.ID) string {
	items := m.tree.children(id)
	suffix := helperStyle.Render(fmt.Sprintf("%d/%d", len(items), m.store.Capacity(id)))
	if status := m.stageStatus(id); status != "" {
		suffix += " " + status
	}
	lines := []string{m.header(id, panelTitles[id], suffix)}
	if id == panel.Fragments && m.tree.visible(panel.FragmentsHint) {
		lines = append(lines, helperStyle.Render(fragmentsHint))
	}
	if len(items) == 0 {
		lines = append(lines, helperStyle.Render("  –"))
		return joinLines(lines)
	}

	cursor := -1
	if m.tree.focus == id {
		cursor = m.cursors[id]
	}
	cells := m.renderCells(id, cursor)
	if listPanel(id) {
		focusRow := cursor
		if focusRow < 0 {
			focusRow = 0
		}
		start, end := window(len(cells), focusRow, m.layout.panelRows)
		for _, cell := range cells[start:end] {
			lines = append(lines, "  "+truncate.StringWithTail(cell, uint(m.layout.contentWidth-2), "…"))
		}
		return joinLines(lines)
	}

	rows := flow(cells, m.layout.contentWidth-2)
	focusRow := 0
	for r, row := range rows {
		for _, idx := range row {
			if idx == cursor {
				focusRow = r
			}
		}
	}
	start, end := window(len(rows), focusRow, m.layout.panelRows)
	for _, row := range rows[start:end] {
		rendered := make([]string, len(row))
		for i, idx := range row {
			rendered[i] = cells[idx]
		}
		lines = append(lines, "  "+strings.Join(rendered, strings.Repeat(" ", cellGap)))
	}
	return joinLines(lines)
}

func (m *model) renderCells(id panel.ID, cursor int) []string {
	items := m.tree.children(id)
	cells := make([]string, len(items))
	for i, item := range items {
		if i == cursor {
			plain := shaper.StripMarkup(item.Display)
			if item.Pinyin != "" {
				plain += " " + item.Pinyin
			}
			cells[i] = currentItemStyle.Render(plain)
			continue
		}
		cell := renderMarkup(item.Display)
		if item.Pinyin != "" {
			cell += " " + pinyinStyle.Render(item.Pinyin)
		}
		cells[i] = cell
	}
	return cells
}

func (m *model) stageStatus(id panel.ID) string {
	stage, ok := stageForPanel(id)
	if !ok {
		return ""
	}
	state := m.pipeline.State(stage)
	switch state.Status {
	case compose.StatusPending:
		return m.spinner.View() + helperStyle.Render(fmt.Sprintf(" %q", state.Key))
	case compose.StatusFailed:
		return failedBadgeStyle.Render("failed") + helperStyle.Render(" ctrl+r retries")
	default:
		return ""
	}
}

func (m *model) statusView() string {
	stats := []string{
		fmt.Sprintf("Stage %s", m.pipeline.Stage()),
		fmt.Sprintf("Output %d chars", len([]rune(m.pipeline.Output()))),
	}
	if n := len(m.running); n > 0 {
		stats = append(stats, fmt.Sprintf("%s %d running", m.spinner.View(), n))
	}
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func stageForPanel(id panel.ID) (compose.Stage, bool) {
	switch id {
	case panel.Candidates, panel.Dynamic1:
		return compose.StageQuerying, true
	case panel.Sentences, panel.Dynamic2:
		return compose.StageSuggesting, true
	case panel.Fragments:
		return compose.StageSplitting, true
	default:
		return compose.StageIdle, false
	}
}

// listPanel reports whether the panel shows one item per line.
func listPanel(id panel.ID) bool {
	return id == panel.Sentences
}

// renderMarkup drops tags and highlights the text they enclose.
func renderMarkup(text string) string {
	matches := shaper.MarkupTag.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	depth, last := 0, 0
	emit := func(segment string) {
		if segment == "" {
			return
		}
		if depth > 0 {
			b.WriteString(markupStyle.Render(segment))
			return
		}
		b.WriteString(segment)
	}
	for _, match := range matches {
		emit(text[last:match[0]])
		closing := match[3] > match[2]
		switch {
		case closing && depth > 0:
			depth--
		case !closing && !strings.HasSuffix(text[match[0]:match[1]], "/>"):
			depth++
		}
		last = match[1]
	}
	emit(text[last:])
	return b.String()
}

func joinNonEmpty(parts []string) string {
	return joinWith(parts, "\n\n")
}

func joinLines(parts []string) string {
	return joinWith(parts, "\n")
}

func joinWith(parts []string, sep string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, sep)
}
