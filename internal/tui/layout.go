package tui

import "github.com/charmbracelet/lipgloss"

const (
	minContentWidth   = 40
	horizontalPadding = 4
	// title, input, output, status line, help and spacing
	chromeHeight = 14
	cellGap      = 2
)

type pageLayout struct {
	windowWidth  int
	windowHeight int
	contentWidth int
	panelRows    int
}

func newPageLayout() pageLayout {
	return pageLayout{
		contentWidth: 76,
		panelRows:    3,
	}
}

// Update sizes the page for a window holding the given number of panels.
func (l *pageLayout) Update(width, height, panels int) {
	l.windowWidth = width
	l.windowHeight = height
	inner := width - horizontalPadding
	if inner < minContentWidth {
		inner = minContentWidth
	}
	l.contentWidth = inner
	if panels < 1 {
		panels = 1
	}
	usable := height - chromeHeight
	if usable < 2*panels {
		usable = 2 * panels
	}
	// every panel spends one line on its header
	rows := usable/panels - 1
	if rows < 1 {
		rows = 1
	}
	l.panelRows = rows
}

// flow packs rendered cells left to right into rows no wider than width and
// returns the cell indices of each row. A cell wider than the row gets a row
// of its own.
func flow(cells []string, width int) [][]int {
	var rows [][]int
	var current []int
	used := 0
	for i, cell := range cells {
		w := lipgloss.Width(cell)
		need := w
		if len(current) > 0 {
			need += cellGap
		}
		if len(current) > 0 && used+need > width {
			rows = append(rows, current)
			current, used = nil, 0
			need = w
		}
		current = append(current, i)
		used += need
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	return rows
}

// window picks at most limit rows out of total so that row focus stays
// visible. It returns the half-open range [start, end).
func window(total, focus, limit int) (int, int) {
	if limit <= 0 || total <= limit {
		return 0, total
	}
	start := focus - limit/2
	if start < 0 {
		start = 0
	}
	if start+limit > total {
		start = total - limit
	}
	return start, start + limit
}
