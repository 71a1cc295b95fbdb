package tui

import "github.com/csheth/tapwrite/internal/panel"

// displayTree is the render tree behind the panel store. The view reads it;
// only the store writes panel content into it.
type displayTree struct {
	nodes    map[panel.ID][]panel.Item
	hidden   map[panel.ID]bool
	focus    panel.ID
	selected bool
	version  int
}

func newDisplayTree() *displayTree {
	return &displayTree{
		nodes:  map[panel.ID][]panel.Item{},
		hidden: map[panel.ID]bool{},
		focus:  panel.Input,
	}
}

func (t *displayTree) Clear(node panel.ID) {
	t.nodes[node] = nil
	t.version++
}

func (t *displayTree) AppendChild(node panel.ID, item panel.Item) {
	t.nodes[node] = append(t.nodes[node], item)
	t.version++
}

func (t *displayTree) SetVisible(node panel.ID, visible bool) {
	t.hidden[node] = !visible
	t.version++
}

func (t *displayTree) Focus(node panel.ID) {
	if t.focus != node {
		t.selected = false
	}
	t.focus = node
}

// SelectAll marks the node's content as selected. Only the input has
// selectable content; the next edit replaces it.
func (t *displayTree) SelectAll(node panel.ID) {
	if node == panel.Input {
		t.selected = true
	}
}

func (t *displayTree) children(node panel.ID) []panel.Item {
	return t.nodes[node]
}

func (t *displayTree) visible(node panel.ID) bool {
	return !t.hidden[node]
}

// takeSelection reports whether the input content was selected and drops
// the selection.
func (t *displayTree) takeSelection() bool {
	selected := t.selected
	t.selected = false
	return selected
}
