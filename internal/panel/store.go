// Package panel owns the on-screen candidate panels. The Store is the only
// code allowed to touch the display tree.
package panel

// ID names a display node.
type ID string

const (
	Input         ID = "input"
	Commands      ID = "commands"
	Candidates    ID = "candidates"
	Words         ID = "words"
	Sentences     ID = "sentences"
	Fragments     ID = "fragments"
	FragmentsHint ID = "fragments-hint"
	Chars         ID = "chars"
	Dynamic1      ID = "dynamic-1"
	Dynamic2      ID = "dynamic-2"
)

const (
	// PrimaryCapacity bounds candidate, sentence and fragment panels.
	PrimaryCapacity = 100
	// AggregateCapacity bounds the panel collecting every shown or clicked word.
	AggregateCapacity = 50
)

// Item is one selectable entry. Pinyin is empty for plain tokens.
type Item struct {
	Display string
	Pinyin  string
}

// SelectFunc reacts to the user picking an item.
type SelectFunc func(Item)

// Display is the render tree the store drives.
type Display interface {
	Clear(node ID)
	AppendChild(node ID, item Item)
	SetVisible(node ID, visible bool)
	Focus(node ID)
	SelectAll(node ID)
}

// Panel is a bounded list of items plus the reaction bound to them.
type Panel struct {
	ID       ID
	Capacity int
	items    []Item
	onSelect SelectFunc
}

// Store tracks the live panels.
type Store struct {
	display Display
	panels  map[ID]*Panel
	order   []ID
	hidden  map[ID]bool
}

// NewStore returns an empty store rendering into display.
func NewStore(display Display) *Store {
	return &Store{
		display: display,
		panels:  map[ID]*Panel{},
		hidden:  map[ID]bool{},
	}
}

// Register declares a panel. Registering an existing id only updates its
// capacity; items already shown stay.
func (s *Store) Register(id ID, capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	if p, ok := s.panels[id]; ok {
		p.Capacity = capacity
		return
	}
	s.panels[id] = &Panel{ID: id, Capacity: capacity}
	s.order = append(s.order, id)
}

// IDs lists registered panels in registration order.
func (s *Store) IDs() []ID {
	return append([]ID(nil), s.order...)
}

// Clear drops every item of the panel and its binding. Clearing an empty or
// unknown panel is a no-op.
func (s *Store) Clear(id ID) {
	p, ok := s.panels[id]
	if !ok {
		return
	}
	p.items = nil
	p.onSelect = nil
	s.display.Clear(id)
}

// Populate replaces the panel's items and binds onSelect to them. Items past
// the capacity are dropped. It returns how many items were rendered.
func (s *Store) Populate(id ID, items []Item, onSelect SelectFunc) int {
	p, ok := s.panels[id]
	if !ok {
		return 0
	}
	s.Clear(id)
	p.onSelect = onSelect
	for _, item := range items {
		if len(p.items) >= p.Capacity {
			break
		}
		s.add(p, item)
	}
	return len(p.items)
}

// AppendOne adds a single item if the panel still has room.
func (s *Store) AppendOne(id ID, item Item, onSelect SelectFunc) bool {
	p, ok := s.panels[id]
	if !ok || len(p.items) >= p.Capacity {
		return false
	}
	if onSelect != nil {
		p.onSelect = onSelect
	}
	s.add(p, item)
	return true
}

func (s *Store) add(p *Panel, item Item) {
	p.items = append(p.items, item)
	s.display.AppendChild(p.ID, item)
}

// Select fires the panel's binding for the item at index. It reports false
// when there is nothing to select.
func (s *Store) Select(id ID, index int) bool {
	p, ok := s.panels[id]
	if !ok || index < 0 || index >= len(p.items) || p.onSelect == nil {
		return false
	}
	// The handler may repopulate this very panel.
	item, handler := p.items[index], p.onSelect
	handler(item)
	return true
}

// Items returns a copy of the panel's current items.
func (s *Store) Items(id ID) []Item {
	p, ok := s.panels[id]
	if !ok {
		return nil
	}
	return append([]Item(nil), p.items...)
}

// Len reports how many items the panel holds.
func (s *Store) Len(id ID) int {
	if p, ok := s.panels[id]; ok {
		return len(p.items)
	}
	return 0
}

// Capacity reports the panel's limit, or 0 for unknown panels.
func (s *Store) Capacity(id ID) int {
	if p, ok := s.panels[id]; ok {
		return p.Capacity
	}
	return 0
}

// Contains reports whether the panel shows an item with the given text.
func (s *Store) Contains(id ID, display string) bool {
	p, ok := s.panels[id]
	if !ok {
		return false
	}
	for _, item := range p.items {
		if item.Display == display {
			return true
		}
	}
	return false
}

// SetVisible shows or hides a node. Any node may be toggled, not only
// registered panels.
func (s *Store) SetVisible(id ID, visible bool) {
	s.hidden[id] = !visible
	s.display.SetVisible(id, visible)
}

// Visible reports whether a node is shown. Nodes are visible until hidden.
func (s *Store) Visible(id ID) bool {
	return !s.hidden[id]
}

// FocusAndSelectAll moves focus to node and selects its whole content.
func (s *Store) FocusAndSelectAll(id ID) {
	s.display.Focus(id)
	s.display.SelectAll(id)
}
