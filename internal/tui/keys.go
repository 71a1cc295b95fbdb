package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/tapwrite/internal/compose"
)

type keyMap struct {
	ClearInput key.Binding
	ClearAll   key.Binding
	Backspace  key.Binding
	Comma      key.Binding
	Period     key.Binding
	Retry      key.Binding
	HideSplit  key.Binding
	Send       key.Binding
	WeChat     key.Binding
	NextPanel  key.Binding
	PrevPanel  key.Binding
	Left       key.Binding
	Right      key.Binding
	Up         key.Binding
	Down       key.Binding
	Pick       key.Binding
	Back       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ClearInput: key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear input")),
		ClearAll:   key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("ctrl+k", "clear all")),
		Backspace:  key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "delete last char")),
		Comma:      key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "，")),
		Period:     key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "。")),
		Retry:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry lookup")),
		HideSplit:  key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "hide fragments")),
		Send:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "send")),
		WeChat:     key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "show messenger")),
		NextPanel:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
		PrevPanel:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous panel")),
		Left:       key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "previous item")),
		Right:      key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "next item")),
		Up:         key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "row up")),
		Down:       key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "row down")),
		Pick:       key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "pick")),
		Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to input")),
		Help:       key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "toggle help")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// token maps a control binding to the command token it applies.
func (k keyMap) token(msg tea.KeyMsg) (string, bool) {
	pairs := []struct {
		binding key.Binding
		token   string
	}{
		{k.ClearInput, compose.TokenClearInput},
		{k.ClearAll, compose.TokenClearAll},
		{k.Backspace, compose.TokenBackspace},
		{k.Comma, compose.TokenComma},
		{k.Period, compose.TokenPeriod},
	}
	for _, pair := range pairs {
		if key.Matches(msg, pair.binding) {
			return pair.token, true
		}
	}
	return "", false
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextPanel, k.Pick, k.Send, k.Retry, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ClearInput, k.ClearAll, k.Backspace, k.Comma, k.Period},
		{k.NextPanel, k.PrevPanel, k.Left, k.Right, k.Up, k.Down, k.Pick, k.Back},
		{k.Retry, k.HideSplit, k.Send, k.WeChat, k.Help, k.Quit},
	}
}
