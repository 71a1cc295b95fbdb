package compose

import (
	"strings"
	"unicode/utf8"
)

// Control tokens understood by Buffer.Apply.
const (
	TokenClearInput = "C"
	TokenClearAll   = "K"
	TokenBackspace  = "B"
	TokenComma      = "，"
	TokenPeriod     = "。"
)

// CommandTokens lists the control tokens in the order the command panel
// shows them.
var CommandTokens = []string{TokenClearInput, TokenClearAll, TokenBackspace, TokenComma, TokenPeriod}

// Buffer holds the typed query text (primary) and the composed text
// (output). The zero value is two empty buffers.
type Buffer struct {
	primary string
	output  string
}

// Primary returns the query text as typed.
func (b *Buffer) Primary() string { return b.primary }

// Output returns the composed text.
func (b *Buffer) Output() string { return b.output }

// SetPrimary replaces the query text, as the input widget does on edits.
func (b *Buffer) SetPrimary(value string) { b.primary = value }

// AppendPrimary extends the query text.
func (b *Buffer) AppendPrimary(text string) { b.primary += text }

// Append extends the composed text.
func (b *Buffer) Append(text string) { b.output += text }

// ClearPrimary empties the query text.
func (b *Buffer) ClearPrimary() { b.primary = "" }

// ClearAll empties both buffers.
func (b *Buffer) ClearAll() {
	b.primary = ""
	b.output = ""
}

// Backspace drops the last character of the composed text.
func (b *Buffer) Backspace() {
	if b.output == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(b.output)
	b.output = b.output[:len(b.output)-size]
}

// TrimmedPrimary is the lookup key for the query stage: primary without
// leading or trailing spaces.
func (b *Buffer) TrimmedPrimary() string {
	return strings.Trim(b.primary, " ")
}

// Apply runs a control token against the buffers. Tokens it does not know
// leave both buffers untouched.
func (b *Buffer) Apply(token string) {
	switch token {
	case TokenClearInput:
		b.ClearPrimary()
	case TokenClearAll:
		b.ClearAll()
	case TokenBackspace:
		b.Backspace()
	case TokenComma, TokenPeriod:
		b.Append(token)
	}
}
