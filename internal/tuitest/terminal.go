package tuitest

import (
	"bytes"
	"io"
)

// terminalResponder answers the capability queries a TUI sends on start so
// the program does not wait for a real terminal.
type terminalResponder struct {
	w   io.Writer
	buf []byte
}

var terminalAnswers = []struct {
	query, answer string
}{
	{"\x1b[6n", "\x1b[1;1R"},
	{"\x1b]10;?\x07", "\x1b]10;rgb:cccc/cccc/cccc\x07"},
	{"\x1b]10;?\x1b\\", "\x1b]10;rgb:cccc/cccc/cccc\x1b\\"},
	{"\x1b]11;?\x07", "\x1b]11;rgb:0000/0000/0000\x07"},
	{"\x1b]11;?\x1b\\", "\x1b]11;rgb:0000/0000/0000\x1b\\"},
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w}
}

func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for tr.answerOne() {
	}
	// keep a tail for queries split across reads
	if len(tr.buf) > 256 {
		tr.buf = append([]byte(nil), tr.buf[len(tr.buf)-64:]...)
	}
}

func (tr *terminalResponder) answerOne() bool {
	for _, qa := range terminalAnswers {
		idx := bytes.Index(tr.buf, []byte(qa.query))
		if idx < 0 {
			continue
		}
		tr.buf = tr.buf[idx+len(qa.query):]
		_, _ = io.WriteString(tr.w, qa.answer)
		return true
	}
	return false
}
