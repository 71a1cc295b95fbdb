package tui

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type jobKind string

const (
	jobKindQuery   jobKind = "query"
	jobKindSuggest jobKind = "suggest"
	jobKindSplit   jobKind = "split"
	jobKindSend    jobKind = "send"
	jobKindWeChat  jobKind = "wechat"
)

// jobRunner does blocking work outside the Update loop and returns the
// message to deliver back to it.
type jobRunner func(context.Context) (tea.Msg, error)

// jobStartedMsg arrives before the runner is scheduled so the spinner can
// start while the request is in flight.
type jobStartedMsg struct {
	id   string
	kind jobKind
}

// jobDoneMsg carries the runner's message back to the Update loop.
type jobDoneMsg struct {
	id      string
	kind    jobKind
	elapsed time.Duration
	err     error
	payload tea.Msg
}

type jobBus struct {
	ctx    context.Context
	logger *zap.Logger
	seq    atomic.Uint64
}

func newJobBus(ctx context.Context, logger *zap.Logger) *jobBus {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &jobBus{ctx: ctx, logger: logger.Named("jobs")}
}

// Start returns a command that announces the job and then runs it.
func (b *jobBus) Start(kind jobKind, runner jobRunner) tea.Cmd {
	id := string(kind) + "-" + strconv.FormatUint(b.seq.Add(1), 10)
	announce := func() tea.Msg { return jobStartedMsg{id: id, kind: kind} }
	run := func() tea.Msg {
		began := time.Now()
		payload, err := runner(b.ctx)
		done := jobDoneMsg{id: id, kind: kind, elapsed: time.Since(began), err: err, payload: payload}
		b.logger.Debug("job finished",
			zap.String("id", id),
			zap.String("kind", string(kind)),
			zap.Duration("elapsed", done.elapsed),
			zap.Error(err))
		return done
	}
	return tea.Sequence(announce, run)
}
