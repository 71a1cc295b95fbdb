// Package compose runs the candidate composition pipeline: typed text is
// looked up (query), a picked word is expanded into sentences (suggest) and a
// picked sentence is broken into fragments (split). Every lookup is a Pending
// future; the caller runs it off the UI thread and hands the Completion back,
// and responses that were superseded in the meantime are dropped.
package compose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/csheth/tapwrite/internal/backend"
	"github.com/csheth/tapwrite/internal/panel"
)

// Stage is one phase of the pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageQuerying
	StageSuggesting
	StageSplitting
)

const stageCount = int(StageSplitting) + 1

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageQuerying:
		return "query"
	case StageSuggesting:
		return "suggest"
	case StageSplitting:
		return "split"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) valid() bool {
	return s >= StageQuerying && s <= StageSplitting
}

// Mode picks the panel layout.
type Mode int

const (
	// ModeClassic shows candidates with pinyin, sentences and fragments.
	ModeClassic Mode = iota
	// ModeBCI shows a letter board and two raveled word panels.
	ModeBCI
)

func (m Mode) String() string {
	if m == ModeBCI {
		return "bci"
	}
	return "classic"
}

// ParseMode accepts "classic" (or "") and "bci".
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "classic":
		return ModeClassic, nil
	case "bci":
		return ModeBCI, nil
	default:
		return ModeClassic, fmt.Errorf("unknown mode %q (want classic or bci)", value)
	}
}

// Status describes the latest lookup of a stage.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusReady
	StatusFailed
)

// StageState is the status of a stage's most recent lookup.
type StageState struct {
	Status Status
	Key    string
	Err    error
}

// Lookup is the backend as the pipeline sees it.
type Lookup interface {
	Query(ctx context.Context, text string) (backend.QueryResult, error)
	Guess(ctx context.Context, word string) (backend.SuggestResult, error)
	Split(ctx context.Context, sentence string) ([]string, error)
}

type fetchFunc func(ctx context.Context) (apply func(), err error)

// Pending is an issued lookup that has not run yet. Run is safe to call from
// any goroutine; it never touches controller state.
type Pending struct {
	Stage Stage
	Seq   uint64
	Key   string
	fetch fetchFunc
}

// Run performs the lookup.
func (p *Pending) Run(ctx context.Context) Completion {
	started := time.Now()
	apply, err := p.fetch(ctx)
	return Completion{
		Stage:    p.Stage,
		Seq:      p.Seq,
		Key:      p.Key,
		Err:      err,
		Duration: time.Since(started),
		apply:    apply,
	}
}

// Completion is the outcome of a Pending, to be handed to Controller.Complete.
type Completion struct {
	Stage    Stage
	Seq      uint64
	Key      string
	Err      error
	Duration time.Duration
	apply    func()
}

// Options tune a Controller.
type Options struct {
	Mode   Mode
	Logger *zap.Logger
}

// Controller owns the composition buffers and sequences lookups. It is not
// safe for concurrent use; call it from the UI loop only.
type Controller struct {
	lookup Lookup
	panels *panel.Store
	buf    Buffer
	mode   Mode
	stage  Stage
	seq    [stageCount]uint64
	states [stageCount]StageState
	last   [stageCount]*Pending
	failed Stage
	outbox []*Pending
	logger *zap.Logger
}

// New registers the panels for opts.Mode in panels and returns a controller
// driving them.
func New(lookup Lookup, panels *panel.Store, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		lookup: lookup,
		panels: panels,
		mode:   opts.Mode,
		logger: logger.Named("pipeline"),
	}
	c.setupPanels()
	return c
}

func (c *Controller) setupPanels() {
	c.panels.Register(panel.Commands, len(CommandTokens))
	c.panels.Populate(panel.Commands, plainItems(CommandTokens), c.pickCommand)

	switch c.mode {
	case ModeBCI:
		letters := make([]string, 0, 26)
		for r := 'a'; r <= 'z'; r++ {
			letters = append(letters, string(r))
		}
		c.panels.Register(panel.Chars, len(letters))
		c.panels.Populate(panel.Chars, plainItems(letters), c.pickChar)
		c.panels.Register(panel.Dynamic1, panel.PrimaryCapacity)
		c.panels.Register(panel.Dynamic2, panel.PrimaryCapacity)
	default:
		c.panels.Register(panel.Candidates, panel.PrimaryCapacity)
		c.panels.Register(panel.Words, panel.AggregateCapacity)
		c.panels.Register(panel.Sentences, panel.PrimaryCapacity)
		c.panels.Register(panel.Fragments, panel.PrimaryCapacity)
		c.panels.SetVisible(panel.Fragments, false)
		c.panels.SetVisible(panel.FragmentsHint, false)
	}
}

// Mode reports the panel layout in use.
func (c *Controller) Mode() Mode { return c.mode }

// Stage reports the stage of the latest issued lookup.
func (c *Controller) Stage() Stage { return c.stage }

// State reports the latest lookup status of stage s.
func (c *Controller) State(s Stage) StageState {
	if !s.valid() {
		return StageState{}
	}
	return c.states[s]
}

// Primary returns the query buffer.
func (c *Controller) Primary() string { return c.buf.Primary() }

// Output returns the composed text.
func (c *Controller) Output() string { return c.buf.Output() }

// Busy reports whether any stage waits for a response.
func (c *Controller) Busy() bool {
	for s := StageQuerying; s <= StageSplitting; s++ {
		if c.states[s].Status == StatusPending {
			return true
		}
	}
	return false
}

// EditPrimary stores the input widget's new value and issues a query for it.
func (c *Controller) EditPrimary(value string) *Pending {
	c.buf.SetPrimary(value)
	return c.Trigger()
}

// Trigger issues a query for the trimmed primary buffer. Blank input issues
// nothing and returns the pipeline to idle.
func (c *Controller) Trigger() *Pending {
	key := c.buf.TrimmedPrimary()
	if key == "" {
		c.logger.Debug("empty input, skipping query")
		c.supersede(StageQuerying)
		c.stage = StageIdle
		return nil
	}
	return c.begin(StageQuerying, key, c.fetchQuery(key))
}

// Command applies a control token and hands focus back to the input with its
// content selected. Unknown tokens only refocus. Clearing the input drops the
// query in flight for the old text.
func (c *Controller) Command(token string) {
	c.buf.Apply(token)
	if token == TokenClearInput || token == TokenClearAll {
		c.supersede(StageQuerying)
		if c.stage == StageQuerying {
			c.stage = StageIdle
		}
	}
	c.panels.FocusAndSelectAll(panel.Input)
}

// Select picks the item at index in panel id and returns the lookups the
// pick issued.
func (c *Controller) Select(id panel.ID, index int) []*Pending {
	if !c.panels.Select(id, index) {
		return nil
	}
	return c.drain()
}

// Complete applies a finished lookup. It reports false when the response was
// superseded by a newer lookup and therefore dropped.
func (c *Controller) Complete(done Completion) bool {
	if !done.Stage.valid() {
		return false
	}
	fields := []zap.Field{
		zap.Stringer("stage", done.Stage),
		zap.String("key", done.Key),
		zap.Uint64("seq", done.Seq),
		zap.Duration("duration", done.Duration),
	}
	if current := c.seq[done.Stage]; done.Seq != current {
		c.logger.Debug("discarding stale response", append(fields, zap.Uint64("current", current))...)
		return false
	}
	if done.Err != nil {
		c.states[done.Stage] = StageState{Status: StatusFailed, Key: done.Key, Err: done.Err}
		c.failed = done.Stage
		c.logger.Warn("lookup failed", append(fields, zap.Error(done.Err))...)
		return true
	}
	c.states[done.Stage] = StageState{Status: StatusReady, Key: done.Key}
	if done.apply != nil {
		done.apply()
	}
	c.logger.Debug("lookup applied", fields...)
	return true
}

// Retry re-issues the most recent failed lookup, if it is still the latest
// one of its stage.
func (c *Controller) Retry() *Pending {
	s := c.failed
	if !s.valid() || c.states[s].Status != StatusFailed || c.last[s] == nil {
		return nil
	}
	last := c.last[s]
	c.logger.Info("retrying lookup", zap.Stringer("stage", s), zap.String("key", last.Key))
	return c.begin(s, last.Key, last.fetch)
}

// HideSplit hides the regions the split stage revealed.
func (c *Controller) HideSplit() {
	c.panels.SetVisible(panel.Fragments, false)
	c.panels.SetVisible(panel.FragmentsHint, false)
}

// begin issues a lookup for stage s. It supersedes in-flight lookups of s and
// of every earlier stage.
func (c *Controller) begin(s Stage, key string, fetch fetchFunc) *Pending {
	c.supersede(s)
	p := &Pending{Stage: s, Seq: c.seq[s], Key: key, fetch: fetch}
	c.stage = s
	c.states[s] = StageState{Status: StatusPending, Key: key}
	c.last[s] = p
	c.logger.Debug("lookup issued", zap.Stringer("stage", s), zap.String("key", key), zap.Uint64("seq", p.Seq))
	return p
}

// supersede invalidates the in-flight lookups of every stage up to through.
// Their pending or failed status is reset so no spinner or retry hint
// outlives the request it described.
func (c *Controller) supersede(through Stage) {
	for s := StageQuerying; s <= through; s++ {
		c.seq[s]++
		switch c.states[s].Status {
		case StatusPending, StatusFailed:
			c.states[s] = StageState{Status: StatusIdle, Key: c.states[s].Key}
		}
	}
	if c.failed <= through {
		c.failed = StageIdle
	}
}

func (c *Controller) queue(p *Pending) {
	if p != nil {
		c.outbox = append(c.outbox, p)
	}
}

func (c *Controller) drain() []*Pending {
	out := c.outbox
	c.outbox = nil
	return out
}

func plainItems(list []string) []panel.Item {
	items := make([]panel.Item, len(list))
	for i, text := range list {
		items[i] = panel.Item{Display: text}
	}
	return items
}
