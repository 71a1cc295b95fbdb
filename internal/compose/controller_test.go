package compose

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/csheth/tapwrite/internal/backend"
	"github.com/csheth/tapwrite/internal/panel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLookup struct {
	queries  map[string]backend.QueryResult
	guesses  map[string]backend.SuggestResult
	splits   map[string][]string
	failures map[string]error
	calls    []string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		queries:  map[string]backend.QueryResult{},
		guesses:  map[string]backend.SuggestResult{},
		splits:   map[string][]string{},
		failures: map[string]error{},
	}
}

func (f *fakeLookup) Query(_ context.Context, text string) (backend.QueryResult, error) {
	f.calls = append(f.calls, "query/"+text)
	if err := f.failures["query/"+text]; err != nil {
		return backend.QueryResult{}, err
	}
	return f.queries[text], nil
}

func (f *fakeLookup) Guess(_ context.Context, word string) (backend.SuggestResult, error) {
	f.calls = append(f.calls, "guess/"+word)
	if err := f.failures["guess/"+word]; err != nil {
		return backend.SuggestResult{}, err
	}
	return f.guesses[word], nil
}

func (f *fakeLookup) Split(_ context.Context, sentence string) ([]string, error) {
	f.calls = append(f.calls, "split/"+sentence)
	if err := f.failures["split/"+sentence]; err != nil {
		return nil, err
	}
	return f.splits[sentence], nil
}

type fakeDisplay struct {
	focused   panel.ID
	selectAll int
	visible   map[panel.ID]bool
}

func (d *fakeDisplay) Clear(panel.ID)                    {}
func (d *fakeDisplay) AppendChild(panel.ID, panel.Item)  {}
func (d *fakeDisplay) SetVisible(node panel.ID, on bool) { d.visible[node] = on }
func (d *fakeDisplay) Focus(node panel.ID)               { d.focused = node }
func (d *fakeDisplay) SelectAll(panel.ID)                { d.selectAll++ }

type harness struct {
	lookup  *fakeLookup
	display *fakeDisplay
	store   *panel.Store
	ctrl    *Controller
}

func newHarness(t *testing.T, mode Mode) *harness {
	t.Helper()
	display := &fakeDisplay{visible: map[panel.ID]bool{}}
	store := panel.NewStore(display)
	lookup := newFakeLookup()
	return &harness{
		lookup:  lookup,
		display: display,
		store:   store,
		ctrl:    New(lookup, store, Options{Mode: mode}),
	}
}

func (h *harness) run(t *testing.T, p *Pending) bool {
	t.Helper()
	if p == nil {
		t.Fatal("expected a pending lookup, got nil")
	}
	return h.ctrl.Complete(p.Run(context.Background()))
}

func (h *harness) displays(id panel.ID) []string {
	var out []string
	for _, item := range h.store.Items(id) {
		out = append(out, item.Display)
	}
	return out
}

func indexOf(t *testing.T, store *panel.Store, id panel.ID, display string) int {
	t.Helper()
	for i, item := range store.Items(id) {
		if item.Display == display {
			return i
		}
	}
	t.Fatalf("%q not found in panel %s", display, id)
	return -1
}

func TestTriggerTrimsPrimary(t *testing.T) {
	h := newHarness(t, ModeClassic)

	p := h.ctrl.EditPrimary("  hello  ")
	if p == nil || p.Key != "hello" || p.Stage != StageQuerying {
		t.Fatalf("unexpected pending: %+v", p)
	}
	if h.ctrl.Stage() != StageQuerying {
		t.Fatalf("stage = %v, want query", h.ctrl.Stage())
	}
	h.run(t, p)
	if diff := cmp.Diff([]string{"query/hello"}, h.lookup.calls); diff != "" {
		t.Fatalf("lookup calls mismatch (-want +got):\n%s", diff)
	}
	if h.ctrl.Primary() != "  hello  " {
		t.Fatalf("primary should keep the raw text, got %q", h.ctrl.Primary())
	}
}

func TestTriggerSkipsBlankInput(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["a"] = backend.QueryResult{
		Candidates: backend.Sequence[backend.Row]{{"啊"}},
		Pinyin:     backend.Sequence[string]{"a"},
	}
	h.run(t, h.ctrl.EditPrimary("a"))

	if p := h.ctrl.EditPrimary("   "); p != nil {
		t.Fatalf("blank input should not issue a lookup, got %+v", p)
	}
	if h.ctrl.Stage() != StageIdle {
		t.Fatalf("stage = %v, want idle", h.ctrl.Stage())
	}
	if len(h.lookup.calls) != 1 {
		t.Fatalf("unexpected lookups: %v", h.lookup.calls)
	}
	if diff := cmp.Diff([]string{"啊"}, h.displays(panel.Candidates)); diff != "" {
		t.Fatalf("candidate panel changed (-want +got):\n%s", diff)
	}
}

func TestQueryPopulatesPairedCandidates(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["ab"] = backend.QueryResult{
		Candidates: backend.Sequence[backend.Row]{{"a"}, {"b"}, {"a"}},
		Pinyin:     backend.Sequence[string]{"ā", "b̄", "à"},
	}

	if !h.run(t, h.ctrl.EditPrimary("ab")) {
		t.Fatal("fresh response should apply")
	}
	want := []panel.Item{{Display: "a", Pinyin: "ā"}, {Display: "b", Pinyin: "b̄"}, {Display: "a", Pinyin: "à"}}
	if diff := cmp.Diff(want, h.store.Items(panel.Candidates)); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, h.displays(panel.Words)); diff != "" {
		t.Fatalf("aggregate panel mismatch (-want +got):\n%s", diff)
	}
	if h.ctrl.State(StageQuerying).Status != StatusReady {
		t.Fatalf("query state = %+v", h.ctrl.State(StageQuerying))
	}
}

func TestQueryRespectsCapacities(t *testing.T) {
	h := newHarness(t, ModeClassic)
	var result backend.QueryResult
	for i := 0; i < 150; i++ {
		result.Candidates = append(result.Candidates, backend.Row{fmt.Sprintf("w%d", i)})
		result.Pinyin = append(result.Pinyin, fmt.Sprintf("p%d", i))
	}
	h.lookup.queries["w"] = result

	h.run(t, h.ctrl.EditPrimary("w"))
	if got := h.store.Len(panel.Candidates); got != panel.PrimaryCapacity {
		t.Fatalf("candidates = %d, want %d", got, panel.PrimaryCapacity)
	}
	if got := h.store.Len(panel.Words); got != panel.AggregateCapacity {
		t.Fatalf("words = %d, want %d", got, panel.AggregateCapacity)
	}
}

func TestEmptyQueryResultKeepsPanels(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["ni"] = backend.QueryResult{
		Candidates: backend.Sequence[backend.Row]{{"你"}},
		Pinyin:     backend.Sequence[string]{"ni"},
	}
	h.run(t, h.ctrl.EditPrimary("ni"))
	h.run(t, h.ctrl.EditPrimary("zzz"))

	if diff := cmp.Diff([]string{"你"}, h.displays(panel.Candidates)); diff != "" {
		t.Fatalf("empty result should keep candidates (-want +got):\n%s", diff)
	}
}

func TestSelectingCandidateAppendsAndSuggests(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["go"] = backend.QueryResult{
		Candidates: backend.Sequence[backend.Row]{{"good"}, {"gone"}},
		Pinyin:     backend.Sequence[string]{"g", "g"},
	}
	h.run(t, h.ctrl.EditPrimary("go"))
	selectAllBefore := h.display.selectAll

	pending := h.ctrl.Select(panel.Candidates, indexOf(t, h.store, panel.Candidates, "good"))
	if len(pending) != 1 {
		t.Fatalf("expected one follow-up lookup, got %d", len(pending))
	}
	if pending[0].Stage != StageSuggesting || pending[0].Key != "good" {
		t.Fatalf("unexpected follow-up: %+v", pending[0])
	}
	if h.ctrl.Output() != "good" {
		t.Fatalf("output = %q, want good", h.ctrl.Output())
	}
	if h.display.focused != panel.Input || h.display.selectAll != selectAllBefore+1 {
		t.Fatalf("selection should refocus the input (focused=%q selectAll=%d)", h.display.focused, h.display.selectAll)
	}
	if h.ctrl.Stage() != StageSuggesting {
		t.Fatalf("stage = %v, want suggest", h.ctrl.Stage())
	}
	h.run(t, pending[0])
	if h.lookup.calls[len(h.lookup.calls)-1] != "guess/good" {
		t.Fatalf("expected guess/good, got %v", h.lookup.calls)
	}
}

func TestStaleQueryResponseIsDiscarded(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["n"] = backend.QueryResult{
		Candidates: backend.Sequence[backend.Row]{{"那"}},
		Pinyin:     backend.Sequence[string]{"na"},
	}
	h.lookup.queries["ni"] = backend.QueryResult{
		Candidates: backend.Sequence[backend.Row]{{"你"}},
		Pinyin:     backend.Sequence[string]{"ni"},
	}

	older := h.ctrl.EditPrimary("n")
	newer := h.ctrl.EditPrimary("ni")
	if newer.Seq <= older.Seq {
		t.Fatalf("sequence numbers must increase: %d then %d", older.Seq, newer.Seq)
	}

	olderDone := older.Run(context.Background())
	if !h.run(t, newer) {
		t.Fatal("newest response must apply")
	}
	if h.ctrl.Complete(olderDone) {
		t.Fatal("stale response must be discarded")
	}
	if diff := cmp.Diff([]string{"你"}, h.displays(panel.Candidates)); diff != "" {
		t.Fatalf("stale response mutated the panel (-want +got):\n%s", diff)
	}
}

func TestLaterStageSupersedesPendingQuery(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["a"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"啊"}}, Pinyin: backend.Sequence[string]{"a"}}
	h.lookup.queries["ab"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"阿爸"}}, Pinyin: backend.Sequence[string]{"aba"}}
	h.run(t, h.ctrl.EditPrimary("a"))

	inflight := h.ctrl.EditPrimary("ab")
	pending := h.ctrl.Select(panel.Candidates, 0)
	if len(pending) != 1 {
		t.Fatalf("expected suggest lookup, got %d", len(pending))
	}
	if h.ctrl.State(StageQuerying).Status == StatusPending {
		t.Fatal("superseded query should no longer count as pending")
	}
	if h.run(t, inflight) {
		t.Fatal("query issued before the suggest transition must be discarded")
	}
	if diff := cmp.Diff([]string{"啊"}, h.displays(panel.Candidates)); diff != "" {
		t.Fatalf("candidate panel changed (-want +got):\n%s", diff)
	}
}

func TestClearingInputDropsInflightQuery(t *testing.T) {
	clears := map[string]func(t *testing.T, h *harness){
		"blank edit": func(t *testing.T, h *harness) {
			if p := h.ctrl.EditPrimary(""); p != nil {
				t.Fatalf("blank input issued %+v", p)
			}
		},
		"clear input": func(_ *testing.T, h *harness) { h.ctrl.Command(TokenClearInput) },
		"clear all":   func(_ *testing.T, h *harness) { h.ctrl.Command(TokenClearAll) },
	}
	for name, clearInput := range clears {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, ModeClassic)
			h.lookup.queries["n"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"那"}}, Pinyin: backend.Sequence[string]{"na"}}
			h.lookup.queries["ni"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"你"}}, Pinyin: backend.Sequence[string]{"ni"}}
			h.run(t, h.ctrl.EditPrimary("n"))

			inflight := h.ctrl.EditPrimary("ni")
			clearInput(t, h)

			if h.ctrl.Primary() != "" {
				t.Fatalf("primary = %q, want empty", h.ctrl.Primary())
			}
			if h.ctrl.Busy() || h.ctrl.State(StageQuerying).Status == StatusPending {
				t.Fatal("dropped query should not count as pending")
			}
			if h.ctrl.Stage() != StageIdle {
				t.Fatalf("stage = %v, want idle", h.ctrl.Stage())
			}
			if h.run(t, inflight) {
				t.Fatal("response for the cleared text must be discarded")
			}
			if diff := cmp.Diff([]string{"那"}, h.displays(panel.Candidates)); diff != "" {
				t.Fatalf("candidate panel changed (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"那"}, h.displays(panel.Words)); diff != "" {
				t.Fatalf("words panel changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClearingInputKeepsLaterStageInflight(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["go"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"good"}}, Pinyin: backend.Sequence[string]{"g"}}
	h.lookup.guesses["good"] = backend.SuggestResult{Sentence: backend.Sequence[string]{"good day"}}
	h.run(t, h.ctrl.EditPrimary("go"))

	suggest := h.ctrl.Select(panel.Candidates, 0)[0]
	h.ctrl.Command(TokenClearInput)
	if h.ctrl.Stage() != StageSuggesting {
		t.Fatalf("stage = %v, want suggest", h.ctrl.Stage())
	}
	if !h.run(t, suggest) {
		t.Fatal("suggest lookup should survive clearing the input")
	}
	if diff := cmp.Diff([]string{"good day"}, h.displays(panel.Sentences)); diff != "" {
		t.Fatalf("sentences mismatch (-want +got):\n%s", diff)
	}
}

func TestLaterStageClearsSupersededFailure(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["go"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"good"}}, Pinyin: backend.Sequence[string]{"g"}}
	h.lookup.failures["query/gox"] = errors.New("timeout")
	h.run(t, h.ctrl.EditPrimary("go"))

	if !h.run(t, h.ctrl.EditPrimary("gox")) {
		t.Fatal("failure of the latest query should be recorded")
	}
	if h.ctrl.State(StageQuerying).Status != StatusFailed {
		t.Fatalf("query state = %+v, want failed", h.ctrl.State(StageQuerying))
	}

	pending := h.ctrl.Select(panel.Words, indexOf(t, h.store, panel.Words, "good"))
	if len(pending) != 1 || pending[0].Stage != StageSuggesting {
		t.Fatalf("expected a suggest lookup, got %+v", pending)
	}
	if state := h.ctrl.State(StageQuerying); state.Status == StatusFailed || state.Err != nil {
		t.Fatalf("superseded failure still reported: %+v", state)
	}
	if h.ctrl.Retry() != nil {
		t.Fatal("superseded failure must not be retryable")
	}
}

func TestSentenceSelectionSplitsStrippedText(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["go"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"good"}}, Pinyin: backend.Sequence[string]{"g"}}
	h.lookup.guesses["good"] = backend.SuggestResult{Sentence: backend.Sequence[string]{"<em>good</em> morning", "so <em>good</em>"}}
	h.lookup.splits["good morning"] = []string{"good", "morning"}

	h.run(t, h.ctrl.EditPrimary("go"))
	h.run(t, h.ctrl.Select(panel.Candidates, 0)[0])

	if diff := cmp.Diff([]string{"<em>good</em> morning", "so <em>good</em>"}, h.displays(panel.Sentences)); diff != "" {
		t.Fatalf("sentences should keep markup for display (-want +got):\n%s", diff)
	}
	if h.store.Visible(panel.Fragments) || h.store.Visible(panel.FragmentsHint) {
		t.Fatal("split regions start hidden")
	}

	pending := h.ctrl.Select(panel.Sentences, 0)
	if len(pending) != 1 || pending[0].Key != "good morning" || pending[0].Stage != StageSplitting {
		t.Fatalf("unexpected split lookup: %+v", pending)
	}
	h.run(t, pending[0])

	if diff := cmp.Diff([]string{"good", "morning"}, h.displays(panel.Fragments)); diff != "" {
		t.Fatalf("fragments mismatch (-want +got):\n%s", diff)
	}
	if !h.store.Visible(panel.Fragments) || !h.store.Visible(panel.FragmentsHint) {
		t.Fatal("split regions should be revealed")
	}
	if h.ctrl.Output() != "good" {
		t.Fatalf("picking a sentence must not touch the output, got %q", h.ctrl.Output())
	}

	if extra := h.ctrl.Select(panel.Fragments, 1); len(extra) != 0 {
		t.Fatalf("fragment pick should not issue lookups, got %d", len(extra))
	}
	if h.ctrl.Output() != "goodmorning" {
		t.Fatalf("output = %q", h.ctrl.Output())
	}
	if h.ctrl.Stage() != StageSplitting {
		t.Fatalf("stage = %v, want split", h.ctrl.Stage())
	}
	if diff := cmp.Diff([]string{"good", "morning"}, h.displays(panel.Fragments)); diff != "" {
		t.Fatalf("fragment panel should not regenerate (-want +got):\n%s", diff)
	}
	if !h.store.Contains(panel.Words, "morning") {
		t.Fatal("clicked fragment should join the aggregate panel")
	}

	h.ctrl.Select(panel.Fragments, 1)
	count := 0
	for _, word := range h.displays(panel.Words) {
		if word == "morning" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("aggregate panel should not repeat fragments, found %d", count)
	}

	h.ctrl.HideSplit()
	if h.store.Visible(panel.Fragments) || h.store.Visible(panel.FragmentsHint) {
		t.Fatal("HideSplit should hide both regions")
	}
}

func TestFailedLookupLeavesPanelAndRetries(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["go"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"good"}}, Pinyin: backend.Sequence[string]{"g"}}
	h.lookup.failures["guess/good"] = errors.New("connection refused")
	h.lookup.guesses["good"] = backend.SuggestResult{Sentence: backend.Sequence[string]{"good day"}}

	h.run(t, h.ctrl.EditPrimary("go"))
	first := h.ctrl.Select(panel.Candidates, 0)[0]
	if !h.run(t, first) {
		t.Fatal("failure of the latest lookup should be recorded")
	}
	state := h.ctrl.State(StageSuggesting)
	if state.Status != StatusFailed || state.Err == nil || state.Key != "good" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if h.store.Len(panel.Sentences) != 0 {
		t.Fatal("failed lookup must not populate the panel")
	}

	delete(h.lookup.failures, "guess/good")
	retry := h.ctrl.Retry()
	if retry == nil || retry.Key != "good" || retry.Seq <= first.Seq {
		t.Fatalf("unexpected retry: %+v", retry)
	}
	h.run(t, retry)
	if diff := cmp.Diff([]string{"good day"}, h.displays(panel.Sentences)); diff != "" {
		t.Fatalf("retry result mismatch (-want +got):\n%s", diff)
	}
	if h.ctrl.Retry() != nil {
		t.Fatal("nothing left to retry")
	}
}

func TestCommandPanelDispatchesTokens(t *testing.T) {
	h := newHarness(t, ModeClassic)
	h.lookup.queries["go"] = backend.QueryResult{Candidates: backend.Sequence[backend.Row]{{"good"}}, Pinyin: backend.Sequence[string]{"g"}}
	h.run(t, h.ctrl.EditPrimary("go"))
	h.ctrl.Select(panel.Candidates, 0)

	h.ctrl.Select(panel.Commands, indexOf(t, h.store, panel.Commands, TokenPeriod))
	if h.ctrl.Output() != "good。" {
		t.Fatalf("output = %q", h.ctrl.Output())
	}
	h.ctrl.Select(panel.Commands, indexOf(t, h.store, panel.Commands, TokenClearInput))
	if h.ctrl.Primary() != "" || h.ctrl.Output() != "good。" {
		t.Fatalf("C should only clear the input: %q / %q", h.ctrl.Primary(), h.ctrl.Output())
	}
	h.ctrl.Command(TokenBackspace)
	if h.ctrl.Output() != "good" {
		t.Fatalf("B should drop one character, got %q", h.ctrl.Output())
	}
	h.ctrl.EditPrimary("x")
	h.ctrl.Command(TokenClearAll)
	if h.ctrl.Primary() != "" || h.ctrl.Output() != "" {
		t.Fatalf("K should clear both buffers: %q / %q", h.ctrl.Primary(), h.ctrl.Output())
	}
}

func TestBCIFlow(t *testing.T) {
	h := newHarness(t, ModeBCI)
	h.lookup.queries["n"] = backend.QueryResult{CiZus: backend.Groups{
		{Key: "ni", Words: []string{"你", "尼"}},
		{Key: "na", Words: []string{"那"}},
	}}
	h.lookup.guesses["你"] = backend.SuggestResult{Suggests: backend.Groups{
		{Key: "hao", Words: []string{"好"}},
		{Key: "men", Words: []string{"们"}},
	}}

	if h.store.Len(panel.Candidates) != 0 || h.store.Len(panel.Chars) != 26 {
		t.Fatalf("bci layout not registered: chars=%d", h.store.Len(panel.Chars))
	}

	pending := h.ctrl.Select(panel.Chars, indexOf(t, h.store, panel.Chars, "n"))
	if len(pending) != 1 || pending[0].Key != "n" {
		t.Fatalf("letter pick should query, got %+v", pending)
	}
	if h.ctrl.Primary() != "n" {
		t.Fatalf("primary = %q", h.ctrl.Primary())
	}
	h.run(t, pending[0])
	if diff := cmp.Diff([]string{"你", "尼", "那"}, h.displays(panel.Dynamic1)); diff != "" {
		t.Fatalf("dynamic-1 mismatch (-want +got):\n%s", diff)
	}

	pending = h.ctrl.Select(panel.Dynamic1, 0)
	if len(pending) != 1 || pending[0].Stage != StageSuggesting {
		t.Fatalf("word pick should suggest, got %+v", pending)
	}
	h.run(t, pending[0])
	if diff := cmp.Diff([]string{"好", "们"}, h.displays(panel.Dynamic2)); diff != "" {
		t.Fatalf("dynamic-2 mismatch (-want +got):\n%s", diff)
	}

	if extra := h.ctrl.Select(panel.Dynamic2, 0); len(extra) != 0 {
		t.Fatalf("follow-up pick is terminal, got %d lookups", len(extra))
	}
	if h.ctrl.Output() != "你好" {
		t.Fatalf("output = %q", h.ctrl.Output())
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"": ModeClassic, "classic": ModeClassic, " BCI ": ModeBCI} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("vim"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
