package compose

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/csheth/tapwrite/internal/panel"
	"github.com/csheth/tapwrite/internal/shaper"
)

func (c *Controller) fetchQuery(key string) fetchFunc {
	lookup := c.lookup
	return func(ctx context.Context) (func(), error) {
		result, err := lookup.Query(ctx, key)
		if err != nil {
			return nil, err
		}
		if c.mode == ModeBCI {
			words := shaper.Flatten(result.CiZus, panel.PrimaryCapacity)
			return func() { c.showWordGroups(words) }, nil
		}
		pairs := shaper.PairCandidates(result, panel.PrimaryCapacity)
		return func() { c.showCandidates(key, pairs) }, nil
	}
}

func (c *Controller) fetchSuggest(key string) fetchFunc {
	lookup := c.lookup
	return func(ctx context.Context) (func(), error) {
		result, err := lookup.Guess(ctx, key)
		if err != nil {
			return nil, err
		}
		if c.mode == ModeBCI {
			words := shaper.Flatten(result.Suggests, panel.PrimaryCapacity)
			return func() { c.panels.Populate(panel.Dynamic2, plainItems(words), c.pickFollowUp) }, nil
		}
		sentences := shaper.FlattenFlat(result.Sentence, panel.PrimaryCapacity)
		return func() { c.panels.Populate(panel.Sentences, plainItems(sentences), c.pickSentence) }, nil
	}
}

func (c *Controller) fetchSplit(key string) fetchFunc {
	lookup := c.lookup
	return func(ctx context.Context) (func(), error) {
		result, err := lookup.Split(ctx, key)
		if err != nil {
			return nil, err
		}
		fragments := shaper.FlattenFlat(result, panel.PrimaryCapacity)
		return func() { c.showFragments(fragments) }, nil
	}
}

// showCandidates fills the candidate panel and refills the aggregate panel
// with every distinct word shown. An empty result keeps what is on screen.
func (c *Controller) showCandidates(key string, pairs []shaper.Pair) {
	if len(pairs) == 0 {
		c.logger.Debug("query returned no candidates", zap.String("key", key))
		return
	}
	items := make([]panel.Item, len(pairs))
	words := make([]string, len(pairs))
	for i, pair := range pairs {
		items[i] = panel.Item(pair)
		words[i] = pair.Display
	}
	c.panels.Populate(panel.Candidates, items, c.pickWord)

	c.panels.Clear(panel.Words)
	for _, word := range shaper.Dedup(words) {
		if !c.panels.AppendOne(panel.Words, panel.Item{Display: word}, c.pickWord) {
			break
		}
	}
}

func (c *Controller) showWordGroups(words []string) {
	c.panels.Populate(panel.Dynamic1, plainItems(words), c.pickWord)
}

func (c *Controller) showFragments(fragments []string) {
	c.panels.Populate(panel.Fragments, plainItems(fragments), c.pickFragment)
	c.panels.SetVisible(panel.Fragments, true)
	c.panels.SetVisible(panel.FragmentsHint, true)
}

// pickWord appends a candidate to the output and asks for sentences using it.
func (c *Controller) pickWord(item panel.Item) {
	c.buf.Append(item.Display)
	if c.mode == ModeClassic {
		c.Command("")
	}
	c.queue(c.suggest(item.Display))
}

func (c *Controller) pickSentence(item panel.Item) {
	c.queue(c.split(shaper.StripMarkup(item.Display)))
}

// pickFragment appends a fragment and records it in the aggregate panel. The
// fragment panel itself stays as it is.
func (c *Controller) pickFragment(item panel.Item) {
	c.buf.Append(item.Display)
	c.Command("")
	if !c.panels.Contains(panel.Words, item.Display) {
		c.panels.AppendOne(panel.Words, panel.Item{Display: item.Display}, c.pickWord)
	}
}

func (c *Controller) pickFollowUp(item panel.Item) {
	c.buf.Append(item.Display)
}

func (c *Controller) pickChar(item panel.Item) {
	c.buf.AppendPrimary(item.Display)
	c.queue(c.Trigger())
}

func (c *Controller) pickCommand(item panel.Item) {
	c.Command(item.Display)
}

func (c *Controller) suggest(word string) *Pending {
	key := strings.Trim(word, " ")
	if key == "" {
		return nil
	}
	return c.begin(StageSuggesting, key, c.fetchSuggest(key))
}

func (c *Controller) split(sentence string) *Pending {
	key := strings.Trim(sentence, " ")
	if key == "" {
		return nil
	}
	return c.begin(StageSplitting, key, c.fetchSplit(key))
}
