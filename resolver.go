package pagecam

import (
	"fmt"

	"go.uber.org/zap"
)

// AnyCount accepts any positive number of matches.
const AnyCount = 0

// Resolver answers element queries against a live UI tree.
type Resolver struct {
	tree   UITree
	idle   IdleController
	logger *zap.Logger
}

// NewResolver creates a resolver over tree. When the tree is also an
// IdleController, queries wait for idle while its flag is set.
func NewResolver(tree UITree, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{tree: tree, logger: logger}
	if idle, ok := tree.(IdleController); ok {
		r.idle = idle
	}
	return r
}

func (r *Resolver) settle() {
	if r.idle == nil || !r.idle.WaitForIdleBeforeQuery() {
		return
	}
	if err := r.idle.WaitForIdle(); err != nil {
		r.logger.Debug("Application did not become idle", zap.Error(err))
	}
}

// Candidates returns every element matching q, visible or not.
func (r *Resolver) Candidates(q ElementQuery) ([]Element, error) {
	match, err := q.predicate()
	if err != nil {
		return nil, err
	}
	r.settle()
	return r.tree.Elements(q.Type, match), nil
}

// Matching returns the visible elements matching q in traversal order.
func (r *Resolver) Matching(q ElementQuery) ([]Element, error) {
	candidates, err := r.Candidates(q)
	if err != nil {
		return nil, err
	}
	visible := candidates[:0:0]
	for _, e := range candidates {
		if IsVisible(e, q.OnScreen) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// FindElement returns the first visible element matching q.
func (r *Resolver) FindElement(q ElementQuery) (Element, bool) {
	matches, err := r.Matching(q)
	if err != nil {
		r.logger.Warn("Element query failed", zap.Stringer("query", q), zap.Error(err))
		return nil, false
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

// FindElements reports whether exactly expectedCount visible elements match q,
// or at least one when expectedCount is AnyCount or negative.
func (r *Resolver) FindElements(q ElementQuery, expectedCount int) bool {
	matches, err := r.Matching(q)
	if err != nil {
		r.logger.Warn("Element query failed", zap.Stringer("query", q), zap.Error(err))
		return false
	}
	return countSatisfied(len(matches), expectedCount)
}

func countSatisfied(actual, expected int) bool {
	if expected > 0 {
		return actual == expected
	}
	return actual > 0
}

// TextDisplayed checks static text by label and text views by value.
func (r *Resolver) TextDisplayed(text string, expectedCount int, partial, onScreen bool) bool {
	for _, q := range textQueries(text, partial, onScreen) {
		if r.FindElements(q, expectedCount) {
			return true
		}
	}
	return false
}

func textQueries(text string, partial, onScreen bool) []ElementQuery {
	return []ElementQuery{
		{Type: StaticText, Text: text, Field: MatchLabel, Partial: partial, OnScreen: onScreen},
		{Type: TextView, Text: text, Field: MatchValue, Partial: partial, OnScreen: onScreen},
	}
}

// ElementCondition is satisfied once a visible element matches q.
func (r *Resolver) ElementCondition(q ElementQuery) Condition {
	return func() error {
		matches, err := r.Matching(q)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("Didn't find %s", q)
		}
		return nil
	}
}

// AbsentCondition is satisfied while no visible element matches q.
func (r *Resolver) AbsentCondition(q ElementQuery) Condition {
	return func() error {
		matches, err := r.Matching(q)
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			return fmt.Errorf("Unexpectedly found %s", q)
		}
		return nil
	}
}

// CountCondition is satisfied when the visible match count meets expectedCount.
func (r *Resolver) CountCondition(q ElementQuery, expectedCount int) Condition {
	return func() error {
		matches, err := r.Matching(q)
		if err != nil {
			return err
		}
		if !countSatisfied(len(matches), expectedCount) {
			if expectedCount > 0 {
				return fmt.Errorf("Found %d of %s, expected %d", len(matches), q, expectedCount)
			}
			return fmt.Errorf("Didn't find %s", q)
		}
		return nil
	}
}

// TextCondition is satisfied once the text is displayed.
func (r *Resolver) TextCondition(text string, partial, onScreen bool) Condition {
	return func() error {
		if r.TextDisplayed(text, AnyCount, partial, onScreen) {
			return nil
		}
		return fmt.Errorf("Didn't find text: %s", text)
	}
}
