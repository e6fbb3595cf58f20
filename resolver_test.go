package pagecam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_ExactAndIdentifierMatch(t *testing.T) {
	app := newFakeApp(
		el(Button, "Continue").withID("continueButton"),
		el(Button, "Cancel"),
	)
	r := NewResolver(app, nil)

	e, ok := r.FindElement(Query(Button, "Continue"))
	require.True(t, ok)
	assert.Equal(t, "Continue", e.Label())

	e, ok = r.FindElement(Query(Button, "continueButton"))
	require.True(t, ok)
	assert.Equal(t, "Continue", e.Label())

	_, ok = r.FindElement(Query(Button, "continue"))
	assert.False(t, ok, "exact matches are case sensitive")
}

func TestResolver_PartialFoldsCaseAndDiacritics(t *testing.T) {
	app := newFakeApp(
		el(StaticText, "Visit our Café today"),
		el(StaticText, "Other").withID("caféLink"),
	)
	r := NewResolver(app, nil)

	assert.True(t, r.FindElements(ElementQuery{Type: StaticText, Text: "CAFE", Partial: true}, 1))
	// Identifiers are compared exactly even in partial mode.
	assert.False(t, r.FindElements(ElementQuery{Type: StaticText, Text: "cafelink", Partial: true, Field: MatchIdentifier}, AnyCount))
	assert.True(t, r.FindElements(ElementQuery{Type: StaticText, Text: "caféLink", Partial: true}, 1))
}

func TestResolver_InvisibleElementsAreIgnored(t *testing.T) {
	app := newFakeApp(
		el(StaticText, "Done").withFrame(Rect{}),
		el(StaticText, "Done"),
	)
	r := NewResolver(app, nil)

	candidates, err := r.Candidates(Query(StaticText, "Done"))
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	assert.True(t, r.FindElements(Query(StaticText, "Done"), 1))
	assert.False(t, r.FindElements(Query(StaticText, "Done"), 2))
	assert.True(t, r.FindElements(Query(StaticText, "Done"), AnyCount))
}

func TestResolver_CountIsExact(t *testing.T) {
	app := newFakeApp(el(Cell, "Row"), el(Cell, "Row"))
	r := NewResolver(app, nil)

	assert.True(t, r.FindElements(Query(Cell, "Row"), 2))
	assert.False(t, r.FindElements(Query(Cell, "Row"), 1))
	assert.False(t, r.FindElements(Query(Cell, "Row"), 3))
	assert.True(t, r.FindElements(Query(Cell, "Row"), -1), "negative counts mean any")
}

func TestResolver_OnScreenRequiresHittable(t *testing.T) {
	app := newFakeApp(el(Button, "Below the fold").asOffscreen())
	r := NewResolver(app, nil)

	assert.True(t, r.FindElements(Query(Button, "Below the fold"), AnyCount))
	assert.False(t, r.FindElements(ElementQuery{Type: Button, Text: "Below the fold", OnScreen: true}, AnyCount))
}

func TestResolver_MissingElementsAreNotVisible(t *testing.T) {
	gone := el(Button, "Gone")
	gone.missing = true
	r := NewResolver(newFakeApp(gone), nil)

	_, ok := r.FindElement(Query(Button, "Gone"))
	assert.False(t, ok)
	assert.False(t, IsVisible(nil, false))
}

func TestResolver_Where(t *testing.T) {
	app := newFakeApp(
		el(Button, "Pay").asDisabled(),
		el(Button, "Pay").withValue("primary"),
	)
	r := NewResolver(app, nil)

	e, ok := r.FindElement(ElementQuery{Type: Button, Text: "Pay", Where: `Enabled && Value == "primary"`})
	require.True(t, ok)
	assert.Equal(t, "primary", e.Value())

	assert.False(t, r.FindElements(ElementQuery{Type: Button, Where: `Width > 500`}, AnyCount))

	_, err := r.Candidates(ElementQuery{Type: Button, Where: `Label +`})
	assert.Error(t, err)
	_, ok = r.FindElement(ElementQuery{Type: Button, Where: `Label +`})
	assert.False(t, ok)
}

func TestResolver_TextDisplayed(t *testing.T) {
	app := newFakeApp(
		el(StaticText, "Your tax credits"),
		el(TextView, "").withValue("Renew by 31 July"),
	)
	r := NewResolver(app, nil)

	assert.True(t, r.TextDisplayed("Your tax credits", AnyCount, false, false))
	assert.True(t, r.TextDisplayed("Renew by 31 July", 1, false, false))
	assert.True(t, r.TextDisplayed("renew by", AnyCount, true, false))
	assert.False(t, r.TextDisplayed("Renew", AnyCount, false, false))
}

func TestResolver_WaitsForIdleWhenEnabled(t *testing.T) {
	app := newFakeApp(el(Button, "OK"))
	r := NewResolver(app, nil)

	r.FindElement(Query(Button, "OK"))
	assert.Equal(t, 1, app.idleWaits)

	func() {
		defer SuppressIdle(app).Release()
		r.FindElement(Query(Button, "OK"))
	}()
	assert.Equal(t, 1, app.idleWaits)
}

func TestResolver_Conditions(t *testing.T) {
	app := newFakeApp(el(Cell, "A"), el(Cell, "B"))
	r := NewResolver(app, nil)

	assert.NoError(t, r.ElementCondition(Query(Cell, "A"))())
	assert.EqualError(t, r.ElementCondition(Query(Cell, "C"))(), "Didn't find cell 'C'")

	assert.NoError(t, r.AbsentCondition(Query(Cell, "C"))())
	assert.EqualError(t, r.AbsentCondition(Query(Cell, "A"))(), "Unexpectedly found cell 'A'")

	assert.NoError(t, r.CountCondition(Query(Cell, ""), 2)())
	assert.EqualError(t, r.CountCondition(Query(Cell, ""), 3)(), "Found 2 of cell, expected 3")

	assert.EqualError(t, r.TextCondition("B", false, false)(), "Didn't find text: B", "cells are not text")
}

func TestElementQuery_String(t *testing.T) {
	q := ElementQuery{Type: Button, Text: "Go", Partial: true, OnScreen: true, Where: "Enabled"}
	assert.Equal(t, "button 'Go' (partial) on screen where Enabled", q.String())
}

func TestResolver_ConditionsPropagateQueryErrors(t *testing.T) {
	r := NewResolver(newFakeApp(), nil)
	err := r.ElementCondition(ElementQuery{Type: Button, Where: "1 +"})()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid element expression")
}
