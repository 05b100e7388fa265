package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleKey(t *testing.T) {
	s := New("book-1", 5)

	assert.True(t, s.HandleKey(KeyRight))
	assert.Equal(t, 2, s.CurrentPage())

	assert.True(t, s.HandleKey(KeyLeft))
	assert.Equal(t, 1, s.CurrentPage())

	assert.False(t, s.HandleKey(Key("space")))
	assert.Equal(t, 1, s.CurrentPage())
}

func TestHandleKey_EscapeOnlyClosesOverlay(t *testing.T) {
	s := New("book-1", 5)
	s.GoToPage(3)
	s.ToggleBookmark()
	s.ToggleOverlay()
	before := s.Snapshot()

	assert.True(t, s.HandleKey(KeyEscape))
	assert.False(t, s.OverlayOpen())
	assert.Equal(t, before, s.Snapshot())
}

func TestAttach_DetachStopsDelivery(t *testing.T) {
	kb := NewKeyboard()
	s := New("book-1", 10)

	detach := s.Attach(kb)
	assert.Equal(t, 1, kb.Listeners())

	kb.Dispatch(KeyRight)
	kb.Dispatch(KeyRight)
	assert.Equal(t, 3, s.CurrentPage())

	detach()
	detach()
	assert.Equal(t, 0, kb.Listeners())

	kb.Dispatch(KeyRight)
	assert.Equal(t, 3, s.CurrentPage())
}

func TestKeyboard_IndependentSessions(t *testing.T) {
	kb := NewKeyboard()
	a := New("a", 10)
	b := New("b", 10)

	detachA := a.Attach(kb)
	detachB := b.Attach(kb)
	defer detachB()

	kb.Dispatch(KeyRight)
	detachA()
	kb.Dispatch(KeyRight)

	assert.Equal(t, 2, a.CurrentPage())
	assert.Equal(t, 3, b.CurrentPage())
}
