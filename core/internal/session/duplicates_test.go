package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuplicateWindow_Observe(t *testing.T) {
	w := NewDuplicateWindow(time.Minute)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	dup, entry := w.Observe("SENDER", "ORDER1", t0)
	assert.False(t, dup)
	assert.Equal(t, 1, entry.Count)

	dup, entry = w.Observe("SENDER", "ORDER1", t0.Add(10*time.Second))
	assert.True(t, dup)
	assert.Equal(t, 2, entry.Count)
	assert.Equal(t, t0, entry.FirstSeen)

	dup, _ = w.Observe("OTHER", "ORDER1", t0.Add(10*time.Second))
	assert.False(t, dup, "la ventana es por session key")
	assert.Equal(t, 2, w.Size())
}

func TestDuplicateWindow_ExpiredIsNew(t *testing.T) {
	w := NewDuplicateWindow(time.Minute)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	w.Observe("SENDER", "ORDER1", t0)
	dup, entry := w.Observe("SENDER", "ORDER1", t0.Add(2*time.Minute))
	assert.False(t, dup)
	assert.Equal(t, 1, entry.Count)
}

func TestDuplicateWindow_Cleanup(t *testing.T) {
	w := NewDuplicateWindow(time.Minute)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	w.Observe("SENDER", "OLD", t0)
	w.Observe("SENDER", "NEW", t0.Add(50*time.Second))

	assert.Equal(t, 1, w.Cleanup(t0.Add(90*time.Second)))
	assert.Equal(t, 1, w.Size())
}
