package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster[string](1)
	a := b.Subscribe()
	c := b.Subscribe()
	assert.Equal(t, 2, b.Len())

	b.Publish("first")
	assert.Equal(t, "first", <-a)
	assert.Equal(t, "first", <-c)

	// c is not drained, so it skips "third" instead of blocking
	b.Publish("second")
	assert.Equal(t, "second", <-a)
	b.Publish("third")
	assert.Equal(t, "third", <-a)
	assert.Equal(t, "second", <-c)
	assert.Empty(t, c)
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster[int](0)
	ch := b.Subscribe()

	require.True(t, b.Unsubscribe(ch))
	assert.False(t, b.Unsubscribe(ch))
	assert.Equal(t, 0, b.Len())

	_, ok := <-ch
	assert.False(t, ok)

	b.Publish(1)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster[int](0)
	ch := b.Subscribe()
	b.Close()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}
