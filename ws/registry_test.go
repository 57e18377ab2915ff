package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Resolve("conn-1")
	assert.False(t, ok)

	r.Register("conn-1", "Alice")
	nick, ok := r.Resolve("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "Alice", nick)

	// re-register overwrites, last join wins
	r.Register("conn-1", "Alicia")
	nick, _ = r.Resolve("conn-1")
	assert.Equal(t, "Alicia", nick)

	r.Unregister("conn-1")
	_, ok = r.Resolve("conn-1")
	assert.False(t, ok)
}
