package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// short windows so the expiry paths run in test time, the production defaults come from the
// configuration
func newTestTracker() *Tracker {
	return NewTracker(60*time.Millisecond, 40*time.Millisecond, 80*time.Millisecond)
}

func TestActiveExpires(t *testing.T) {
	tr := newTestTracker()
	tr.Touch("abc123", "conn-1", "Alice")
	active, _ := tr.Status("abc123", "conn-1")
	assert.True(t, active)

	time.Sleep(100 * time.Millisecond)
	active, _ = tr.Status("abc123", "conn-1")
	assert.False(t, active)
}

func TestActiveRefreshResetsWindow(t *testing.T) {
	tr := newTestTracker()
	tr.Touch("abc123", "conn-1", "Alice")
	time.Sleep(40 * time.Millisecond)
	tr.Touch("abc123", "conn-1", "Alice")
	time.Sleep(40 * time.Millisecond)
	// 80ms after the first touch, but only 40ms after the refresh
	active, _ := tr.Status("abc123", "conn-1")
	assert.True(t, active)
}

func TestTypingSilenceTimeout(t *testing.T) {
	tr := newTestTracker()
	tr.StartTyping("abc123", "conn-1", "Alice")
	_, typing := tr.Status("abc123", "conn-1")
	assert.True(t, typing)

	time.Sleep(70 * time.Millisecond)
	_, typing = tr.Status("abc123", "conn-1")
	assert.False(t, typing)
}

func TestTypingExplicitStop(t *testing.T) {
	tr := newTestTracker()
	tr.StartTyping("abc123", "conn-1", "Alice")
	tr.StopTyping("abc123", "conn-1")
	_, typing := tr.Status("abc123", "conn-1")
	assert.False(t, typing)
}

func TestTypingRestartResetsSilenceTimer(t *testing.T) {
	tr := newTestTracker()
	tr.StartTyping("abc123", "conn-1", "Alice")
	time.Sleep(25 * time.Millisecond)
	tr.StartTyping("abc123", "conn-1", "Alice")
	time.Sleep(25 * time.Millisecond)
	// 50ms after the first start, but only 25ms after the restart
	_, typing := tr.Status("abc123", "conn-1")
	assert.True(t, typing)
}

func TestLineFocusExpires(t *testing.T) {
	tr := newTestTracker()
	tr.SetLine("abc123", "Alice", "conn-1", 4)
	line, ok := tr.Line("abc123", "Alice")
	require.True(t, ok)
	assert.Equal(t, 4, line)

	time.Sleep(120 * time.Millisecond)
	_, ok = tr.Line("abc123", "Alice")
	assert.False(t, ok)
}

func TestStaleLineTimerIsNoop(t *testing.T) {
	tr := newTestTracker()
	tr.SetLine("abc123", "Alice", "conn-1", 4)
	time.Sleep(50 * time.Millisecond)
	tr.SetLine("abc123", "Alice", "conn-1", 7)
	// the first timer fires around t=80ms, it must not clear the newer report
	time.Sleep(50 * time.Millisecond)
	line, ok := tr.Line("abc123", "Alice")
	require.True(t, ok)
	assert.Equal(t, 7, line)
}

func TestClearCancelsTimers(t *testing.T) {
	tr := newTestTracker()
	tr.Touch("abc123", "conn-1", "Alice")
	tr.StartTyping("abc123", "conn-1", "Alice")
	tr.SetLine("abc123", "Alice", "conn-1", 4)

	tr.Clear("abc123", "conn-1")
	active, typing := tr.Status("abc123", "conn-1")
	assert.False(t, active)
	assert.False(t, typing)
	_, ok := tr.Line("abc123", "Alice")
	assert.False(t, ok)
}

func TestClearRoom(t *testing.T) {
	tr := newTestTracker()
	tr.Touch("abc123", "conn-1", "Alice")
	tr.Touch("abc123", "conn-2", "Bob")
	tr.Touch("other", "conn-3", "Carol")
	tr.SetLine("abc123", "Alice", "conn-1", 4)

	tr.ClearRoom("abc123")
	assert.Empty(t, tr.Snapshot("abc123"))
	infos := tr.Snapshot("other")
	require.Len(t, infos, 1)
	assert.Equal(t, "Carol", infos[0].Nick)
}

func TestSnapshot(t *testing.T) {
	tr := newTestTracker()
	tr.Touch("abc123", "conn-1", "Alice")
	tr.StartTyping("abc123", "conn-1", "Alice")
	tr.SetLine("abc123", "Alice", "conn-1", 12)

	infos := tr.Snapshot("abc123")
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Active)
	assert.True(t, infos[0].Typing)
	assert.True(t, infos[0].HasLine)
	assert.Equal(t, 12, infos[0].Line)
}
