package room

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-code/types"
)

func TestJoinRosterOrderAndRoles(t *testing.T) {
	s := NewStore(100)

	roster := s.Join("abc123", "conn-1", "Alice")
	require.Len(t, roster, 1)
	assert.Equal(t, "Alice", roster[0].Nick)
	assert.Equal(t, types.RoleOwner, roster[0].Role)

	roster = s.Join("abc123", "conn-2", "Bob")
	require.Len(t, roster, 2)
	assert.Equal(t, "Alice", roster[0].Nick)
	assert.Equal(t, "Bob", roster[1].Nick)
	assert.Equal(t, types.RoleMember, roster[1].Role)
}

func TestRejoinLastNickWins(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	roster := s.Join("abc123", "conn-1", "Alicia")
	require.Len(t, roster, 1)
	assert.Equal(t, "Alicia", roster[0].Nick)
	assert.Equal(t, types.RoleOwner, roster[0].Role)
}

func TestLeaveTeardownClearsAllState(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	_, ok := s.AddMark("abc123", 4, "Alice", "fix this", "conn-1")
	require.True(t, ok)
	require.True(t, s.AppendActivity("abc123", types.ActivityEntry{Nick: "Alice", Action: "joined"}))
	s.SetSnapshot("abc123", "package main")

	member, empty, ok := s.Leave("abc123", "conn-1")
	require.True(t, ok)
	assert.True(t, empty)
	assert.Equal(t, "Alice", member.Nick)

	// a fresh join to the same room id starts with empty state
	roster := s.Join("abc123", "conn-2", "Bob")
	require.Len(t, roster, 1)
	assert.Empty(t, s.Marks("abc123"))
	assert.Empty(t, s.Activity("abc123"))
	_, ok = s.Snapshot("abc123")
	assert.False(t, ok)
}

func TestLeaveUnknown(t *testing.T) {
	s := NewStore(100)
	_, _, ok := s.Leave("nope", "conn-1")
	assert.False(t, ok)

	s.Join("abc123", "conn-1", "Alice")
	_, _, ok = s.Leave("abc123", "conn-99")
	assert.False(t, ok)
}

func TestAddMarkClipsComment(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	mark, ok := s.AddMark("abc123", 4, "Alice", long, "conn-1")
	require.True(t, ok)
	assert.Len(t, mark.Comment, 100)
}

func TestMarkIdsUniqueForIdenticalLine(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		mark, ok := s.AddMark("abc123", 4, "Alice", "", "conn-1")
		require.True(t, ok)
		_, dup := seen[mark.Id]
		require.False(t, dup, "duplicate mark id %s", mark.Id)
		seen[mark.Id] = struct{}{}
	}
}

func TestRemoveMarkIdempotent(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	mark, ok := s.AddMark("abc123", 4, "Alice", "fix this", "conn-1")
	require.True(t, ok)

	removed, ok := s.RemoveMark("abc123", mark.Id)
	require.True(t, ok)
	assert.Equal(t, "Alice", removed.Nick)

	_, ok = s.RemoveMark("abc123", mark.Id)
	assert.False(t, ok)

	_, ok = s.RemoveMark("unknown-room", mark.Id)
	assert.False(t, ok)
}

func TestActivityLogBounded(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	for i := 0; i < 101; i++ {
		require.True(t, s.AppendActivity("abc123", types.ActivityEntry{Action: fmt.Sprintf("entry-%d", i)}))
	}
	entries := s.Activity("abc123")
	require.Len(t, entries, 100)
	// newest first, the oldest entry (entry-0) was evicted
	assert.Equal(t, "entry-100", entries[0].Action)
	assert.Equal(t, "entry-1", entries[99].Action)
}

func TestActivityNewestFirst(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	s.AppendActivity("abc123", types.ActivityEntry{Action: "first"})
	s.AppendActivity("abc123", types.ActivityEntry{Action: "second"})
	entries := s.Activity("abc123")
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Action)
	assert.Equal(t, "first", entries[1].Action)
}

func TestUnknownRoomNoops(t *testing.T) {
	s := NewStore(100)
	_, ok := s.AddMark("nope", 1, "Alice", "", "conn-1")
	assert.False(t, ok)
	assert.False(t, s.AppendActivity("nope", types.ActivityEntry{}))
	assert.Nil(t, s.Marks("nope"))
	assert.Nil(t, s.Activity("nope"))
	s.SetSnapshot("nope", "code")
	_, ok = s.Snapshot("nope")
	assert.False(t, ok)
	assert.False(t, s.Clear("nope"))
}

func TestCopyOnRead(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	s.AddMark("abc123", 1, "Alice", "", "conn-1")

	roster, ok := s.Members("abc123")
	require.True(t, ok)
	roster[0].Nick = "Mallory"
	roster2, _ := s.Members("abc123")
	assert.Equal(t, "Alice", roster2[0].Nick)

	marks := s.Marks("abc123")
	marks[0].Comment = "tampered"
	assert.Empty(t, s.Marks("abc123")[0].Comment)
}

func TestClearKeepsMembership(t *testing.T) {
	s := NewStore(100)
	s.Join("abc123", "conn-1", "Alice")
	s.AddMark("abc123", 1, "Alice", "", "conn-1")
	s.AppendActivity("abc123", types.ActivityEntry{Action: "x"})

	require.True(t, s.Clear("abc123"))
	assert.Empty(t, s.Marks("abc123"))
	assert.Empty(t, s.Activity("abc123"))
	roster, ok := s.Members("abc123")
	require.True(t, ok)
	assert.Len(t, roster, 1)
}

func TestAllStats(t *testing.T) {
	s := NewStore(100)
	s.Join("a", "conn-1", "Alice")
	s.Join("b", "conn-2", "Bob")
	s.AddMark("a", 1, "Alice", "", "conn-1")
	stats := s.AllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, 2, s.NumRooms())
}
