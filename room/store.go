package room

import (
	"container/ring"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/types"
)

const (
	maxCommentLength = 100
	snapshotCacheLen = 1024
)

// Store owns all per-room ephemeral state: the membership roster, the line marks, the
// activity log and the transient latest document snapshot. Rooms are created implicitly on
// the first join and torn down atomically when the last member leaves, no state survives an
// empty room.
type Store struct {
	mu          sync.RWMutex
	rooms       map[string]*state
	snapshots   *lru.ARCCache
	historySize int
}

// per-room state, only accessed with the store lock held
type state struct {
	members []types.Member
	marks   map[string]types.LineMark

	// activity log ring, one slot is kept free to tell a full buffer from an empty one
	logStart, logEnd *ring.Ring
	logLen           int
}

// Stats is a summary of one room, served on the admin API.
type Stats struct {
	Id      string `json:"id"`
	Members int    `json:"members"`
	Marks   int    `json:"marks"`
	LogLen  int    `json:"logLen"`
}

func NewStore(historySize int) *Store {
	if historySize <= 0 {
		historySize = 100
	}
	cache, err := lru.NewARC(snapshotCacheLen)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Store{
		rooms:       make(map[string]*state),
		snapshots:   cache,
		historySize: historySize,
	}
}

func (s *Store) newState() *state {
	logRing := ring.New(s.historySize + 1)
	return &state{
		members:  make([]types.Member, 0, 4),
		marks:    make(map[string]types.LineMark),
		logStart: logRing,
		logEnd:   logRing,
	}
}

// Join adds the connection to the room, creating the room if necessary, and returns a copy
// of the full roster. The first member gets the owner role. Re-joining with a different
// nick overwrites the previous one (last join wins).
func (s *Store) Join(roomId, connId, nick string) []types.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomId]
	if !ok {
		st = s.newState()
		s.rooms[roomId] = st
		globals.AppLogger.Debug("created room", "room", roomId)
	}
	found := false
	for i := range st.members {
		if st.members[i].ConnId == connId {
			st.members[i].Nick = nick
			found = true
			break
		}
	}
	if !found {
		role := types.RoleMember
		if len(st.members) == 0 {
			role = types.RoleOwner
		}
		st.members = append(st.members, types.Member{
			ConnId:   connId,
			Nick:     nick,
			Role:     role,
			JoinedAt: time.Now(),
		})
	}
	roster := make([]types.Member, len(st.members))
	copy(roster, st.members)
	return roster
}

// Leave removes the connection from the room. When the membership drops to zero the room
// and all of its derived state (marks, log, cached snapshot) are destroyed in the same
// critical section. The removed member is returned for the disconnect notice.
func (s *Store) Leave(roomId, connId string) (member types.Member, empty bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, exists := s.rooms[roomId]
	if !exists {
		return types.Member{}, false, false
	}
	idx := -1
	for i := range st.members {
		if st.members[i].ConnId == connId {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.Member{}, false, false
	}
	member = st.members[idx]
	st.members = append(st.members[:idx], st.members[idx+1:]...)
	if len(st.members) == 0 {
		delete(s.rooms, roomId)
		s.snapshots.Remove(roomId)
		globals.AppLogger.Debug("room empty, destroyed", "room", roomId)
		return member, true, true
	}
	return member, false, true
}

// Members returns a copy of the roster in join order.
func (s *Store) Members(roomId string) ([]types.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rooms[roomId]
	if !ok {
		return nil, false
	}
	roster := make([]types.Member, len(st.members))
	copy(roster, st.members)
	return roster, true
}

// AddMark stores a new line mark and returns the full record for broadcast. The comment is
// clipped to 100 characters. Marking an unknown room is a no-op.
func (s *Store) AddMark(roomId string, lineNumber int, nick, comment, connId string) (types.LineMark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomId]
	if !ok {
		return types.LineMark{}, false
	}
	if len(comment) > maxCommentLength {
		comment = comment[:maxCommentLength]
	}
	now := time.Now()
	// line number + timestamp alone can collide for rapid identical-line marks, the random
	// suffix disambiguates
	id := fmt.Sprintf("%d-%d-%s", lineNumber, now.UnixNano()/int64(time.Millisecond), uuid.New().String()[:8])
	mark := types.LineMark{
		Id:         id,
		LineNumber: lineNumber,
		Nick:       nick,
		Comment:    comment,
		Timestamp:  now.UnixNano() / int64(time.Millisecond),
		ConnId:     connId,
	}
	st.marks[id] = mark
	return mark, true
}

// RemoveMark deletes a mark by id and returns the removed record. A missing mark (already
// removed by a racing client, or an unknown room) is a no-op, not an error.
func (s *Store) RemoveMark(roomId, markId string) (types.LineMark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomId]
	if !ok {
		return types.LineMark{}, false
	}
	mark, ok := st.marks[markId]
	if !ok {
		return types.LineMark{}, false
	}
	delete(st.marks, markId)
	return mark, true
}

// Marks returns a copy of all current marks of the room.
func (s *Store) Marks(roomId string) []types.LineMark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rooms[roomId]
	if !ok {
		return nil
	}
	marks := make([]types.LineMark, 0, len(st.marks))
	for _, mark := range st.marks {
		marks = append(marks, mark)
	}
	return marks
}

// AppendActivity inserts an entry at the head of the room's activity log. When the log is
// full the oldest entry is evicted.
func (s *Store) AppendActivity(roomId string, entry types.ActivityEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomId]
	if !ok {
		return false
	}
	st.logEnd.Value = entry
	st.logEnd = st.logEnd.Next()
	if st.logEnd == st.logStart {
		st.logStart = st.logStart.Next()
	} else {
		st.logLen++
	}
	return true
}

// Activity returns a copy of the activity log, newest first.
func (s *Store) Activity(roomId string) []types.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rooms[roomId]
	if !ok {
		return nil
	}
	entries := make([]types.ActivityEntry, 0, st.logLen)
	for current := st.logEnd.Prev(); current != st.logStart.Prev(); current = current.Prev() {
		entries = append(entries, current.Value.(types.ActivityEntry))
		if len(entries) == st.logLen {
			break
		}
	}
	return entries
}

// SetSnapshot caches the latest document snapshot of the room. The snapshot is only held
// transiently for replay to late joiners.
func (s *Store) SetSnapshot(roomId, code string) {
	s.mu.RLock()
	_, ok := s.rooms[roomId]
	s.mu.RUnlock()
	if !ok {
		return
	}
	s.snapshots.Add(roomId, code)
}

// Snapshot returns the cached latest document snapshot, if any.
func (s *Store) Snapshot(roomId string) (string, bool) {
	v, ok := s.snapshots.Get(roomId)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Clear removes all marks and the activity log of the room but keeps the membership. Used
// for the privileged bulk-clear action.
func (s *Store) Clear(roomId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomId]
	if !ok {
		return false
	}
	st.marks = make(map[string]types.LineMark)
	logRing := ring.New(s.historySize + 1)
	st.logStart = logRing
	st.logEnd = logRing
	st.logLen = 0
	return true
}

// AllStats returns a summary of every live room.
func (s *Store) AllStats() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]Stats, 0, len(s.rooms))
	for id, st := range s.rooms {
		all = append(all, Stats{Id: id, Members: len(st.members), Marks: len(st.marks), LogLen: st.logLen})
	}
	return all
}

// NumRooms returns the number of live rooms.
func (s *Store) NumRooms() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
