package presence

import (
	"sync"
	"time"

	"github.com/tcriess/lightspeed-code/types"
)

// Tracker derives the active/typing/line-focus presence state per participant from the
// stream of activity signals. All expiry is wall-clock based. Each key has a single
// authoritative timer which is cancelled and replaced on refresh, the callback re-validates
// a generation counter under the lock so a stale timer firing after a newer update is a
// no-op.
type Tracker struct {
	mu sync.Mutex

	activeWindow  time.Duration
	typingTimeout time.Duration
	lineTimeout   time.Duration

	records map[connKey]*record
	lines   map[lineKey]*lineRecord
}

type connKey struct {
	room string
	conn string
}

type lineKey struct {
	room string
	nick string
}

type record struct {
	nick string

	active    bool
	activeGen uint64
	activeT   *time.Timer

	typing    bool
	typingGen uint64
	typingT   *time.Timer
}

type lineRecord struct {
	conn string
	line int
	gen  uint64
	t    *time.Timer
}

func NewTracker(activeWindow, typingTimeout, lineTimeout time.Duration) *Tracker {
	return &Tracker{
		activeWindow:  activeWindow,
		typingTimeout: typingTimeout,
		lineTimeout:   lineTimeout,
		records:       make(map[connKey]*record),
		lines:         make(map[lineKey]*lineRecord),
	}
}

func (t *Tracker) getRecord(key connKey, nick string) *record {
	rec, ok := t.records[key]
	if !ok {
		rec = &record{}
		t.records[key] = rec
	}
	if nick != "" {
		rec.nick = nick
	}
	return rec
}

// Touch marks the participant active and resets the expiry window. Re-entrant.
func (t *Tracker) Touch(room, conn, nick string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := connKey{room: room, conn: conn}
	rec := t.getRecord(key, nick)
	rec.active = true
	rec.activeGen++
	gen := rec.activeGen
	if rec.activeT != nil {
		rec.activeT.Stop()
	}
	rec.activeT = time.AfterFunc(t.activeWindow, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		rec, ok := t.records[key]
		if !ok || rec.activeGen != gen {
			// a newer signal arrived in the meantime
			return
		}
		rec.active = false
		t.maybeDrop(key, rec)
	})
}

// StartTyping sets the typing flag and (re)arms the silence timer.
func (t *Tracker) StartTyping(room, conn, nick string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := connKey{room: room, conn: conn}
	rec := t.getRecord(key, nick)
	rec.typing = true
	rec.typingGen++
	gen := rec.typingGen
	if rec.typingT != nil {
		rec.typingT.Stop()
	}
	rec.typingT = time.AfterFunc(t.typingTimeout, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		rec, ok := t.records[key]
		if !ok || rec.typingGen != gen {
			return
		}
		rec.typing = false
		t.maybeDrop(key, rec)
	})
}

// StopTyping clears the typing flag immediately and cancels the silence timer.
func (t *Tracker) StopTyping(room, conn string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := connKey{room: room, conn: conn}
	rec, ok := t.records[key]
	if !ok {
		return
	}
	rec.typingGen++
	if rec.typingT != nil {
		rec.typingT.Stop()
		rec.typingT = nil
	}
	rec.typing = false
	t.maybeDrop(key, rec)
}

// SetLine records the line the author is focused on. The expiry timer is keyed by the
// reported value: if the author moves to a different line before expiry, the old timer
// firing must not clear the newer report.
func (t *Tracker) SetLine(room, nick, conn string, line int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := lineKey{room: room, nick: nick}
	rec, ok := t.lines[key]
	if !ok {
		rec = &lineRecord{}
		t.lines[key] = rec
	}
	rec.conn = conn
	rec.line = line
	rec.gen++
	gen := rec.gen
	if rec.t != nil {
		rec.t.Stop()
	}
	rec.t = time.AfterFunc(t.lineTimeout, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		rec, ok := t.lines[key]
		if !ok || rec.gen != gen || rec.line != line {
			return
		}
		delete(t.lines, key)
	})
}

// Line returns the author's last known line, if it has not expired.
func (t *Tracker) Line(room, nick string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.lines[lineKey{room: room, nick: nick}]
	if !ok {
		return 0, false
	}
	return rec.line, true
}

// Status returns the participant's current active/typing flags.
func (t *Tracker) Status(room, conn string) (active, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[connKey{room: room, conn: conn}]
	if !ok {
		return false, false
	}
	return rec.active, rec.typing
}

// Clear drops all presence state of one connection in a room, cancelling its timers. Called
// synchronously during disconnect handling, before any further event for the room is
// processed.
func (t *Tracker) Clear(room, conn string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := connKey{room: room, conn: conn}
	if rec, ok := t.records[key]; ok {
		if rec.activeT != nil {
			rec.activeT.Stop()
		}
		if rec.typingT != nil {
			rec.typingT.Stop()
		}
		delete(t.records, key)
	}
	for lk, rec := range t.lines {
		if lk.room == room && rec.conn == conn {
			if rec.t != nil {
				rec.t.Stop()
			}
			delete(t.lines, lk)
		}
	}
}

// ClearRoom drops all presence state of a room, used on room teardown.
func (t *Tracker) ClearRoom(room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, rec := range t.records {
		if key.room != room {
			continue
		}
		if rec.activeT != nil {
			rec.activeT.Stop()
		}
		if rec.typingT != nil {
			rec.typingT.Stop()
		}
		delete(t.records, key)
	}
	for key, rec := range t.lines {
		if key.room != room {
			continue
		}
		if rec.t != nil {
			rec.t.Stop()
		}
		delete(t.lines, key)
	}
}

// Snapshot returns the presence state of all tracked participants of a room.
func (t *Tracker) Snapshot(room string) []types.PresenceInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	infos := make([]types.PresenceInfo, 0)
	for key, rec := range t.records {
		if key.room != room {
			continue
		}
		info := types.PresenceInfo{
			ConnId: key.conn,
			Nick:   rec.nick,
			Active: rec.active,
			Typing: rec.typing,
		}
		if lrec, ok := t.lines[lineKey{room: room, nick: rec.nick}]; ok {
			info.Line = lrec.line
			info.HasLine = true
		}
		infos = append(infos, info)
	}
	return infos
}

// maybeDrop garbage-collects a record once both flags are down and no timers are pending.
func (t *Tracker) maybeDrop(key connKey, rec *record) {
	if !rec.active && !rec.typing {
		delete(t.records, key)
	}
}
