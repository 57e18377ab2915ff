package ws

import (
	"encoding/json"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/robfig/cron/v3"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/presence"
	"github.com/tcriess/lightspeed-code/room"
	"github.com/tcriess/lightspeed-code/types"
)

// Coordinator is the session state machine. For every inbound event it validates the
// payload, updates the room store and the presence tracker and instructs the hub which
// audience to deliver to. It owns the room lifecycle: rooms come into existence on the
// first join and are destroyed when the last member leaves.
//
// Failure semantics: a malformed payload (missing room or author) is dropped silently, an
// operation on an unknown room or an already-removed mark is an idempotent no-op.
type Coordinator struct {
	store    *room.Store
	presence *presence.Tracker
	registry *Registry
	hub      *Hub
}

func NewCoordinator(store *room.Store, tracker *presence.Tracker, registry *Registry) *Coordinator {
	co := &Coordinator{
		store:    store,
		presence: tracker,
		registry: registry,
	}
	co.hub = NewHub(store)
	return co
}

// Hub returns the broadcast router owned by the coordinator.
func (co *Coordinator) Hub() *Hub {
	return co.hub
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// decode unpacks an envelope data blob into a typed payload, tolerating loosely typed
// client JSON.
func decode(data json.RawMessage, out interface{}) bool {
	raw := make(map[string]interface{})
	if err := json.Unmarshal(data, &raw); err != nil {
		return false
	}
	if err := mapstructure.WeakDecode(raw, out); err != nil {
		return false
	}
	return true
}

// Dispatch routes one inbound event. It is called from the client's read goroutine, so all
// events of one connection are handled in arrival order.
func (co *Coordinator) Dispatch(c *Client, msg *types.WebsocketMessage) {
	eventsTotal.WithLabelValues(msg.Event).Inc()
	switch msg.Event {
	case types.EventJoin:
		p := types.JoinPayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleJoin(c, p)
	case types.EventLeave:
		co.leaveRoom(c)
	case types.EventCodeChange:
		p := types.CodeChangePayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleCodeChange(c, p)
	case types.EventSyncCode:
		p := types.SyncCodePayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleSyncCode(c, p)
	case types.EventTypingStart, types.EventTypingStop:
		p := types.TypingPayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleTyping(c, msg.Event, p)
	case types.EventUserActivity:
		p := types.ActivityPayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleActivity(c, p)
	case types.EventCursorPosition:
		p := types.CursorPayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleCursor(c, p)
	case types.EventLineHighlight:
		p := types.LineHighlightPayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleLineHighlight(c, p)
	case types.EventMarkLine:
		p := types.MarkLinePayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleMarkLine(c, p)
	case types.EventUnmarkLine:
		p := types.UnmarkLinePayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleUnmarkLine(c, p)
	case types.EventSyncMarks:
		p := types.SyncMarksPayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleSyncMarks(c, p)
	case types.EventActivityLog:
		p := types.ActivityLogPayload{}
		if !decode(msg.Data, &p) {
			return
		}
		co.handleActivityLog(c, p)
	case types.EventSyncActivityLogs:
		co.handleSyncLogs(c)
	default:
		globals.AppLogger.Debug("unknown event, dropping", "event", msg.Event, "conn", c.Id)
	}
}

// senderRoom validates that the sender has joined a room and that the payload, if it names
// one, names that room. The empty return means drop silently.
func (co *Coordinator) senderRoom(c *Client, payloadRoom string) (string, bool) {
	if c.room == "" {
		return "", false
	}
	if payloadRoom != "" && payloadRoom != c.room {
		return "", false
	}
	return c.room, true
}

func (co *Coordinator) handleJoin(c *Client, p types.JoinPayload) {
	nick := p.Nick
	if nick == "" {
		nick = c.guestNick
	}
	if p.RoomId == "" || nick == "" {
		globals.AppLogger.Debug("malformed join, dropping", "conn", c.Id)
		return
	}
	if c.room != "" && c.room != p.RoomId {
		// a connection belongs to at most one room at a time
		co.leaveRoom(c)
	}
	co.registry.Register(c.Id, nick)
	roster := co.store.Join(p.RoomId, c.Id, nick)
	c.room = p.RoomId
	activeRooms.Set(float64(co.store.NumRooms()))

	// every current member is notified individually so each can re-render the roster on
	// its own
	payload := types.JoinedPayload{Clients: roster, Nick: nick, ConnId: c.Id}
	for _, member := range roster {
		co.hub.ToConn(member.ConnId, types.EventJoined, payload)
	}

	// replay the latest document snapshot to the joiner only
	if code, ok := co.store.Snapshot(p.RoomId); ok {
		co.hub.ToConn(c.Id, types.EventCodeChange, types.CodeChangePayload{Code: code})
	}
}

// leaveRoom takes the connection out of its current room, tearing the room down when it was
// the last member. Presence timers are cancelled first.
func (co *Coordinator) leaveRoom(c *Client) {
	if c.room == "" {
		return
	}
	roomId := c.room
	co.presence.Clear(roomId, c.Id)
	member, empty, ok := co.store.Leave(roomId, c.Id)
	c.room = ""
	if !ok {
		return
	}
	if empty {
		co.presence.ClearRoom(roomId)
	} else {
		co.hub.ToRoomExcluding(roomId, c.Id, types.EventDisconnected, types.DisconnectedPayload{
			ConnId: c.Id,
			Nick:   member.Nick,
		})
	}
	activeRooms.Set(float64(co.store.NumRooms()))
}

// HandleDisconnect is called synchronously from the read loop when the connection goes
// away, before the hub unregisters the client.
func (co *Coordinator) HandleDisconnect(c *Client) {
	co.leaveRoom(c)
	co.registry.Unregister(c.Id)
}

func (co *Coordinator) handleCodeChange(c *Client, p types.CodeChangePayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok {
		return
	}
	// last writer wins, the snapshot is only kept for replay to late joiners
	co.store.SetSnapshot(roomId, p.Code)
	co.hub.ToRoomExcluding(roomId, c.Id, types.EventCodeChange, types.CodeChangePayload{
		Code:   p.Code,
		ConnId: c.Id,
	})
}

func (co *Coordinator) handleSyncCode(c *Client, p types.SyncCodePayload) {
	if p.ConnId == "" || !co.hub.HasClient(p.ConnId) {
		return
	}
	co.hub.ToConn(p.ConnId, types.EventCodeChange, types.CodeChangePayload{Code: p.Code})
}

func (co *Coordinator) handleTyping(c *Client, event string, p types.TypingPayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok || p.Nick == "" {
		return
	}
	if event == types.EventTypingStart {
		co.presence.StartTyping(roomId, c.Id, p.Nick)
	} else {
		co.presence.StopTyping(roomId, c.Id)
	}
	co.hub.ToRoomExcluding(roomId, c.Id, event, types.TypingPayload{
		Nick:   p.Nick,
		ConnId: c.Id,
	})
}

func (co *Coordinator) handleActivity(c *Client, p types.ActivityPayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok || p.Nick == "" {
		return
	}
	co.presence.Touch(roomId, c.Id, p.Nick)
	co.hub.ToRoomExcluding(roomId, c.Id, types.EventUserActivity, types.ActivityPayload{
		Nick:      p.Nick,
		ConnId:    c.Id,
		Timestamp: nowMs(),
	})
}

func (co *Coordinator) handleCursor(c *Client, p types.CursorPayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok || p.Nick == "" {
		return
	}
	co.hub.ToRoomExcluding(roomId, c.Id, types.EventCursorPosition, types.CursorPayload{
		Position: p.Position,
		Nick:     p.Nick,
		ConnId:   c.Id,
	})
}

func (co *Coordinator) handleLineHighlight(c *Client, p types.LineHighlightPayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok || p.Nick == "" {
		return
	}
	co.presence.SetLine(roomId, p.Nick, c.Id, p.LineNumber)
	co.hub.ToRoomExcluding(roomId, c.Id, types.EventLineHighlight, types.LineHighlightPayload{
		LineNumber: p.LineNumber,
		Nick:       p.Nick,
		ConnId:     c.Id,
	})
}

func (co *Coordinator) handleMarkLine(c *Client, p types.MarkLinePayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok || p.Nick == "" {
		return
	}
	mark, ok := co.store.AddMark(roomId, p.LineNumber, p.Nick, p.Comment, c.Id)
	if !ok {
		return
	}
	co.hub.ToRoomIncluding(roomId, types.EventMarkLine, mark)
}

func (co *Coordinator) handleUnmarkLine(c *Client, p types.UnmarkLinePayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok || p.Nick == "" {
		return
	}
	// any participant may remove any mark; a second removal of the same id is a no-op and
	// produces no duplicate notice
	mark, ok := co.store.RemoveMark(roomId, p.MarkId)
	if !ok {
		return
	}
	co.hub.ToRoomIncluding(roomId, types.EventUnmarkLine, types.UnmarkNotice{
		MarkId:         p.MarkId,
		RemovedBy:      p.Nick,
		OriginalMarker: mark.Nick,
	})
}

func (co *Coordinator) handleSyncMarks(c *Client, p types.SyncMarksPayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok {
		return
	}
	marks := co.store.Marks(roomId)
	if len(marks) == 0 {
		return
	}
	co.hub.ToConn(c.Id, types.EventSyncMarks, types.SyncMarksReply{Marks: marks})
}

func (co *Coordinator) handleActivityLog(c *Client, p types.ActivityLogPayload) {
	roomId, ok := co.senderRoom(c, p.RoomId)
	if !ok || p.Nick == "" {
		return
	}
	entry := types.ActivityEntry{
		Nick:      p.Nick,
		Action:    p.Action,
		Timestamp: nowMs(),
	}
	if err := entry.CreateId(); err != nil {
		globals.AppLogger.Error("could not hash activity entry", "error", err)
		return
	}
	if !co.store.AppendActivity(roomId, entry) {
		return
	}
	co.hub.ToRoomExcluding(roomId, c.Id, types.EventActivityLog, entry)
}

func (co *Coordinator) handleSyncLogs(c *Client) {
	if c.room == "" {
		return
	}
	logs := co.store.Activity(c.room)
	if logs == nil {
		logs = []types.ActivityEntry{}
	}
	co.hub.ToConn(c.Id, types.EventSyncActivityLogs, types.SyncLogsReply{Logs: logs})
}

// RoomStats returns a summary of all live rooms, served on the admin API.
func (co *Coordinator) RoomStats() []room.Stats {
	return co.store.AllStats()
}

// RoomDetail is the full admin view of one room.
type RoomDetail struct {
	Stats    room.Stats           `json:"stats"`
	Members  []types.Member       `json:"members"`
	Presence []types.PresenceInfo `json:"presence"`
	Marks    []types.LineMark     `json:"marks"`
}

// RoomDetail returns membership, presence and marks of one room.
func (co *Coordinator) RoomDetail(roomId string) (RoomDetail, bool) {
	members, ok := co.store.Members(roomId)
	if !ok {
		return RoomDetail{}, false
	}
	marks := co.store.Marks(roomId)
	return RoomDetail{
		Stats:    room.Stats{Id: roomId, Members: len(members), Marks: len(marks), LogLen: len(co.store.Activity(roomId))},
		Members:  members,
		Presence: co.presence.Snapshot(roomId),
		Marks:    marks,
	}, true
}

// ClearRoom wipes the marks and the activity log of a room and pushes the now-empty state
// to all members. This is the privileged bulk-clear action, reachable via the admin API.
func (co *Coordinator) ClearRoom(roomId string) bool {
	if !co.store.Clear(roomId) {
		return false
	}
	co.hub.ToRoomIncluding(roomId, types.EventSyncMarks, types.SyncMarksReply{Marks: []types.LineMark{}})
	co.hub.ToRoomIncluding(roomId, types.EventSyncActivityLogs, types.SyncLogsReply{Logs: []types.ActivityEntry{}})
	return true
}

// StartStatsCron schedules a periodic room stats log line. The returned runner is already
// started, the caller owns stopping it.
func (co *Coordinator) StartStatsCron() *cron.Cron {
	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := cronRunner.AddFunc("@every 1m", func() {
		stats := co.store.AllStats()
		members := 0
		marks := 0
		for _, s := range stats {
			members += s.Members
			marks += s.Marks
		}
		globals.AppLogger.Info("room stats", "rooms", len(stats), "members", members, "marks", marks, "connections", co.hub.NumClients())
	})
	if err != nil {
		panic(err)
	}
	cronRunner.Start()
	return cronRunner
}
