package types

// The different payload types transferred between the clients and the coordinator. Incoming
// payloads are decoded from the envelope data via mapstructure, outgoing payloads are
// marshalled as-is, so the mapstructure and json tags must both match the wire field names.

// JoinPayload is sent by a client to enter a room.
type JoinPayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
	Nick   string `json:"username" mapstructure:"username"`
}

// JoinedPayload is sent individually to every room member (including the joiner) after a
// successful join. It carries the full roster so each client can re-render independently.
type JoinedPayload struct {
	Clients []Member `json:"clients"`
	Nick    string   `json:"username"`
	ConnId  string   `json:"socketId"`
}

// DisconnectedPayload is broadcast to the remaining members when a connection leaves.
type DisconnectedPayload struct {
	ConnId string `json:"socketId"`
	Nick   string `json:"username"`
}

// CodeChangePayload carries a full document snapshot, there is no incremental merge.
type CodeChangePayload struct {
	RoomId string `json:"roomId,omitempty" mapstructure:"roomId"`
	Code   string `json:"code" mapstructure:"code"`
	ConnId string `json:"socketId,omitempty" mapstructure:"socketId"`
}

// SyncCodePayload requests a snapshot replication to a single target connection.
type SyncCodePayload struct {
	ConnId string `json:"socketId" mapstructure:"socketId"`
	Code   string `json:"code" mapstructure:"code"`
}

// TypingPayload is used for both typing-start and typing-stop.
type TypingPayload struct {
	RoomId string `json:"roomId,omitempty" mapstructure:"roomId"`
	Nick   string `json:"username" mapstructure:"username"`
	ConnId string `json:"socketId,omitempty" mapstructure:"socketId"`
}

// ActivityPayload is a raw activity signal, the coordinator attaches the timestamp.
type ActivityPayload struct {
	RoomId    string `json:"roomId,omitempty" mapstructure:"roomId"`
	Nick      string `json:"username" mapstructure:"username"`
	ConnId    string `json:"socketId,omitempty" mapstructure:"socketId"`
	Timestamp int64  `json:"timestamp,omitempty" mapstructure:"timestamp"`
}

// CursorPayload relays an opaque cursor position.
type CursorPayload struct {
	RoomId   string      `json:"roomId,omitempty" mapstructure:"roomId"`
	Position interface{} `json:"position" mapstructure:"position"`
	Nick     string      `json:"username" mapstructure:"username"`
	ConnId   string      `json:"socketId,omitempty" mapstructure:"socketId"`
}

// LineHighlightPayload reports the line a participant is focused on.
type LineHighlightPayload struct {
	RoomId     string `json:"roomId,omitempty" mapstructure:"roomId"`
	LineNumber int    `json:"lineNumber" mapstructure:"lineNumber"`
	Nick       string `json:"username" mapstructure:"username"`
	ConnId     string `json:"socketId,omitempty" mapstructure:"socketId"`
}

// MarkLinePayload creates a new line mark.
type MarkLinePayload struct {
	RoomId     string `json:"roomId" mapstructure:"roomId"`
	LineNumber int    `json:"lineNumber" mapstructure:"lineNumber"`
	Nick       string `json:"username" mapstructure:"username"`
	Comment    string `json:"comment" mapstructure:"comment"`
}

// UnmarkLinePayload removes a mark by id. Removal is permitted for any participant,
// regardless of who created the mark.
type UnmarkLinePayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
	MarkId string `json:"markId" mapstructure:"markId"`
	Nick   string `json:"username" mapstructure:"username"`
}

// UnmarkNotice is broadcast after a successful removal and attributes both the remover and
// the original author.
type UnmarkNotice struct {
	MarkId         string `json:"markId"`
	RemovedBy      string `json:"removedBy"`
	OriginalMarker string `json:"originalMarker"`
}

// SyncMarksPayload requests the current mark set of a room.
type SyncMarksPayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
}

// SyncMarksReply answers a sync-marks request.
type SyncMarksReply struct {
	Marks []LineMark `json:"marks"`
}

// ActivityLogPayload appends one entry to the room's activity log.
type ActivityLogPayload struct {
	RoomId    string `json:"roomId,omitempty" mapstructure:"roomId"`
	Nick      string `json:"username" mapstructure:"username"`
	Action    string `json:"action" mapstructure:"action"`
	Timestamp int64  `json:"timestamp,omitempty" mapstructure:"timestamp"`
}

// SyncLogsReply answers a sync-activity-logs request, possibly with an empty list.
type SyncLogsReply struct {
	Logs []ActivityEntry `json:"logs"`
}
