package types

import "encoding/json"

// The event vocabulary of the websocket protocol. The names are part of the wire contract
// with the editor clients and must not change.
const (
	EventJoin             = "join"
	EventJoined           = "joined"
	EventLeave            = "leave"
	EventDisconnected     = "disconnected"
	EventCodeChange       = "code-change"
	EventSyncCode         = "sync-code"
	EventTypingStart      = "typing-start"
	EventTypingStop       = "typing-stop"
	EventUserActivity     = "user-activity"
	EventCursorPosition   = "cursor-position"
	EventLineHighlight    = "line-highlight"
	EventMarkLine         = "mark-line"
	EventUnmarkLine       = "unmark-line"
	EventSyncMarks        = "sync-marks"
	EventActivityLog      = "activity-log"
	EventSyncActivityLogs = "sync-activity-logs"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewWebsocketMessage wraps a payload in the wire envelope.
func NewWebsocketMessage(event string, payload interface{}) (*WebsocketMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &WebsocketMessage{Event: event, Data: data}, nil
}
