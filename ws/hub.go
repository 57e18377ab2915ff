package ws

import (
	"encoding/json"
	"sync"

	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/types"
)

// MemberLister resolves a room id to its current roster. Implemented by the room store, a
// fake suffices for testing the router in isolation.
type MemberLister interface {
	Members(roomId string) ([]types.Member, bool)
}

// Envelope is one addressed outbound message: an explicit set of target connection ids plus
// the wire event and payload. All audience selection (room-excluding-sender,
// room-including-sender, single target) reduces to an envelope before delivery.
type Envelope struct {
	Targets []string
	Event   string
	Payload interface{}
}

// Hub is the broadcast router. It owns the set of connected clients and delivers envelopes
// into their send buffers. It never mutates room state. Delivery happens synchronously in
// the caller's goroutine, so successive envelopes from one sender reach each recipient's
// buffer in order; there is no ordering guarantee across senders.
type Hub struct {
	members MemberLister

	// Registered clients by connection id.
	clients map[string]*Client

	// Register a new client to the hub.
	Register chan *Client

	// Unregister a client from the hub.
	Unregister chan *Client

	// mutex for manipulating the clients
	sync.RWMutex
}

func NewHub(members MemberLister) *Hub {
	return &Hub{
		members:    members,
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run is the main hub loop handling register and unregister requests.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			globals.AppLogger.Debug("register client", "conn", client.Id)
			h.Lock()
			h.clients[client.Id] = client
			h.Unlock()
			activeConnections.Inc()
			client.Done()

		case client := <-h.Unregister:
			h.Lock()
			if _, ok := h.clients[client.Id]; ok {
				delete(h.clients, client.Id)
				activeConnections.Dec()
				client.conn.Close()
				globals.AppLogger.Debug("unregistered client", "conn", client.Id)
			}
			h.Unlock()
		}
	}
}

// NumClients returns the number of registered clients.
func (h *Hub) NumClients() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.clients)
}

// HasClient reports whether the connection id is currently registered.
func (h *Hub) HasClient(connId string) bool {
	h.RLock()
	defer h.RUnlock()
	_, ok := h.clients[connId]
	return ok
}

// ToConn delivers to a single target connection.
func (h *Hub) ToConn(connId, event string, payload interface{}) {
	h.Deliver(Envelope{Targets: []string{connId}, Event: event, Payload: payload})
}

// ToRoomIncluding delivers to every member of the room.
func (h *Hub) ToRoomIncluding(roomId, event string, payload interface{}) {
	members, ok := h.members.Members(roomId)
	if !ok {
		return
	}
	targets := make([]string, 0, len(members))
	for _, m := range members {
		targets = append(targets, m.ConnId)
	}
	h.Deliver(Envelope{Targets: targets, Event: event, Payload: payload})
}

// ToRoomExcluding delivers to every member of the room except the given connection.
func (h *Hub) ToRoomExcluding(roomId, exceptConnId, event string, payload interface{}) {
	members, ok := h.members.Members(roomId)
	if !ok {
		return
	}
	targets := make([]string, 0, len(members))
	for _, m := range members {
		if m.ConnId == exceptConnId {
			continue
		}
		targets = append(targets, m.ConnId)
	}
	h.Deliver(Envelope{Targets: targets, Event: event, Payload: payload})
}

// Deliver marshals the envelope once and enqueues it to every target that is still
// connected. A full send buffer drops the message for that client only, the write loop of a
// stalled connection is responsible for tearing it down.
func (h *Hub) Deliver(env Envelope) {
	if len(env.Targets) == 0 {
		return
	}
	msg, err := types.NewWebsocketMessage(env.Event, env.Payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal payload", "event", env.Event, "error", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		globals.AppLogger.Error("could not marshal envelope", "event", env.Event, "error", err)
		return
	}
	broadcastsTotal.Inc()
	h.RLock()
	defer h.RUnlock()
	for _, target := range env.Targets {
		client, ok := h.clients[target]
		if !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			messagesDropped.Inc()
			globals.AppLogger.Warn("send buffer full, dropping message", "conn", target, "event", env.Event)
		}
	}
}
