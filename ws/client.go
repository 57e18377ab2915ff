package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/types"
)

const (
	maxMessageSize  = 1 << 20 // full document snapshots travel over the wire
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 1000
)

// Client is a middleman between the websocket connection and the coordinator.
type Client struct {
	coordinator *Coordinator

	// The websocket connection.
	conn *websocket.Conn

	// Transport-assigned opaque connection id.
	Id string

	// Buffered channel of outbound messages.
	Send chan []byte

	// Room the connection currently belongs to, empty before the first join. Only touched
	// from the read goroutine via the coordinator.
	room string

	// Provisional display name assigned at the handshake, used when a join carries none.
	guestNick string

	doneChan chan struct{}

	// Closed by the hub once the registration went through, see Done and Wait.
	waitRegistered chan struct{}
}

func NewClient(coordinator *Coordinator, conn *websocket.Conn, connId, guestNick string, doneChan chan struct{}) *Client {
	return &Client{
		coordinator:    coordinator,
		conn:           conn,
		Id:             connId,
		Send:           make(chan []byte, sendChannelSize),
		guestNick:      guestNick,
		doneChan:       doneChan,
		waitRegistered: make(chan struct{}),
	}
}

// Done signals that the hub has registered the client.
func (c *Client) Done() {
	close(c.waitRegistered)
}

// Wait blocks until the hub has registered the client.
func (c *Client) Wait() {
	<-c.waitRegistered
}

// ReadLoop pumps messages from the websocket connection to the coordinator.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine. Because every inbound event of the connection is dispatched
// from here, events from one sender are processed strictly in arrival order.
func (c *Client) ReadLoop() {
	defer func() {
		// presence timers and room membership are cleared before the connection is gone for
		// good, so a torn-down room cannot receive further mutations
		c.coordinator.HandleDisconnect(c)
		c.conn.Close()
		close(c.doneChan)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Debug("ws closed unexpected", "conn", c.Id, "error", err)
			}
			return
		}
		message := &types.WebsocketMessage{}
		err = json.Unmarshal(raw, message)
		if err != nil {
			globals.AppLogger.Debug("could not unmarshal ws message, dropping", "conn", c.Id, "error", err)
			continue
		}
		c.coordinator.Dispatch(c, message)
	}
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				globals.AppLogger.Debug("could not send ping message, exiting write loop", "conn", c.Id)
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
