package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Pending broadcasts before new ones are dropped.
	broadcastBuffer = 1024
)

// Event names sent to clients
const (
	EventSnapshot = "snapshot"
	EventStep     = "step"
	EventReset    = "reset"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message represents a WebSocket message
type Message struct {
	VehicleID string             `json:"vehicle_id"`
	Event     string             `json:"event"`
	Snapshot  *vehicle.Snapshot  `json:"snapshot,omitempty"`
	Step      *vehicle.StepEvent `json:"step,omitempty"`
	Data      interface{}        `json:"data,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Client represents a WebSocket client watching one vehicle
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	vehicleID string
}

// countRequest asks the run loop for the number of clients of a vehicle
type countRequest struct {
	vehicleID string
	reply     chan int
}

// Hub maintains the set of active clients and broadcasts messages. The
// clients map is only touched by the Run goroutine.
type Hub struct {
	// Registered clients by vehicle ID
	vehicles map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	count      chan countRequest
	done       chan struct{}

	logger logrus.FieldLogger
}

// NewHub creates a new WebSocket hub. A nil logger falls back to the logrus
// standard logger.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		vehicles:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		logger:     logger.WithField("component", "websocket"),
	}
}

// Run starts the hub's event loop. It returns after Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case req := <-h.count:
			req.reply <- len(h.vehicles[req.vehicleID])

		case <-h.done:
			for _, clients := range h.vehicles {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return
		}
	}
}

// Stop terminates the run loop and disconnects every client
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ServeWS upgrades the request and registers the client for a vehicle
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, vehicleID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		vehicleID: vehicleID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of clients watching a vehicle
func (h *Hub) ClientCount(vehicleID string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{vehicleID: vehicleID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// BroadcastSnapshot sends a vehicle snapshot to all clients of that vehicle
func (h *Hub) BroadcastSnapshot(vehicleID string, snapshot vehicle.Snapshot) {
	h.enqueue(&Message{
		VehicleID: vehicleID,
		Event:     EventSnapshot,
		Snapshot:  &snapshot,
	})
}

// BroadcastStep sends one integration step to all clients of a vehicle. Its
// signature matches session.StepObserver.
func (h *Hub) BroadcastStep(vehicleID string, event vehicle.StepEvent) {
	h.enqueue(&Message{
		VehicleID: vehicleID,
		Event:     EventStep,
		Step:      &event,
	})
}

// BroadcastEvent sends a custom event to all clients of a vehicle
func (h *Hub) BroadcastEvent(vehicleID string, event string, data interface{}) {
	h.enqueue(&Message{
		VehicleID: vehicleID,
		Event:     event,
		Data:      data,
	})
}

// enqueue hands a message to the run loop without blocking the caller; step
// events are produced while a vehicle lock is held.
func (h *Hub) enqueue(message *Message) {
	message.Timestamp = time.Now()
	select {
	case h.broadcast <- message:
	default:
		h.logger.WithFields(logrus.Fields{
			"vehicle": message.VehicleID,
			"event":   message.Event,
		}).Warn("broadcast queue full, dropping message")
	}
}

// registerClient adds a client to a vehicle
func (h *Hub) registerClient(client *Client) {
	if h.vehicles[client.vehicleID] == nil {
		h.vehicles[client.vehicleID] = make(map[*Client]bool)
	}
	h.vehicles[client.vehicleID][client] = true

	h.logger.WithFields(logrus.Fields{
		"vehicle": client.vehicleID,
		"clients": len(h.vehicles[client.vehicleID]),
	}).Info("client registered")
}

// unregisterClient removes a client from a vehicle
func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.vehicles[client.vehicleID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.vehicles, client.vehicleID)
	}

	h.logger.WithFields(logrus.Fields{
		"vehicle": client.vehicleID,
		"clients": len(clients),
	}).Info("client unregistered")
}

// broadcastMessage sends a message to all clients of a vehicle
func (h *Hub) broadcastMessage(message *Message) {
	clients, ok := h.vehicles[message.VehicleID]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal broadcast message")
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// slow consumer
			h.unregisterClient(client)
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// incoming messages are ignored; reading keeps pongs flowing
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("websocket read error")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
