package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event types pushed to staff clients.
const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingReminder  = "booking_reminder"
	EventBookingCancelled = "booking_cancelled"
	EventStaffNotif       = "staff_notification"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	role string
	// gorilla allows one concurrent writer per connection.
	writeMu sync.Mutex
}

// Hub holds the connected staff websocket clients, keyed to their role.
type Hub struct {
	clients map[*websocket.Conn]*client
	mutex   sync.Mutex
	log     *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client), log: log}
}

func (h *Hub) Register(conn *websocket.Conn, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = &client{role: role}
	h.log.WithFields(logrus.Fields{"role": role, "clients": len(h.clients)}).Debug("websocket client registered")
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast sends msg to every client. Writes run outside the hub lock and in
// parallel, so a stalled client costs at most one write deadline. Clients
// that cannot be written to are dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).WithField("event", msg.Event).Error("marshal websocket message")
		return
	}

	h.mutex.Lock()
	targets := make(map[*websocket.Conn]*client, len(h.clients))
	for conn, c := range h.clients {
		targets[conn] = c
	}
	h.mutex.Unlock()

	var wg sync.WaitGroup
	for conn, c := range targets {
		wg.Add(1)
		go func(conn *websocket.Conn, c *client) {
			defer wg.Done()
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.TextMessage, data)
			c.writeMu.Unlock()
			if err != nil {
				h.log.WithError(err).WithField("role", c.role).Warn("dropping websocket client")
				h.Unregister(conn)
			}
		}(conn, c)
	}
	wg.Wait()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
}
