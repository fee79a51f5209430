// Package ws fans committed state snapshots out to browser sessions. Each
// client subscribes to the state document feed; every committed save and
// every adopted remote update is pushed as a full AppState snapshot, so a
// session only needs the latest frame to be current.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // The SPA is served from a different origin.
	},
}

// clientAction is a JSON control message sent by a session.
type clientAction struct {
	Action   string `json:"action"`
	Document string `json:"document"`
}

// Client is one connected session and its document subscriptions.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	documents map[string]bool
	mu        sync.Mutex
}

// Hub tracks connected sessions and broadcasts snapshots to the ones
// subscribed to a given document feed.
type Hub struct {
	clients map[*Client]bool

	// feeds maps document ids to subscribed clients.
	feeds map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan feedFrame

	log *logrus.Entry
	mu  sync.RWMutex
}

// feedFrame pairs a document id with the snapshot payload to broadcast.
type feedFrame struct {
	document string
	data     []byte
}

// NewHub creates a Hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		feeds:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan feedFrame, 64),
		log:        log.WithField("component", "ws"),
	}
}

// Run starts the hub's event loop. It must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case frame := <-h.broadcast:
			h.mu.RLock()
			subs := h.feeds[frame.document]
			var stalled []*Client
			for client := range subs {
				select {
				case client.send <- frame.data:
				default:
					// Send buffer full; the session is too far behind to
					// catch up frame by frame anyway.
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()

			if len(stalled) > 0 {
				h.mu.Lock()
				for _, client := range stalled {
					h.dropLocked(client)
				}
				h.mu.Unlock()
			}
		}
	}
}

// dropLocked removes a client from the hub and all feeds. Caller holds h.mu.
func (h *Hub) dropLocked(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.send)

	client.mu.Lock()
	for doc := range client.documents {
		if subs, ok := h.feeds[doc]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.feeds, doc)
			}
		}
	}
	client.mu.Unlock()
}

// Broadcast pushes a snapshot to every session subscribed to the document.
func (h *Hub) Broadcast(document string, snapshot []byte) {
	h.broadcast <- feedFrame{document: document, data: snapshot}
}

func (h *Hub) subscribe(client *Client, document string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	client.documents[document] = true
	client.mu.Unlock()

	if h.feeds[document] == nil {
		h.feeds[document] = make(map[*Client]bool)
	}
	h.feeds[document][client] = true
}

func (h *Hub) unsubscribe(client *Client, document string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	delete(client.documents, document)
	client.mu.Unlock()

	if subs, ok := h.feeds[document]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.feeds, document)
		}
	}
}

// readPump handles subscribe/unsubscribe control messages from the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).Warn("unexpected close")
			}
			break
		}

		var action clientAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.log.WithError(err).Warn("invalid client message")
			continue
		}

		switch action.Action {
		case "subscribe":
			if action.Document != "" {
				c.hub.subscribe(c, action.Document)
			}
		case "unsubscribe":
			if action.Document != "" {
				c.hub.unsubscribe(c, action.Document)
			}
		default:
			c.hub.log.WithField("action", action.Action).Warn("unknown action")
		}
	}
}

// writePump pushes snapshots from the hub to the session.
func (c *Client) writePump() {
	defer c.conn.Close()

	for message, ok := <-c.send; ok; message, ok = <-c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}

	// Channel closed; write a close message.
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWs upgrades the request and registers the session with the hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).Warn("upgrade failed")
		return
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 64),
		documents: make(map[string]bool),
	}

	hub.register <- client

	go client.writePump()
	go client.readPump()
}
