package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jamqueueapp/jamqueue-client/internal/event"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
)

const (
	sendBuffer  = 32
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 45 * time.Second
	maxFrameLen = 1 << 20
)

// broadcastFrame is the wire shape the client transport reads.
type broadcastFrame struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcast events out to every websocket subscriber of a
// channel, including the client whose mutation caused the event. The
// mutating client's own dedup logic is exercised for real this way.
type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[string]map[string]*hubClient // channel -> conn id -> client
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Hub{
		log: log.Named("hub"),
		upgrader: websocket.Upgrader{
			// Dev tool: accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[string]map[string]*hubClient),
	}
}

// HandleWS upgrades the connection and subscribes it to the channel
// named in the query string.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}

	c := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[string]*hubClient)
	}
	h.subs[channel][c.id] = c
	count := len(h.subs[channel])
	h.mu.Unlock()

	h.log.Info("subscriber joined", "channel", channel, "connId", c.id, "subscribers", count)

	go h.writeLoop(c)
	go h.readLoop(channel, c)
}

// Broadcast sends one event to every subscriber of the channel.
// Delivery is best-effort: a subscriber with a full buffer is dropped,
// never waited on.
func (h *Hub) Broadcast(channel string, kind event.Type, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Error("marshal broadcast payload")
		return
	}
	frame, err := json.Marshal(broadcastFrame{Channel: channel, Event: string(kind), Data: data})
	if err != nil {
		h.log.WithError(err).Error("marshal broadcast frame")
		return
	}

	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.subs[channel]))
	for _, c := range h.subs[channel] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- frame:
		default:
			h.log.Warn("slow subscriber dropped", "channel", channel, "connId", c.id)
			h.remove(channel, c)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, clients := range h.subs {
		for _, c := range clients {
			close(c.send)
		}
		delete(h.subs, channel)
	}
}

// SubscriberCount reports how many connections a channel has.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channel])
}

func (h *Hub) remove(channel string, c *hubClient) {
	h.mu.Lock()
	if clients, ok := h.subs[channel]; ok {
		if _, present := clients[c.id]; present {
			delete(clients, c.id)
			close(c.send)
			if len(clients) == 0 {
				delete(h.subs, channel)
			}
		}
	}
	h.mu.Unlock()
}

func (h *Hub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

// readLoop exists to notice the peer going away; subscribers never send
// application data.
func (h *Hub) readLoop(channel string, c *hubClient) {
	defer h.remove(channel, c)

	c.conn.SetReadLimit(maxFrameLen)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.log.Debug("subscriber left", "channel", channel, "connId", c.id)
			return
		}
	}
}
