// Package transport is the subscription side of the sync engine: a
// websocket connection carrying best-effort broadcast events for one
// named channel. Delivery is at-least-zero and unordered; nothing here
// retries a missed message. Handler bindings are scoped to the current
// connection and are dropped on disconnect, so callers must rebind on
// every reconnect.
package transport

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jamqueueapp/jamqueue-client/internal/logger"
)

// ConnState is the transport's connection state.
type ConnState string

const (
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateDisconnected ConnState = "disconnected"
)

// Handler receives the raw payload of one broadcast event.
type Handler func(payload []byte)

// StateHandler observes connection state transitions.
type StateHandler func(state ConnState)

// Subscription is a live binding to one channel.
type Subscription interface {
	// On binds a handler for an event type on the current connection.
	On(eventType string, fn Handler)
	// OnConnectionStateChange registers a state observer. It is called
	// immediately with the current state, so a subscriber registered
	// after the first connect still sees "connected".
	OnConnectionStateChange(fn StateHandler)
	// UnbindAll drops every event handler. State observers survive.
	UnbindAll()
	// Unsubscribe tears the connection down permanently.
	Unsubscribe()
}

// ChannelFor derives the broadcast channel name for a jam.
func ChannelFor(jamID string) string {
	return "jam-" + jamID
}

// wireMessage is one broadcast frame from the server.
type wireMessage struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

type wsSubscription struct {
	wsURL   string
	channel string
	log     *logger.Logger

	mu       sync.Mutex
	state    ConnState
	handlers map[string][]Handler
	stateFns []StateHandler
	conn     *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Subscribe opens a websocket subscription to the channel and keeps it
// alive with capped-backoff reconnects until Unsubscribe.
func Subscribe(wsURL, channel string, log *logger.Logger) Subscription {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &wsSubscription{
		wsURL:    wsURL,
		channel:  channel,
		log:      log.Named("transport").WithField("channel", channel),
		state:    StateConnecting,
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
	go s.run()
	return s
}

func (s *wsSubscription) On(eventType string, fn Handler) {
	s.mu.Lock()
	s.handlers[eventType] = append(s.handlers[eventType], fn)
	s.mu.Unlock()
}

func (s *wsSubscription) OnConnectionStateChange(fn StateHandler) {
	s.mu.Lock()
	s.stateFns = append(s.stateFns, fn)
	current := s.state
	s.mu.Unlock()

	fn(current)
}

func (s *wsSubscription) UnbindAll() {
	s.mu.Lock()
	s.handlers = make(map[string][]Handler)
	s.mu.Unlock()
}

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.handlers = make(map[string][]Handler)
		s.mu.Unlock()
		s.log.Info("unsubscribed")
	})
}

// run is the connection loop: dial, pump messages until the socket
// dies, then back off and dial again.
func (s *wsSubscription) run() {
	backoff := initialBackoff
	for {
		if s.ctx.Err() != nil {
			return
		}
		s.setState(StateConnecting)

		conn, err := s.dial()
		if err != nil {
			s.log.WithError(err).Warn("connect failed", "retryIn", backoff.String())
			if !s.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.setState(StateConnected)

		s.readLoop(conn)

		// The connection is gone; bindings die with it. Events sent
		// while we are down are lost, not replayed.
		s.UnbindAll()
		s.setState(StateDisconnected)

		if s.ctx.Err() != nil {
			return
		}
		if !s.sleep(backoff) {
			return
		}
	}
}

func (s *wsSubscription) dial() (*websocket.Conn, error) {
	u, err := url.Parse(s.wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("channel", s.channel)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	return conn, err
}

// readLoop drains frames one at a time; a handler runs to completion
// before the next frame is read, so merges never interleave.
func (s *wsSubscription) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.WithError(err).Warn("connection lost")
			}
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.WithError(err).Warn("malformed frame dropped")
			continue
		}
		if msg.Channel != "" && msg.Channel != s.channel {
			continue
		}

		s.mu.Lock()
		fns := append([]Handler(nil), s.handlers[msg.Event]...)
		s.mu.Unlock()

		for _, fn := range fns {
			fn(msg.Data)
		}
	}
}

func (s *wsSubscription) setState(state ConnState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	fns := append([]StateHandler(nil), s.stateFns...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (s *wsSubscription) sleep(d time.Duration) bool {
	select {
	case <-s.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
