// Package channel owns the binding between a jam's broadcast channel
// and its session. It is keyed by jam id alone: rebinds happen on
// transport reconnect or teardown, never because session content
// changed.
package channel

import (
	"sync"

	"github.com/jamqueueapp/jamqueue-client/internal/event"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
	"github.com/jamqueueapp/jamqueue-client/internal/transport"
)

// Session is what the controller feeds decoded events into and tears
// down when the view goes away.
type Session interface {
	Apply(ev event.Event)
	Close()
}

// Controller rebinds the full handler set on every transition into
// connected. Handler bindings do not survive a transport reconnect, so
// this is what makes event handling continuous across connection drops.
type Controller struct {
	sub  transport.Subscription
	sess Session
	log  *logger.Logger

	mu        sync.Mutex
	connected bool
	wasUp     bool
	closed    bool
}

// Bind wires the session to the subscription and starts tracking
// connection state. The returned controller must be closed on teardown.
func Bind(sub transport.Subscription, sess Session, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	c := &Controller{
		sub:  sub,
		sess: sess,
		log:  log.Named("channel"),
	}
	sub.OnConnectionStateChange(c.onStateChange)
	return c
}

// Close unbinds all handlers, drops the subscription, and closes the
// session, which cancels its highlight timers.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.sub.UnbindAll()
	c.sub.Unsubscribe()
	c.sess.Close()
}

func (c *Controller) onStateChange(state transport.ConnState) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	entering := state == transport.StateConnected && !c.connected
	c.connected = state == transport.StateConnected
	reconnect := entering && c.wasUp
	if entering {
		c.wasUp = true
	}
	c.mu.Unlock()

	if !entering {
		return
	}

	if reconnect {
		// Events broadcast while we were down are gone for good; there
		// is no catch-up fetch.
		c.log.Warn("reconnected, events missed while disconnected were not replayed")
	}

	c.rebind()
}

// rebind drops every handler and registers the full set again, one per
// event kind. Unbinding first keeps registration idempotent even if
// the transport ever reports connected twice.
func (c *Controller) rebind() {
	c.sub.UnbindAll()
	for _, kind := range event.Types() {
		kind := kind
		c.sub.On(string(kind), func(payload []byte) {
			ev, err := event.Decode(kind, payload)
			if err != nil {
				c.log.WithError(err).Warn("undecodable event dropped", "kind", string(kind))
				return
			}
			c.sess.Apply(ev)
		})
	}
	c.log.Debug("handlers bound", "kinds", len(event.Types()))
}
