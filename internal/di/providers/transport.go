package providers

import (
	"github.com/samber/do/v2"

	"github.com/jamqueueapp/jamqueue-client/internal/channel"
	"github.com/jamqueueapp/jamqueue-client/internal/config"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
	"github.com/jamqueueapp/jamqueue-client/internal/session"
	"github.com/jamqueueapp/jamqueue-client/internal/transport"
)

// ProvideSubscription provides the websocket subscription for the
// configured jam. Dialing starts as soon as this is invoked.
func ProvideSubscription(i do.Injector) (transport.Subscription, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return transport.Subscribe(cfg.Client.WSURL, transport.ChannelFor(cfg.Client.JamID), log), nil
}

// ProvideController binds the subscription to the session. Invoke this
// only after the session is mounted, otherwise early events are
// dropped.
func ProvideController(i do.Injector) (*channel.Controller, error) {
	sub := do.MustInvoke[transport.Subscription](i)
	sess := do.MustInvoke[*session.Session](i)
	log := do.MustInvoke[*logger.Logger](i)
	return channel.Bind(sub, sess, log), nil
}
