package providers

import (
	"github.com/samber/do/v2"

	"github.com/jamqueueapp/jamqueue-client/internal/api"
	"github.com/jamqueueapp/jamqueue-client/internal/config"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
	"github.com/jamqueueapp/jamqueue-client/internal/notify"
	"github.com/jamqueueapp/jamqueue-client/internal/queue"
	"github.com/jamqueueapp/jamqueue-client/internal/session"
)

// ProvideAPIClient provides the REST client for the jam server.
func ProvideAPIClient(i do.Injector) (*api.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return api.NewClient(cfg.Client.ServerURL, log), nil
}

// ProvideNotifier provides the notification sink.
func ProvideNotifier(i do.Injector) (*notify.LogNotifier, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return notify.NewLogNotifier(log), nil
}

// ProvideSession provides the unmounted jam session. The caller is
// responsible for Mount.
func ProvideSession(i do.Injector) (*session.Session, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*api.Client](i)
	notifier := do.MustInvoke[*notify.LogNotifier](i)

	return session.New(session.Options{
		JamID:             cfg.Client.JamID,
		DisplayName:       cfg.Client.DisplayName,
		Loader:            client,
		Mutator:           client,
		Notifier:          notifier,
		Logger:            log,
		Grouping:          cfg.Client.Grouping,
		SortMode:          queue.SortMode(cfg.Client.SortMode),
		HighlightDuration: cfg.Client.HighlightDuration,
	}), nil
}
