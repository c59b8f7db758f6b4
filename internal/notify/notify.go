// Package notify renders user-facing notifications. The CLI has no
// toast surface, so notifications land on the log at info level;
// deduplication happened before the call, so everything here is meant
// to be seen.
package notify

import (
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
)

// LogNotifier writes notifications through the structured logger.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) SongAdded(title, artist string) {
	n.log.Info("song added to the queue", "title", title, "artist", artist)
}

func (n *LogNotifier) VoteChanged(title string, votes int) {
	n.log.Info("votes changed", "title", title, "votes", votes)
}

func (n *LogNotifier) CaptainAdded(captain, songTitle string) {
	n.log.Info("captain signed up", "captain", captain, "title", songTitle)
}

func (n *LogNotifier) CaptainRemoved(captain, songTitle string) {
	n.log.Info("captain withdrew", "captain", captain, "title", songTitle)
}

func (n *LogNotifier) SongRemoved(title, artist string) {
	n.log.Info("song removed from the queue", "title", title, "artist", artist)
}

func (n *LogNotifier) MutationFailed(action string, err error) {
	n.log.WithError(err).Warn("action failed, change rolled back", "action", action)
}
