// Package session holds a client's live copy of one jam and keeps it
// consistent: optimistic local mutations on one side, best-effort
// broadcast events on the other, merged so that neither produces
// duplicate effects.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/errors"
	"github.com/jamqueueapp/jamqueue-client/internal/highlight"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
	"github.com/jamqueueapp/jamqueue-client/internal/queue"
)

// Loader fetches the initial jam snapshot on mount.
type Loader interface {
	FetchJam(ctx context.Context, jamID string) (*domain.JamSession, error)
}

// Mutator performs one server mutation per user action. Calls are
// single-attempt: the session never retries, it reverts.
type Mutator interface {
	AddSong(ctx context.Context, jamID, songID string) (domain.QueueEntry, error)
	Vote(ctx context.Context, jamID, entryID string, delta int, silent bool) error
	SetPlayed(ctx context.Context, jamID, entryID string, played bool) error
	RemoveSong(ctx context.Context, jamID, entryID string) error
	EditSong(ctx context.Context, jamID, songID string, updated domain.Song) error
	AddCaptain(ctx context.Context, jamID, entryID string, captain domain.Captain) error
	RemoveCaptain(ctx context.Context, jamID, entryID string, captain domain.Captain) error
}

// Notifier surfaces user-visible toasts. Deduplication happens in the
// session before these are called, never inside the notifier.
type Notifier interface {
	SongAdded(title, artist string)
	VoteChanged(title string, votes int)
	CaptainAdded(captain, songTitle string)
	CaptainRemoved(captain, songTitle string)
	SongRemoved(title, artist string)
	MutationFailed(action string, err error)
}

// ChangeFunc observes every snapshot replacement. The session passes a
// fresh *domain.JamSession on each call, so reference equality is
// enough to detect change.
type ChangeFunc func(jam *domain.JamSession, view queue.View)

// voteKey deduplicates vote notifications: one toast per entry per
// resulting count, no matter how often the event is redelivered.
type voteKey struct {
	entryID string
	votes   int
}

// Options configures a Session.
type Options struct {
	JamID       string
	DisplayName string
	Loader      Loader
	Mutator     Mutator
	Notifier    Notifier
	Logger      *logger.Logger

	Grouping bool
	SortMode queue.SortMode

	// HighlightDuration defaults to highlight.DefaultDuration.
	HighlightDuration time.Duration
}

// Session is the client-side reconciliation state for one open jam.
// A mutex stands in for the single UI thread: mutations and event
// merges are serialized, and each one replaces the snapshot wholesale.
type Session struct {
	mu sync.Mutex

	jamID       string
	displayName string

	loader   Loader
	mutator  Mutator
	notifier Notifier
	log      *logger.Logger

	jam     *domain.JamSession
	mounted bool

	// voted is this client's own vote marker, independent of server
	// state and reverted symmetrically with the count on failure.
	voted map[string]bool

	notifiedAdds  map[string]struct{}
	notifiedVotes map[voteKey]struct{}

	highlights   *highlight.Manager
	highlightTTL time.Duration

	grouping bool
	sortMode queue.SortMode

	onChange ChangeFunc
}

// New creates an unmounted session. Call Mount to fetch the snapshot.
func New(opts Options) *Session {
	if opts.SortMode == "" {
		opts.SortMode = queue.SortVotes
	}
	if opts.HighlightDuration <= 0 {
		opts.HighlightDuration = highlight.DefaultDuration
	}
	if opts.Logger == nil {
		opts.Logger = logger.New(logger.Config{})
	}

	s := &Session{
		jamID:         opts.JamID,
		displayName:   opts.DisplayName,
		loader:        opts.Loader,
		mutator:       opts.Mutator,
		notifier:      opts.Notifier,
		log:           opts.Logger.Named("session").WithField("jamId", opts.JamID),
		voted:         make(map[string]bool),
		notifiedAdds:  make(map[string]struct{}),
		notifiedVotes: make(map[voteKey]struct{}),
		highlightTTL:  opts.HighlightDuration,
		grouping:      opts.Grouping,
		sortMode:      opts.SortMode,
	}
	s.highlights = highlight.NewManager(s.expireHighlight)
	return s
}

// Mount fetches the jam snapshot and marks the session live.
func (s *Session) Mount(ctx context.Context) error {
	jam, err := s.loader.FetchJam(ctx, s.jamID)
	if err != nil {
		return errors.Wrapf(err, errors.CodeTransport, "fetch jam %s", s.jamID)
	}

	s.mu.Lock()
	s.jam = jam
	s.mounted = true
	songs := len(jam.Songs)
	s.mu.Unlock()

	s.log.Info("session mounted", "songs", songs)
	s.emitChange()
	return nil
}

// Close tears the session down. Pending highlight timers are canceled
// and any late mutation response or broadcast event becomes a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	wasMounted := s.mounted
	s.mounted = false
	s.mu.Unlock()

	s.highlights.CancelAll()
	if wasMounted {
		s.log.Info("session closed")
	}
}

// OnChange registers the snapshot observer. Passing nil clears it.
func (s *Session) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns the current jam. The returned structure is replaced,
// never edited, on every change; callers must treat it as read-only.
func (s *Session) Snapshot() *domain.JamSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jam
}

// View derives the current display view.
func (s *Session) View() queue.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deriveLocked()
}

// HasVoted reports whether this client has voted for the entry.
func (s *Session) HasVoted(entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voted[entryID]
}

// SetGrouping switches banger/ballad grouping and re-derives the view.
func (s *Session) SetGrouping(enabled bool) {
	s.mu.Lock()
	s.grouping = enabled
	s.mu.Unlock()
	s.emitChange()
}

// SetSortMode switches the unplayed sort and re-derives the view.
func (s *Session) SetSortMode(mode queue.SortMode) {
	s.mu.Lock()
	s.sortMode = mode
	s.mu.Unlock()
	s.emitChange()
}

// JamID returns the jam this session is bound to.
func (s *Session) JamID() string {
	return s.jamID
}

func (s *Session) deriveLocked() queue.View {
	if s.jam == nil {
		return queue.View{}
	}
	return queue.DeriveView(s.jam.Songs, s.grouping, s.sortMode)
}

// emitChange invokes the observer outside the lock so it can call back
// into the session.
func (s *Session) emitChange() {
	s.mu.Lock()
	fn := s.onChange
	jam := s.jam
	view := s.deriveLocked()
	s.mu.Unlock()

	if fn != nil && jam != nil {
		fn(jam, view)
	}
}

// flashLocked marks an entry highlighted on the given snapshot and arms
// its expiry timer. Caller holds the lock and owns next.
func (s *Session) flashLocked(next *domain.JamSession, idx int) {
	next.Songs[idx].Highlight = domain.HighlightSuccess
	s.highlights.ScheduleExpiry(next.Songs[idx].ID, s.highlightTTL)
}

// expireHighlight is the timer callback: clear the marker and publish.
func (s *Session) expireHighlight(entryID string) {
	s.mu.Lock()
	if !s.mounted || s.jam == nil {
		s.mu.Unlock()
		return
	}
	idx := s.jam.FindEntry(entryID)
	if idx < 0 || s.jam.Songs[idx].Highlight == domain.HighlightNone {
		s.mu.Unlock()
		return
	}
	next := s.jam.Clone()
	next.Songs[idx].Highlight = domain.HighlightNone
	s.jam = next
	s.mu.Unlock()

	s.emitChange()
}
