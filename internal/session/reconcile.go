package session

import (
	"time"

	"github.com/jamqueueapp/jamqueue-client/internal/event"
)

// Apply merges one broadcast event into the session. Events arrive with
// no ordering or delivery guarantee and may be duplicates, so every
// branch is idempotent: applying the same event twice changes state at
// most once and toasts at most once. Events referencing entries this
// client has never seen are dropped without error; the next full fetch
// is the recovery path.
func (s *Session) Apply(ev event.Event) {
	s.mu.Lock()
	if !s.mounted || s.jam == nil {
		s.mu.Unlock()
		return
	}

	var (
		changed bool
		notify  func()
	)

	switch e := ev.(type) {
	case event.SongAdded:
		changed, notify = s.applySongAdded(e)
	case event.Vote:
		changed, notify = s.applyVote(e)
	case event.CaptainAdded:
		changed, notify = s.applyCaptainAdded(e)
	case event.CaptainRemoved:
		changed, notify = s.applyCaptainRemoved(e)
	case event.SongPlayed:
		changed = s.applySongPlayed(e)
	case event.SongRemoved:
		changed, notify = s.applySongRemoved(e)
	case event.SongEdited:
		changed = s.applySongEdited(e)
	default:
		s.log.Warn("unhandled event kind", "kind", ev.Kind())
	}
	s.mu.Unlock()

	if changed {
		s.emitChange()
	}
	if notify != nil && s.notifier != nil {
		notify()
	}
}

// applySongAdded appends the entry unless it is already present. The
// added toast fires once per entry id per session, which also covers
// the echo of this client's own add.
func (s *Session) applySongAdded(e event.SongAdded) (bool, func()) {
	var notify func()
	if _, seen := s.notifiedAdds[e.Song.ID]; !seen {
		s.notifiedAdds[e.Song.ID] = struct{}{}
		title, artist := e.Song.Song.Title, e.Song.Song.Artist
		notify = func() { s.notifier.SongAdded(title, artist) }
	}

	if s.jam.FindEntry(e.Song.ID) >= 0 {
		return false, notify
	}

	next := s.jam.Clone()
	next.Songs = append(next.Songs, e.Song.Clone())
	s.jam = next
	return true, notify
}

// applyVote settles the entry on the event's absolute count. A count
// the client already holds is a pure no-op: that is the re-statement of
// its own optimistic vote, or a duplicate delivery. A real change that
// moves the entry in the current sort flashes it.
func (s *Session) applyVote(e event.Vote) (bool, func()) {
	idx := s.jam.FindEntry(e.SongID)
	if idx < 0 {
		s.log.Debug("vote for unknown entry dropped", "entryId", e.SongID)
		return false, nil
	}
	if s.jam.Songs[idx].Votes == e.Votes {
		return false, nil
	}

	before := s.deriveLocked().Position(e.SongID)

	next := s.jam.Clone()
	next.Songs[idx].Votes = e.Votes
	s.jam = next

	if after := s.deriveLocked().Position(e.SongID); after != before {
		s.flashLocked(next, idx)
	}

	key := voteKey{entryID: e.SongID, votes: e.Votes}
	_, seen := s.notifiedVotes[key]
	s.notifiedVotes[key] = struct{}{}

	var notify func()
	if !seen && !e.Silent {
		title, votes := next.Songs[idx].Song.Title, e.Votes
		notify = func() { s.notifier.VoteChanged(title, votes) }
	}
	return true, notify
}

func (s *Session) applyCaptainAdded(e event.CaptainAdded) (bool, func()) {
	idx := s.jam.FindEntry(e.SongID)
	if idx < 0 {
		s.log.Debug("captain-added for unknown entry dropped", "entryId", e.SongID)
		return false, nil
	}
	if s.jam.Songs[idx].HasCaptain(e.Captain.Name, e.Captain.Type) {
		return false, nil
	}

	next := s.jam.Clone()
	next.Songs[idx].Captains = append(next.Songs[idx].Captains, e.Captain)
	s.jam = next

	// A client is not told about its own sign-up.
	var notify func()
	if e.Captain.Name != s.displayName {
		name, title := e.Captain.Name, next.Songs[idx].Song.Title
		notify = func() { s.notifier.CaptainAdded(name, title) }
	}
	return true, notify
}

func (s *Session) applyCaptainRemoved(e event.CaptainRemoved) (bool, func()) {
	idx := s.jam.FindEntry(e.SongID)
	if idx < 0 {
		s.log.Debug("captain-removed for unknown entry dropped", "entryId", e.SongID)
		return false, nil
	}
	if !s.jam.Songs[idx].HasCaptain(e.Captain.Name, e.Captain.Type) {
		return false, nil
	}

	next := s.jam.Clone()
	next.Songs[idx].Captains = removeCaptain(next.Songs[idx].Captains, e.Captain.Name, e.Captain.Type)
	s.jam = next

	var notify func()
	if e.Captain.Name != s.displayName {
		name, title := e.Captain.Name, next.Songs[idx].Song.Title
		notify = func() { s.notifier.CaptainRemoved(name, title) }
	}
	return true, notify
}

// applySongPlayed takes the event's played state verbatim: the payload
// is authoritative, nothing is derived locally.
func (s *Session) applySongPlayed(e event.SongPlayed) bool {
	idx := s.jam.FindEntry(e.SongID)
	if idx < 0 {
		s.log.Debug("song-played for unknown entry dropped", "entryId", e.SongID)
		return false
	}
	cur := &s.jam.Songs[idx]
	if cur.Played == e.Played && equalTimePtr(cur.PlayedAt, e.PlayedAt) {
		return false
	}

	next := s.jam.Clone()
	next.Songs[idx].Played = e.Played
	if e.PlayedAt != nil {
		at := *e.PlayedAt
		next.Songs[idx].PlayedAt = &at
	} else {
		next.Songs[idx].PlayedAt = nil
	}
	s.jam = next
	return true
}

// applySongRemoved deletes the entry and always toasts: a removal is
// visible to every other client. Unknown ids are the documented no-op.
func (s *Session) applySongRemoved(e event.SongRemoved) (bool, func()) {
	idx := s.jam.FindEntry(e.SongID)
	if idx < 0 {
		return false, nil
	}

	next := s.jam.Clone()
	next.Songs = append(next.Songs[:idx], next.Songs[idx+1:]...)
	s.jam = next
	s.highlights.Cancel(e.SongID)

	title, artist := e.SongTitle, e.SongArtist
	return true, func() { s.notifier.SongRemoved(title, artist) }
}

// applySongEdited rewrites the catalog fields on every entry that
// references the song; the queue can hold a song more than once.
func (s *Session) applySongEdited(e event.SongEdited) bool {
	next := s.jam.Clone()
	touched := false
	for i := range next.Songs {
		if next.Songs[i].Song.ID == e.SongID {
			applyCatalogFields(&next.Songs[i].Song, e.UpdatedSong)
			touched = true
		}
	}
	if !touched {
		s.log.Debug("song-edited for unknown song dropped", "songId", e.SongID)
		return false
	}
	s.jam = next
	return true
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
