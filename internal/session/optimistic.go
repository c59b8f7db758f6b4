package session

import (
	"context"
	"time"

	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/errors"
)

// silentVoteTimeout bounds the background self-vote fired after an add;
// it must not inherit the caller's context, which may already be done.
const silentVoteTimeout = 10 * time.Second

// Vote applies a +1 optimistically, records the has-voted marker, then
// confirms with the server. On failure both are reverted together and
// the user is told; the vote is never retried.
func (s *Session) Vote(ctx context.Context, entryID string) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := s.jam.FindEntry(entryID)
	if idx < 0 {
		s.mu.Unlock()
		return errors.NotFoundf("entry %s not in jam", entryID)
	}
	if s.voted[entryID] {
		s.mu.Unlock()
		return errors.Conflict("already voted for this entry")
	}

	prev := s.jam
	next := s.jam.Clone()
	next.Songs[idx].Votes++
	s.jam = next
	s.voted[entryID] = true
	s.mu.Unlock()

	s.emitChange()

	if err := s.mutator.Vote(ctx, s.jamID, entryID, +1, false); err != nil {
		s.revert("vote", prev, err, func() { delete(s.voted, entryID) })
		return err
	}
	return nil
}

// Unvote is the symmetric -1.
func (s *Session) Unvote(ctx context.Context, entryID string) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := s.jam.FindEntry(entryID)
	if idx < 0 {
		s.mu.Unlock()
		return errors.NotFoundf("entry %s not in jam", entryID)
	}
	if !s.voted[entryID] {
		s.mu.Unlock()
		return errors.Conflict("no vote to withdraw")
	}

	prev := s.jam
	next := s.jam.Clone()
	if next.Songs[idx].Votes > 0 {
		next.Songs[idx].Votes--
	}
	s.jam = next
	delete(s.voted, entryID)
	s.mu.Unlock()

	s.emitChange()

	if err := s.mutator.Vote(ctx, s.jamID, entryID, -1, false); err != nil {
		s.revert("unvote", prev, err, func() { s.voted[entryID] = true })
		return err
	}
	return nil
}

// TogglePlayed flips the entry's played state, stamping PlayedAt and
// the song's play history locally; the broadcast restates both.
func (s *Session) TogglePlayed(ctx context.Context, entryID string) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := s.jam.FindEntry(entryID)
	if idx < 0 {
		s.mu.Unlock()
		return errors.NotFoundf("entry %s not in jam", entryID)
	}

	prev := s.jam
	next := s.jam.Clone()
	e := &next.Songs[idx]
	target := !e.Played
	if target {
		now := time.Now()
		e.MarkPlayed(now)
		e.Song.RecordPlay(now, next.Name)
	} else {
		e.MarkUnplayed()
	}
	s.jam = next
	s.mu.Unlock()

	s.emitChange()

	if err := s.mutator.SetPlayed(ctx, s.jamID, entryID, target); err != nil {
		s.revert("toggle played", prev, err, nil)
		return err
	}
	return nil
}

// Remove splices the entry out optimistically.
func (s *Session) Remove(ctx context.Context, entryID string) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := s.jam.FindEntry(entryID)
	if idx < 0 {
		s.mu.Unlock()
		return errors.NotFoundf("entry %s not in jam", entryID)
	}

	prev := s.jam
	next := s.jam.Clone()
	next.Songs = append(next.Songs[:idx], next.Songs[idx+1:]...)
	s.jam = next
	s.mu.Unlock()

	s.highlights.Cancel(entryID)
	s.emitChange()

	if err := s.mutator.RemoveSong(ctx, s.jamID, entryID); err != nil {
		s.revert("remove song", prev, err, nil)
		return err
	}
	return nil
}

// Edit replaces the catalog fields on every entry referencing the song.
func (s *Session) Edit(ctx context.Context, songID string, updated domain.Song) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	prev := s.jam
	next := s.jam.Clone()
	touched := false
	for i := range next.Songs {
		if next.Songs[i].Song.ID == songID {
			applyCatalogFields(&next.Songs[i].Song, updated)
			touched = true
		}
	}
	if !touched {
		s.mu.Unlock()
		return errors.NotFoundf("song %s not in jam", songID)
	}
	s.jam = next
	s.mu.Unlock()

	s.emitChange()

	if err := s.mutator.EditSong(ctx, s.jamID, songID, updated); err != nil {
		s.revert("edit song", prev, err, nil)
		return err
	}
	return nil
}

// Add asks the server for the new entry first (the server assigns its
// id and order), then installs it locally with an initial self-vote:
// votes=1, has-voted set, highlight flashed. The confirming vote goes
// out in the background flagged silent so this client never sees a
// toast for its own action.
func (s *Session) Add(ctx context.Context, songID string) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	entry, err := s.mutator.AddSong(ctx, s.jamID, songID)
	if err != nil {
		if s.notifier != nil {
			s.notifier.MutationFailed("add song", err)
		}
		return err
	}

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return nil
	}
	next := s.jam.Clone()
	idx := next.FindEntry(entry.ID)
	if idx < 0 {
		next.Songs = append(next.Songs, entry.Clone())
		idx = len(next.Songs) - 1
	}
	next.Songs[idx].Votes = 1
	s.voted[entry.ID] = true
	// Our own add never toasts, even if the broadcast echo wins the race.
	s.notifiedAdds[entry.ID] = struct{}{}
	s.flashLocked(next, idx)
	s.jam = next
	s.mu.Unlock()

	s.emitChange()

	go s.silentSelfVote(entry.ID)
	return nil
}

// AddCaptain signs the captain up optimistically. Adding a captain that
// is already on the entry is a no-op, which keeps the echo harmless.
func (s *Session) AddCaptain(ctx context.Context, entryID string, kind domain.CaptainType) error {
	captain := domain.Captain{Name: s.displayName, Type: kind, CreatedAt: time.Now()}

	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := s.jam.FindEntry(entryID)
	if idx < 0 {
		s.mu.Unlock()
		return errors.NotFoundf("entry %s not in jam", entryID)
	}
	if s.jam.Songs[idx].HasCaptain(captain.Name, captain.Type) {
		s.mu.Unlock()
		return errors.Conflict("already signed up")
	}

	prev := s.jam
	next := s.jam.Clone()
	next.Songs[idx].Captains = append(next.Songs[idx].Captains, captain)
	s.jam = next
	s.mu.Unlock()

	s.emitChange()

	if err := s.mutator.AddCaptain(ctx, s.jamID, entryID, captain); err != nil {
		s.revert("sign up", prev, err, nil)
		return err
	}
	return nil
}

// RemoveCaptain withdraws this client's sign-up of the given type.
func (s *Session) RemoveCaptain(ctx context.Context, entryID string, kind domain.CaptainType) error {
	s.mu.Lock()
	if err := s.mountedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := s.jam.FindEntry(entryID)
	if idx < 0 {
		s.mu.Unlock()
		return errors.NotFoundf("entry %s not in jam", entryID)
	}
	var captain domain.Captain
	found := false
	for _, c := range s.jam.Songs[idx].Captains {
		if c.Name == s.displayName && c.Type == kind {
			captain, found = c, true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return errors.Conflict("not signed up")
	}

	prev := s.jam
	next := s.jam.Clone()
	next.Songs[idx].Captains = removeCaptain(next.Songs[idx].Captains, captain.Name, captain.Type)
	s.jam = next
	s.mu.Unlock()

	s.emitChange()

	if err := s.mutator.RemoveCaptain(ctx, s.jamID, entryID, captain); err != nil {
		s.revert("withdraw sign-up", prev, err, nil)
		return err
	}
	return nil
}

// silentSelfVote confirms the initial vote behind an add. A failure
// here reverts the marker and count quietly: the add itself succeeded,
// so there is nothing actionable to toast.
func (s *Session) silentSelfVote(entryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), silentVoteTimeout)
	defer cancel()

	if err := s.mutator.Vote(ctx, s.jamID, entryID, +1, true); err != nil {
		s.log.WithError(err).Warn("silent self-vote failed", "entryId", entryID)

		s.mu.Lock()
		if !s.mounted {
			s.mu.Unlock()
			return
		}
		delete(s.voted, entryID)
		if idx := s.jam.FindEntry(entryID); idx >= 0 && s.jam.Songs[idx].Votes > 0 {
			next := s.jam.Clone()
			next.Songs[idx].Votes--
			s.jam = next
		}
		s.mu.Unlock()

		s.emitChange()
	}
}

// revert restores the pre-mutation snapshot after a failed request and
// surfaces the failure. A session closed in the meantime swallows the
// late response entirely.
func (s *Session) revert(action string, prev *domain.JamSession, cause error, undo func()) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.jam = prev
	if undo != nil {
		undo()
	}
	s.mu.Unlock()

	s.log.WithError(cause).Warn("mutation failed, reverted", "action", action)
	s.emitChange()
	if s.notifier != nil {
		s.notifier.MutationFailed(action, cause)
	}
}

func (s *Session) mountedLocked() error {
	if !s.mounted || s.jam == nil {
		return errors.Conflict("session not mounted")
	}
	return nil
}

// applyCatalogFields copies the editable catalog fields, leaving the
// play history intact.
func applyCatalogFields(dst *domain.Song, src domain.Song) {
	dst.Title = src.Title
	dst.Artist = src.Artist
	dst.Type = src.Type
	dst.ChordChart = src.ChordChart
}

func removeCaptain(captains []domain.Captain, name string, kind domain.CaptainType) []domain.Captain {
	out := captains[:0]
	for _, c := range captains {
		if c.Name == name && c.Type == kind {
			continue
		}
		out = append(out, c)
	}
	return out
}
