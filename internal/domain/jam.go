package domain

import "time"

// CaptainType distinguishes regular captains from piano captains.
type CaptainType string

const (
	// CaptainRegular sings the song.
	CaptainRegular CaptainType = "regular"
	// CaptainPiano plays it.
	CaptainPiano CaptainType = "piano"
)

// Captain is a sign-up on a queue entry.
type Captain struct {
	Name      string      `json:"name" validate:"required"`
	Type      CaptainType `json:"type"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Highlight is a transient visual marker on a queue entry. It is never
// persisted or sent over the wire.
type Highlight string

const (
	// HighlightNone is the resting state.
	HighlightNone Highlight = "none"
	// HighlightSuccess marks a recent noteworthy change (rank change, fresh add).
	HighlightSuccess Highlight = "success"
)

// QueueEntry is one song's participation in one jam: its votes, played
// state and captains. Distinct from the catalog Song it references.
//
// Invariant: Played=false implies PlayedAt=nil. Use MarkPlayed and
// MarkUnplayed rather than setting the fields directly.
type QueueEntry struct {
	ID        string     `json:"id" validate:"required"`
	Song      Song       `json:"song"`
	Votes     int        `json:"votes"`
	Played    bool       `json:"played"`
	PlayedAt  *time.Time `json:"playedAt,omitempty"`
	Order     int        `json:"order"`
	Captains  []Captain  `json:"captains,omitempty"`
	Highlight Highlight  `json:"-"`
}

// MarkPlayed sets the played state and stamps PlayedAt.
func (e *QueueEntry) MarkPlayed(at time.Time) {
	e.Played = true
	e.PlayedAt = &at
}

// MarkUnplayed clears the played state and PlayedAt together.
func (e *QueueEntry) MarkUnplayed() {
	e.Played = false
	e.PlayedAt = nil
}

// HasCaptain reports whether a captain with the same name and type is
// already signed up.
func (e *QueueEntry) HasCaptain(name string, kind CaptainType) bool {
	for _, c := range e.Captains {
		if c.Name == name && c.Type == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the entry.
func (e *QueueEntry) Clone() QueueEntry {
	out := *e
	out.Song = e.Song.Clone()
	if e.PlayedAt != nil {
		at := *e.PlayedAt
		out.PlayedAt = &at
	}
	if e.Captains != nil {
		out.Captains = make([]Captain, len(e.Captains))
		copy(out.Captains, e.Captains)
	}
	return out
}

// JamSession is an ordered collection of queue entries being voted on
// for a live event. The session is the sole owner of its entries.
type JamSession struct {
	ID    string       `json:"id" validate:"required"`
	Name  string       `json:"name"`
	Date  time.Time    `json:"date"`
	Songs []QueueEntry `json:"songs"`
}

// FindEntry returns the index of the entry with the given id, or -1.
func (j *JamSession) FindEntry(entryID string) int {
	for i := range j.Songs {
		if j.Songs[i].ID == entryID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the session. Consumers rely on reference
// equality to detect changes, so every mutation replaces the whole
// structure rather than editing in place.
func (j *JamSession) Clone() *JamSession {
	out := &JamSession{
		ID:   j.ID,
		Name: j.Name,
		Date: j.Date,
	}
	if j.Songs != nil {
		out.Songs = make([]QueueEntry, len(j.Songs))
		for i := range j.Songs {
			out.Songs[i] = j.Songs[i].Clone()
		}
	}
	return out
}
