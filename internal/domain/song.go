package domain

import "time"

// SongType classifies a catalog song for queue grouping.
type SongType string

const (
	// SongTypeBanger is an up-tempo crowd song.
	SongTypeBanger SongType = "banger"
	// SongTypeBallad is a slow song.
	SongTypeBallad SongType = "ballad"
)

// PlayRecord is one jam in which a song was marked played.
// Records are deduplicated by event name: marking a song played twice
// in the same jam produces a single record.
type PlayRecord struct {
	Date      time.Time `json:"date"`
	EventName string    `json:"eventName"`
}

// Song is a catalog entity shared across jams. A QueueEntry references
// a Song by id but does not own it.
type Song struct {
	ID          string       `json:"id" validate:"required"`
	Title       string       `json:"title"`
	Artist      string       `json:"artist"`
	Type        SongType     `json:"type"`
	ChordChart  string       `json:"chordChart,omitempty"`
	PlayHistory []PlayRecord `json:"playHistory,omitempty"`
}

// RecordPlay appends a play record, deduplicated by event name.
// Returns true if a new record was added.
func (s *Song) RecordPlay(date time.Time, eventName string) bool {
	for _, r := range s.PlayHistory {
		if r.EventName == eventName {
			return false
		}
	}
	s.PlayHistory = append(s.PlayHistory, PlayRecord{Date: date, EventName: eventName})
	return true
}

// TimesPlayed returns the number of distinct jams this song was played at.
func (s *Song) TimesPlayed() int {
	return len(s.PlayHistory)
}

// LastPlayed returns the most recent play date, or false if never played.
func (s *Song) LastPlayed() (time.Time, bool) {
	var last time.Time
	found := false
	for _, r := range s.PlayHistory {
		if !found || r.Date.After(last) {
			last = r.Date
			found = true
		}
	}
	return last, found
}

// Clone returns a deep copy of the song.
func (s *Song) Clone() Song {
	out := *s
	if s.PlayHistory != nil {
		out.PlayHistory = make([]PlayRecord, len(s.PlayHistory))
		copy(out.PlayHistory, s.PlayHistory)
	}
	return out
}
