package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordPlay_DeduplicatesByEventName(t *testing.T) {
	song := &Song{ID: "song-1", Title: "Valerie"}

	first := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.True(t, song.RecordPlay(first, "March Jam"))

	// Same event again, later in the evening: no new record.
	assert.False(t, song.RecordPlay(first.Add(2*time.Hour), "March Jam"))
	assert.Equal(t, 1, song.TimesPlayed())

	// A different event adds a record.
	assert.True(t, song.RecordPlay(first.AddDate(0, 1, 0), "April Jam"))
	assert.Equal(t, 2, song.TimesPlayed())
}

func TestLastPlayed(t *testing.T) {
	song := &Song{ID: "song-1"}

	_, ok := song.LastPlayed()
	assert.False(t, ok, "unplayed song has no last played date")

	older := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	song.RecordPlay(newer, "Spring Jam")
	song.RecordPlay(older, "Winter Jam")

	last, ok := song.LastPlayed()
	assert.True(t, ok)
	assert.Equal(t, newer, last, "last played is the max date, not insertion order")
}

func TestSongClone_Independent(t *testing.T) {
	song := &Song{ID: "song-1", Title: "Valerie"}
	song.RecordPlay(time.Now(), "March Jam")

	clone := song.Clone()
	clone.PlayHistory[0].EventName = "Changed"

	assert.Equal(t, "March Jam", song.PlayHistory[0].EventName)
}
