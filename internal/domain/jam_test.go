package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkPlayed_MarkUnplayed(t *testing.T) {
	entry := &QueueEntry{ID: "entry-1"}

	at := time.Date(2025, 3, 1, 21, 30, 0, 0, time.UTC)
	entry.MarkPlayed(at)
	require.True(t, entry.Played)
	require.NotNil(t, entry.PlayedAt)
	assert.Equal(t, at, *entry.PlayedAt)

	// Unplayed clears both fields so the invariant holds.
	entry.MarkUnplayed()
	assert.False(t, entry.Played)
	assert.Nil(t, entry.PlayedAt)
}

func TestHasCaptain_MatchesNameAndType(t *testing.T) {
	entry := &QueueEntry{
		Captains: []Captain{
			{Name: "Dana", Type: CaptainRegular},
		},
	}

	assert.True(t, entry.HasCaptain("Dana", CaptainRegular))
	assert.False(t, entry.HasCaptain("Dana", CaptainPiano))
	assert.False(t, entry.HasCaptain("Sam", CaptainRegular))
}

func TestFindEntry(t *testing.T) {
	jam := &JamSession{
		Songs: []QueueEntry{
			{ID: "entry-1"},
			{ID: "entry-2"},
		},
	}

	assert.Equal(t, 1, jam.FindEntry("entry-2"))
	assert.Equal(t, -1, jam.FindEntry("entry-404"))
}

func TestJamClone_DeepAndDistinct(t *testing.T) {
	at := time.Now()
	jam := &JamSession{
		ID:   "jam-1",
		Name: "Friday Jam",
		Songs: []QueueEntry{
			{
				ID:       "entry-1",
				Song:     Song{ID: "song-1", Title: "Valerie"},
				Votes:    3,
				PlayedAt: &at,
				Captains: []Captain{{Name: "Dana", Type: CaptainRegular}},
			},
		},
	}

	clone := jam.Clone()
	require.NotSame(t, jam, clone, "clone must be a new structure")

	clone.Songs[0].Votes = 99
	clone.Songs[0].Captains[0].Name = "Sam"
	*clone.Songs[0].PlayedAt = at.Add(time.Hour)
	clone.Songs[0].Song.Title = "Changed"

	assert.Equal(t, 3, jam.Songs[0].Votes)
	assert.Equal(t, "Dana", jam.Songs[0].Captains[0].Name)
	assert.Equal(t, at, *jam.Songs[0].PlayedAt)
	assert.Equal(t, "Valerie", jam.Songs[0].Song.Title)
}
