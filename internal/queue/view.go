// Package queue derives the rendered view of a jam's song queue: display
// groups, sort order, and the "next song" pointer. Everything here is a
// pure function of its input; it runs on every render.
package queue

import (
	"sort"

	"github.com/jamqueueapp/jamqueue-client/internal/domain"
)

// SortMode selects how unplayed entries are ordered.
type SortMode string

const (
	// SortVotes orders unplayed entries by votes, most first.
	SortVotes SortMode = "votes"
	// SortLeastPlayed orders unplayed entries by how rarely the catalog
	// song has been played, least first, with votes breaking ties.
	SortLeastPlayed SortMode = "least-played"
)

// View is the derived display state of a queue.
//
// With grouping enabled, Bangers and Ballads each hold played entries
// (oldest played first) followed by unplayed entries in sort order.
// Without grouping, Ungrouped holds the same played-then-unplayed
// sequence for the whole queue. NextID points at the entry that should
// be played next, or is empty when nothing is left.
type View struct {
	Bangers   []domain.QueueEntry
	Ballads   []domain.QueueEntry
	Ungrouped []domain.QueueEntry
	NextID    string
}

// DeriveView computes the display view for the given entries.
// The input slice is never mutated; ties keep their input order.
func DeriveView(songs []domain.QueueEntry, grouping bool, mode SortMode) View {
	played := make([]domain.QueueEntry, 0, len(songs))
	unplayed := make([]domain.QueueEntry, 0, len(songs))
	for _, e := range songs {
		if e.Played {
			played = append(played, e)
		} else {
			unplayed = append(unplayed, e)
		}
	}

	sortPlayed(played)
	sortUnplayed(unplayed, mode)

	if !grouping {
		v := View{Ungrouped: append(played, unplayed...)}
		if len(unplayed) > 0 {
			v.NextID = unplayed[0].ID
		}
		return v
	}

	playedBangers, playedBallads := splitByType(played)
	unplayedBangers, unplayedBallads := splitByType(unplayed)

	v := View{
		Bangers: append(playedBangers, unplayedBangers...),
		Ballads: append(playedBallads, unplayedBallads...),
	}

	// Bangers lead the night; fall back to ballads when none are left.
	switch {
	case len(unplayedBangers) > 0:
		v.NextID = unplayedBangers[0].ID
	case len(unplayedBallads) > 0:
		v.NextID = unplayedBallads[0].ID
	}
	return v
}

// Position returns the entry's index in the rendered order, or -1.
// With grouping enabled the order is bangers first, then ballads.
func (v View) Position(entryID string) int {
	rendered := v.Ungrouped
	if rendered == nil {
		rendered = append(append([]domain.QueueEntry{}, v.Bangers...), v.Ballads...)
	}
	for i := range rendered {
		if rendered[i].ID == entryID {
			return i
		}
	}
	return -1
}

// sortUnplayed orders unplayed entries in place. Stable, so equal keys
// keep their input order.
func sortUnplayed(entries []domain.QueueEntry, mode SortMode) {
	if mode == SortLeastPlayed {
		sort.SliceStable(entries, func(i, j int) bool {
			ti, tj := entries[i].Song.TimesPlayed(), entries[j].Song.TimesPlayed()
			if ti != tj {
				return ti < tj
			}
			return entries[i].Votes > entries[j].Votes
		})
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Votes > entries[j].Votes
	})
}

// sortPlayed orders played entries oldest first. A missing PlayedAt
// sorts as time zero, i.e. before everything.
func sortPlayed(entries []domain.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		var ti, tj int64
		if entries[i].PlayedAt != nil {
			ti = entries[i].PlayedAt.UnixMilli()
		}
		if entries[j].PlayedAt != nil {
			tj = entries[j].PlayedAt.UnixMilli()
		}
		return ti < tj
	})
}

// splitByType partitions entries into bangers and everything else.
// Songs without a type render with the ballads.
func splitByType(entries []domain.QueueEntry) (bangers, ballads []domain.QueueEntry) {
	bangers = make([]domain.QueueEntry, 0, len(entries))
	ballads = make([]domain.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if e.Song.Type == domain.SongTypeBanger {
			bangers = append(bangers, e)
		} else {
			ballads = append(ballads, e)
		}
	}
	return bangers, ballads
}
