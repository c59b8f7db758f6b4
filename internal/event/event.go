// Package event defines the broadcast events a jam channel carries and
// decodes their wire payloads. Events are best-effort notifications
// layered over REST mutations: each one carries enough state to be
// applied idempotently on its own.
package event

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/errors"
)

// Type names a broadcast event on a jam channel.
type Type string

const (
	TypeSongAdded      Type = "song-added"
	TypeVote           Type = "vote"
	TypeCaptainAdded   Type = "captain-added"
	TypeCaptainRemoved Type = "captain-removed"
	TypeSongPlayed     Type = "song-played"
	TypeSongRemoved    Type = "song-removed"
	TypeSongEdited     Type = "song-edited"
)

// Types lists every event kind a jam channel carries, in a stable
// order. Channel controllers bind one handler per kind.
func Types() []Type {
	return []Type{
		TypeSongAdded,
		TypeVote,
		TypeCaptainAdded,
		TypeCaptainRemoved,
		TypeSongPlayed,
		TypeSongRemoved,
		TypeSongEdited,
	}
}

// Event is a decoded broadcast payload. The concrete type matches the
// event's kind.
type Event interface {
	Kind() Type
}

// SongAdded announces a new queue entry, carried in full so receivers
// can insert it without a follow-up fetch.
type SongAdded struct {
	Song domain.QueueEntry `json:"song" validate:"required"`
}

func (SongAdded) Kind() Type { return TypeSongAdded }

// Vote announces an entry's new absolute vote count. Silent votes are
// bookkeeping (the auto-vote behind an add) and must not produce
// notifications.
type Vote struct {
	SongID string `json:"songId" validate:"required"`
	Votes  int    `json:"votes"`
	Silent bool   `json:"silent,omitempty"`
}

func (Vote) Kind() Type { return TypeVote }

// CaptainAdded announces a captain signing up on an entry.
type CaptainAdded struct {
	SongID  string         `json:"songId" validate:"required"`
	Captain domain.Captain `json:"captain"`
}

func (CaptainAdded) Kind() Type { return TypeCaptainAdded }

// CaptainRemoved announces a captain withdrawing from an entry.
type CaptainRemoved struct {
	SongID  string         `json:"songId" validate:"required"`
	Captain domain.Captain `json:"captain"`
}

func (CaptainRemoved) Kind() Type { return TypeCaptainRemoved }

// SongPlayed announces an entry's played state, in either direction.
// PlayedAt is nil when the entry was toggled back to unplayed.
type SongPlayed struct {
	SongID   string     `json:"songId" validate:"required"`
	Played   bool       `json:"played"`
	PlayedAt *time.Time `json:"playedAt,omitempty"`
}

func (SongPlayed) Kind() Type { return TypeSongPlayed }

// SongRemoved announces an entry leaving the queue. Title and artist
// ride along so receivers can toast about an entry they no longer hold.
type SongRemoved struct {
	SongID     string `json:"songId" validate:"required"`
	SongTitle  string `json:"songTitle"`
	SongArtist string `json:"songArtist"`
}

func (SongRemoved) Kind() Type { return TypeSongRemoved }

// SongEdited announces new catalog details for an entry's song.
type SongEdited struct {
	SongID      string      `json:"songId" validate:"required"`
	UpdatedSong domain.Song `json:"updatedSong"`
}

func (SongEdited) Kind() Type { return TypeSongEdited }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses a raw payload for the given kind into its typed event.
// Unknown kinds and payloads missing required fields are validation
// errors; callers drop those without applying anything.
func Decode(kind Type, data []byte) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch kind {
	case TypeSongAdded:
		ev, err = decodeInto[SongAdded](data)
	case TypeVote:
		ev, err = decodeInto[Vote](data)
	case TypeCaptainAdded:
		ev, err = decodeInto[CaptainAdded](data)
	case TypeCaptainRemoved:
		ev, err = decodeInto[CaptainRemoved](data)
	case TypeSongPlayed:
		ev, err = decodeInto[SongPlayed](data)
	case TypeSongRemoved:
		ev, err = decodeInto[SongRemoved](data)
	case TypeSongEdited:
		ev, err = decodeInto[SongEdited](data)
	default:
		return nil, errors.Validationf("unknown event kind: %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeInto[T Event](data []byte) (Event, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "malformed event payload")
	}
	if err := validate.Struct(payload); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "invalid event payload")
	}
	return payload, nil
}
