package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/errors"
	"github.com/jamqueueapp/jamqueue-client/internal/event"
	"github.com/jamqueueapp/jamqueue-client/internal/id"
	"github.com/jamqueueapp/jamqueue-client/internal/response"
	"github.com/jamqueueapp/jamqueue-client/internal/transport"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// --- request DTOs ---

type createJamRequest struct {
	Name string    `json:"name" validate:"required"`
	Date time.Time `json:"date"`
}

type createSongRequest struct {
	Title      string          `json:"title" validate:"required"`
	Artist     string          `json:"artist" validate:"required"`
	Type       domain.SongType `json:"type" validate:"required,oneof=banger ballad"`
	ChordChart string          `json:"chordChart"`
}

type addSongRequest struct {
	SongID string `json:"songId" validate:"required"`
}

type voteRequest struct {
	Delta  int  `json:"delta" validate:"required,oneof=-1 1"`
	Silent bool `json:"silent"`
}

type playedRequest struct {
	Played bool `json:"played"`
}

type editSongRequest struct {
	Title      string          `json:"title" validate:"required"`
	Artist     string          `json:"artist" validate:"required"`
	Type       domain.SongType `json:"type" validate:"required,oneof=banger ballad"`
	ChordChart string          `json:"chordChart"`
}

type captainRequest struct {
	Name string             `json:"name" validate:"required"`
	Type domain.CaptainType `json:"type" validate:"required,oneof=regular piano"`
}

// decodeValid decodes the body into dst and validates it.
func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeValidation, "malformed request body")
	}
	if err := validate.Struct(dst); err != nil {
		return errors.Wrap(err, errors.CodeValidation, "invalid request")
	}
	return nil
}

// --- jam handlers ---

func (s *Server) handleCreateJam(w http.ResponseWriter, r *http.Request) {
	var req createJamRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	jam := &domain.JamSession{
		ID:   id.MustGenerate("jam"),
		Name: req.Name,
		Date: req.Date,
	}
	if err := s.store.SaveJam(jam); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	response.Created(w, jam, s.log.Logger)
}

func (s *Server) handleGetJam(w http.ResponseWriter, r *http.Request) {
	jam, err := s.store.GetJam(chi.URLParam(r, "jamID"))
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	response.Success(w, jam, s.log.Logger)
}

// --- catalog handlers ---

func (s *Server) handleCreateSong(w http.ResponseWriter, r *http.Request) {
	var req createSongRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	song := &domain.Song{
		ID:         id.MustGenerate("song"),
		Title:      req.Title,
		Artist:     req.Artist,
		Type:       req.Type,
		ChordChart: req.ChordChart,
	}
	if err := s.store.SaveSong(song); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	response.Created(w, song, s.log.Logger)
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.store.ListSongs()
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	response.Success(w, songs, s.log.Logger)
}

// handleEditSong rewrites the catalog fields and propagates the change
// to every jam entry referencing the song, broadcasting per jam.
func (s *Server) handleEditSong(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "songID")

	var req editSongRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	song, err := s.store.GetSong(songID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	song.Title = req.Title
	song.Artist = req.Artist
	song.Type = req.Type
	song.ChordChart = req.ChordChart
	if err := s.store.SaveSong(song); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	jams, err := s.store.ListJams()
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	for _, jam := range jams {
		touched := false
		for i := range jam.Songs {
			if jam.Songs[i].Song.ID == songID {
				history := jam.Songs[i].Song.PlayHistory
				jam.Songs[i].Song = *song
				jam.Songs[i].Song.PlayHistory = history
				touched = true
			}
		}
		if !touched {
			continue
		}
		if err := s.store.SaveJam(jam); err != nil {
			response.HandleError(w, err, s.log.Logger)
			return
		}
		s.hub.Broadcast(transport.ChannelFor(jam.ID), event.TypeSongEdited, event.SongEdited{
			SongID:      songID,
			UpdatedSong: *song,
		})
	}

	response.Success(w, song, s.log.Logger)
}

// --- queue handlers ---

func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	jamID := chi.URLParam(r, "jamID")

	var req addSongRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	jam, err := s.store.GetJam(jamID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	song, err := s.store.GetSong(req.SongID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	for _, e := range jam.Songs {
		if e.Song.ID == req.SongID && !e.Played {
			response.Conflict(w, "song is already queued", s.log.Logger)
			return
		}
	}

	entry := domain.QueueEntry{
		ID:    id.MustGenerate("entry"),
		Song:  *song,
		Order: len(jam.Songs),
	}
	jam.Songs = append(jam.Songs, entry)
	if err := s.store.SaveJam(jam); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	s.hub.Broadcast(transport.ChannelFor(jamID), event.TypeSongAdded, event.SongAdded{Song: entry})
	response.Created(w, entry, s.log.Logger)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	jamID := chi.URLParam(r, "jamID")
	entryID := chi.URLParam(r, "entryID")

	var req voteRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	jam, err := s.store.GetJam(jamID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	idx := jam.FindEntry(entryID)
	if idx < 0 {
		response.NotFound(w, "entry not in jam", s.log.Logger)
		return
	}

	votes := jam.Songs[idx].Votes + req.Delta
	if votes < 0 {
		votes = 0
	}
	jam.Songs[idx].Votes = votes
	if err := s.store.SaveJam(jam); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	s.hub.Broadcast(transport.ChannelFor(jamID), event.TypeVote, event.Vote{
		SongID: entryID,
		Votes:  votes,
		Silent: req.Silent,
	})
	response.Success(w, jam.Songs[idx], s.log.Logger)
}

func (s *Server) handleSetPlayed(w http.ResponseWriter, r *http.Request) {
	jamID := chi.URLParam(r, "jamID")
	entryID := chi.URLParam(r, "entryID")

	var req playedRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	jam, err := s.store.GetJam(jamID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	idx := jam.FindEntry(entryID)
	if idx < 0 {
		response.NotFound(w, "entry not in jam", s.log.Logger)
		return
	}

	entry := &jam.Songs[idx]
	if req.Played {
		now := time.Now()
		entry.MarkPlayed(now)
		// The catalog remembers the night, once per jam.
		if entry.Song.RecordPlay(now, jam.Name) {
			if song, err := s.store.GetSong(entry.Song.ID); err == nil {
				song.RecordPlay(now, jam.Name)
				if err := s.store.SaveSong(song); err != nil {
					s.log.WithError(err).Warn("play history not persisted", "songId", song.ID)
				}
			}
		}
	} else {
		entry.MarkUnplayed()
	}
	if err := s.store.SaveJam(jam); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	s.hub.Broadcast(transport.ChannelFor(jamID), event.TypeSongPlayed, event.SongPlayed{
		SongID:   entryID,
		Played:   entry.Played,
		PlayedAt: entry.PlayedAt,
	})
	response.Success(w, entry, s.log.Logger)
}

func (s *Server) handleRemoveSong(w http.ResponseWriter, r *http.Request) {
	jamID := chi.URLParam(r, "jamID")
	entryID := chi.URLParam(r, "entryID")

	jam, err := s.store.GetJam(jamID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	idx := jam.FindEntry(entryID)
	if idx < 0 {
		response.NotFound(w, "entry not in jam", s.log.Logger)
		return
	}

	removed := jam.Songs[idx]
	jam.Songs = append(jam.Songs[:idx], jam.Songs[idx+1:]...)
	if err := s.store.SaveJam(jam); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	s.hub.Broadcast(transport.ChannelFor(jamID), event.TypeSongRemoved, event.SongRemoved{
		SongID:     entryID,
		SongTitle:  removed.Song.Title,
		SongArtist: removed.Song.Artist,
	})
	response.NoContent(w)
}

func (s *Server) handleAddCaptain(w http.ResponseWriter, r *http.Request) {
	jamID := chi.URLParam(r, "jamID")
	entryID := chi.URLParam(r, "entryID")

	var req captainRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	jam, err := s.store.GetJam(jamID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	idx := jam.FindEntry(entryID)
	if idx < 0 {
		response.NotFound(w, "entry not in jam", s.log.Logger)
		return
	}
	if jam.Songs[idx].HasCaptain(req.Name, req.Type) {
		response.Conflict(w, "captain already signed up", s.log.Logger)
		return
	}

	captain := domain.Captain{Name: req.Name, Type: req.Type, CreatedAt: time.Now()}
	jam.Songs[idx].Captains = append(jam.Songs[idx].Captains, captain)
	if err := s.store.SaveJam(jam); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	s.hub.Broadcast(transport.ChannelFor(jamID), event.TypeCaptainAdded, event.CaptainAdded{
		SongID:  entryID,
		Captain: captain,
	})
	response.Success(w, jam.Songs[idx], s.log.Logger)
}

func (s *Server) handleRemoveCaptain(w http.ResponseWriter, r *http.Request) {
	jamID := chi.URLParam(r, "jamID")
	entryID := chi.URLParam(r, "entryID")

	var req captainRequest
	if err := decodeValid(r, &req); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	jam, err := s.store.GetJam(jamID)
	if err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}
	idx := jam.FindEntry(entryID)
	if idx < 0 {
		response.NotFound(w, "entry not in jam", s.log.Logger)
		return
	}
	if !jam.Songs[idx].HasCaptain(req.Name, req.Type) {
		response.NotFound(w, "captain not signed up", s.log.Logger)
		return
	}

	var removed domain.Captain
	kept := jam.Songs[idx].Captains[:0]
	for _, c := range jam.Songs[idx].Captains {
		if c.Name == req.Name && c.Type == req.Type {
			removed = c
			continue
		}
		kept = append(kept, c)
	}
	jam.Songs[idx].Captains = kept
	if err := s.store.SaveJam(jam); err != nil {
		response.HandleError(w, err, s.log.Logger)
		return
	}

	s.hub.Broadcast(transport.ChannelFor(jamID), event.TypeCaptainRemoved, event.CaptainRemoved{
		SongID:  entryID,
		Captain: removed,
	})
	response.Success(w, jam.Songs[idx], s.log.Logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.log.Logger)
}
