package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamqueueapp/jamqueue-client/internal/config"
	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/response"
)

func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	store, err := OpenStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.Dev.Port = "0"
	cfg.Dev.ReadTimeout = 15 * time.Second
	cfg.Dev.WriteTimeout = 15 * time.Second
	cfg.Dev.IdleTimeout = 60 * time.Second

	srv := New(cfg, store, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, response.Envelope) {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env response.Envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func createJam(t *testing.T, baseURL, name string) domain.JamSession {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, baseURL+"/api/jams", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var jam domain.JamSession
	require.NoError(t, json.Unmarshal(env.Data, &jam))
	return jam
}

func createSong(t *testing.T, baseURL, title string, kind domain.SongType) domain.Song {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, baseURL+"/api/songs", map[string]string{
		"title":  title,
		"artist": "Test Artist",
		"type":   string(kind),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var song domain.Song
	require.NoError(t, json.Unmarshal(env.Data, &song))
	return song
}

func queueSong(t *testing.T, baseURL, jamID, songID string) domain.QueueEntry {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, baseURL+"/api/jams/"+jamID+"/songs", map[string]string{"songId": songID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var entry domain.QueueEntry
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	return entry
}

func fetchJam(t *testing.T, baseURL, jamID string) domain.JamSession {
	t.Helper()
	resp, env := doJSON(t, http.MethodGet, baseURL+"/api/jams/"+jamID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jam domain.JamSession
	require.NoError(t, json.Unmarshal(env.Data, &jam))
	return jam
}

func TestCreateAndFetchJam(t *testing.T) {
	_, ts := setupTestServer(t)

	jam := createJam(t, ts.URL, "Friday Jam")
	assert.NotEmpty(t, jam.ID)

	got := fetchJam(t, ts.URL, jam.ID)
	assert.Equal(t, "Friday Jam", got.Name)
	assert.Empty(t, got.Songs)
}

func TestGetJam_NotFound(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, env := doJSON(t, http.MethodGet, ts.URL+"/api/jams/jam-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestAddSong_AssignsEntryIDAndOrder(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)

	entry := queueSong(t, ts.URL, jam.ID, song.ID)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 0, entry.Order)
	assert.Equal(t, "Valerie", entry.Song.Title)
	assert.Zero(t, entry.Votes)
}

func TestAddSong_RejectsDuplicateUnplayed(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)
	queueSong(t, ts.URL, jam.ID, song.ID)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/jams/"+jam.ID+"/songs", map[string]string{"songId": song.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestVote_AdjustsCountWithFloor(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)
	entry := queueSong(t, ts.URL, jam.ID, song.ID)

	voteURL := ts.URL + "/api/jams/" + jam.ID + "/songs/" + entry.ID + "/vote"

	resp, _ := doJSON(t, http.MethodPost, voteURL, map[string]any{"delta": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Downvoting past zero clamps.
	doJSON(t, http.MethodPost, voteURL, map[string]any{"delta": -1})
	resp, _ = doJSON(t, http.MethodPost, voteURL, map[string]any{"delta": -1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := fetchJam(t, ts.URL, jam.ID)
	assert.Zero(t, got.Songs[0].Votes)
}

func TestVote_RejectsBadDelta(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)
	entry := queueSong(t, ts.URL, jam.ID, song.ID)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/jams/"+jam.ID+"/songs/"+entry.ID+"/vote", map[string]any{"delta": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetPlayed_StampsHistoryOncePerJam(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)
	entry := queueSong(t, ts.URL, jam.ID, song.ID)

	playedURL := ts.URL + "/api/jams/" + jam.ID + "/songs/" + entry.ID + "/played"

	resp, _ := doJSON(t, http.MethodPost, playedURL, map[string]any{"played": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := fetchJam(t, ts.URL, jam.ID)
	require.True(t, got.Songs[0].Played)
	require.NotNil(t, got.Songs[0].PlayedAt)
	assert.Equal(t, 1, got.Songs[0].Song.TimesPlayed())

	// Toggle off and on again: same jam, still one history record.
	doJSON(t, http.MethodPost, playedURL, map[string]any{"played": false})
	doJSON(t, http.MethodPost, playedURL, map[string]any{"played": true})

	got = fetchJam(t, ts.URL, jam.ID)
	assert.Equal(t, 1, got.Songs[0].Song.TimesPlayed())
}

func TestRemoveSong(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)
	entry := queueSong(t, ts.URL, jam.ID, song.ID)

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/jams/"+jam.ID+"/songs/"+entry.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got := fetchJam(t, ts.URL, jam.ID)
	assert.Empty(t, got.Songs)
}

func TestCaptains_AddRejectsDuplicate(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)
	entry := queueSong(t, ts.URL, jam.ID, song.ID)

	captainsURL := ts.URL + "/api/jams/" + jam.ID + "/songs/" + entry.ID + "/captains"
	body := map[string]string{"name": "Dana", "type": "regular"}

	resp, _ := doJSON(t, http.MethodPost, captainsURL, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, captainsURL, body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, captainsURL+"/remove", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := fetchJam(t, ts.URL, jam.ID)
	assert.Empty(t, got.Songs[0].Captains)
}

func TestEditSong_PropagatesToQueues(t *testing.T) {
	_, ts := setupTestServer(t)
	jam := createJam(t, ts.URL, "Friday Jam")
	song := createSong(t, ts.URL, "Valerie", domain.SongTypeBanger)
	queueSong(t, ts.URL, jam.ID, song.ID)

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/songs/"+song.ID, map[string]string{
		"title":  "Valerie (Live)",
		"artist": "Amy Winehouse",
		"type":   "ballad",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := fetchJam(t, ts.URL, jam.ID)
	assert.Equal(t, "Valerie (Live)", got.Songs[0].Song.Title)
	assert.Equal(t, domain.SongTypeBallad, got.Songs[0].Song.Type)
}
