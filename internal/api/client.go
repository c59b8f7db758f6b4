// Package api is the REST side of the sync engine: one HTTP request
// per mutation, single attempt, no retries. The broadcast channel is
// the eventual source of truth; this client only needs to know whether
// a mutation was accepted.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jamqueueapp/jamqueue-client/internal/domain"
	"github.com/jamqueueapp/jamqueue-client/internal/errors"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
	"github.com/jamqueueapp/jamqueue-client/internal/response"
)

const defaultTimeout = 15 * time.Second

// Client talks to the jam server's REST API. It implements the
// session's Loader and Mutator contracts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a client for the given server base URL, e.g.
// "http://localhost:8484".
func NewClient(baseURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.Named("api"),
	}
}

// FetchJam loads the full jam snapshot.
func (c *Client) FetchJam(ctx context.Context, jamID string) (*domain.JamSession, error) {
	var jam domain.JamSession
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jams/%s", jamID), nil, &jam); err != nil {
		return nil, err
	}
	return &jam, nil
}

type addSongRequest struct {
	SongID string `json:"songId"`
}

// AddSong queues a catalog song and returns the server-assigned entry.
func (c *Client) AddSong(ctx context.Context, jamID, songID string) (domain.QueueEntry, error) {
	var entry domain.QueueEntry
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jams/%s/songs", jamID), addSongRequest{SongID: songID}, &entry)
	return entry, err
}

type voteRequest struct {
	Delta  int  `json:"delta"`
	Silent bool `json:"silent,omitempty"`
}

// Vote applies a vote delta to an entry.
func (c *Client) Vote(ctx context.Context, jamID, entryID string, delta int, silent bool) error {
	path := fmt.Sprintf("/api/jams/%s/songs/%s/vote", jamID, entryID)
	return c.do(ctx, http.MethodPost, path, voteRequest{Delta: delta, Silent: silent}, nil)
}

type playedRequest struct {
	Played bool `json:"played"`
}

// SetPlayed sets an entry's played state.
func (c *Client) SetPlayed(ctx context.Context, jamID, entryID string, played bool) error {
	path := fmt.Sprintf("/api/jams/%s/songs/%s/played", jamID, entryID)
	return c.do(ctx, http.MethodPost, path, playedRequest{Played: played}, nil)
}

// RemoveSong deletes an entry from the queue.
func (c *Client) RemoveSong(ctx context.Context, jamID, entryID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/jams/%s/songs/%s", jamID, entryID), nil, nil)
}

// EditSong updates the catalog fields of a song; the server propagates
// the change to every queue referencing it.
func (c *Client) EditSong(ctx context.Context, _ string, songID string, updated domain.Song) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/songs/%s", songID), updated, nil)
}

// AddCaptain signs a captain up on an entry.
func (c *Client) AddCaptain(ctx context.Context, jamID, entryID string, captain domain.Captain) error {
	path := fmt.Sprintf("/api/jams/%s/songs/%s/captains", jamID, entryID)
	return c.do(ctx, http.MethodPost, path, captain, nil)
}

// RemoveCaptain withdraws a captain from an entry.
func (c *Client) RemoveCaptain(ctx context.Context, jamID, entryID string, captain domain.Captain) error {
	path := fmt.Sprintf("/api/jams/%s/songs/%s/captains/remove", jamID, entryID)
	return c.do(ctx, http.MethodPost, path, captain, nil)
}

// do performs one request and decodes the envelope. Non-2xx statuses
// map to domain errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "encode request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.CodeTransport, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env response.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return errors.FromHTTPStatus(resp.StatusCode, "")
		}
		return errors.Wrap(err, errors.CodeTransport, "decode response")
	}

	if resp.StatusCode >= 400 || !env.Success {
		return errors.FromHTTPStatus(resp.StatusCode, env.Error)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, errors.CodeTransport, "decode payload")
		}
	}
	return nil
}
