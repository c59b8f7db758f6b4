package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	mu    sync.Mutex
	conns []*websocket.Conn
}

// setupTestServer runs a websocket endpoint that records connections
// and lets tests push frames or kill sockets.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	upgrader := websocket.Upgrader{}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.mu.Unlock()
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) connCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.conns)
}

func (ts *testServer) send(t *testing.T, msg wireMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	ts.mu.Lock()
	conn := ts.conns[len(ts.conns)-1]
	ts.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func (ts *testServer) dropLatest() {
	ts.mu.Lock()
	conn := ts.conns[len(ts.conns)-1]
	ts.mu.Unlock()
	conn.Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "jam-abc123", ChannelFor("abc123"))
}

func TestSubscribe_DeliversEvents(t *testing.T) {
	ts := setupTestServer(t)
	sub := Subscribe(ts.wsURL(), "jam-1", nil)
	defer sub.Unsubscribe()

	var mu sync.Mutex
	var got []string
	sub.On("vote", func(payload []byte) {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
	})

	waitFor(t, func() bool { return ts.connCount() == 1 })
	ts.send(t, wireMessage{Channel: "jam-1", Event: "vote", Data: json.RawMessage(`{"votes":3}`)})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	mu.Lock()
	assert.JSONEq(t, `{"votes":3}`, got[0])
	mu.Unlock()
}

func TestSubscribe_IgnoresOtherChannels(t *testing.T) {
	ts := setupTestServer(t)
	sub := Subscribe(ts.wsURL(), "jam-1", nil)
	defer sub.Unsubscribe()

	delivered := make(chan struct{}, 2)
	sub.On("vote", func([]byte) { delivered <- struct{}{} })

	waitFor(t, func() bool { return ts.connCount() == 1 })
	ts.send(t, wireMessage{Channel: "jam-other", Event: "vote", Data: json.RawMessage(`{}`)})
	ts.send(t, wireMessage{Channel: "jam-1", Event: "vote", Data: json.RawMessage(`{}`)})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("own-channel frame never delivered")
	}
	select {
	case <-delivered:
		t.Fatal("foreign-channel frame must be dropped")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnConnectionStateChange_FiresImmediately(t *testing.T) {
	ts := setupTestServer(t)
	sub := Subscribe(ts.wsURL(), "jam-1", nil)
	defer sub.Unsubscribe()

	states := make(chan ConnState, 8)
	sub.OnConnectionStateChange(func(state ConnState) { states <- state })

	// The registration itself reports the current state, then the
	// connect transition follows.
	seen := map[ConnState]bool{}
	waitFor(t, func() bool {
		for {
			select {
			case st := <-states:
				seen[st] = true
			default:
				return seen[StateConnected]
			}
		}
	})
}

func TestReconnect_ClearsBindingsAndReportsStates(t *testing.T) {
	ts := setupTestServer(t)
	sub := Subscribe(ts.wsURL(), "jam-1", nil)
	defer sub.Unsubscribe()

	var stateMu sync.Mutex
	var states []ConnState
	sub.OnConnectionStateChange(func(state ConnState) {
		stateMu.Lock()
		states = append(states, state)
		stateMu.Unlock()
	})

	delivered := make(chan struct{}, 1)
	sub.On("vote", func([]byte) { delivered <- struct{}{} })

	waitFor(t, func() bool { return ts.connCount() == 1 })
	ts.dropLatest()

	// A second connection means the reconnect loop came back.
	waitFor(t, func() bool { return ts.connCount() == 2 })
	waitFor(t, func() bool {
		stateMu.Lock()
		defer stateMu.Unlock()
		connected := 0
		for _, st := range states {
			if st == StateConnected {
				connected++
			}
		}
		return connected >= 2
	})

	// Bindings died with the first socket; the frame goes nowhere.
	ts.send(t, wireMessage{Channel: "jam-1", Event: "vote", Data: json.RawMessage(`{}`)})
	select {
	case <-delivered:
		t.Fatal("handler bound to the old connection must not survive reconnect")
	case <-time.After(200 * time.Millisecond):
	}

	stateMu.Lock()
	assert.Contains(t, states, StateDisconnected)
	stateMu.Unlock()
}

func TestUnsubscribe_StopsReconnecting(t *testing.T) {
	ts := setupTestServer(t)
	sub := Subscribe(ts.wsURL(), "jam-1", nil)

	waitFor(t, func() bool { return ts.connCount() == 1 })
	sub.Unsubscribe()

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 1, ts.connCount(), "no new dial after unsubscribe")
}

func TestSubscribe_MalformedFrameDropped(t *testing.T) {
	ts := setupTestServer(t)
	sub := Subscribe(ts.wsURL(), "jam-1", nil)
	defer sub.Unsubscribe()

	delivered := make(chan struct{}, 1)
	sub.On("vote", func([]byte) { delivered <- struct{}{} })

	waitFor(t, func() bool { return ts.connCount() == 1 })

	ts.mu.Lock()
	conn := ts.conns[0]
	ts.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	ts.send(t, wireMessage{Channel: "jam-1", Event: "vote", Data: json.RawMessage(`{}`)})
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection should survive a malformed frame")
	}
}
