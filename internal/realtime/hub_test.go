package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskwise/internal/logging"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, hub *Hub, userID string) *websocket.Conn {
	before := hub.ConnectionCount(userID)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userID) == before+1
	}, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHub_DeliversInPublishOrder(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := newTestServer(t, hub)
	conn := dial(t, server, hub, "alice")

	hub.Publish("alice", "task:created", map[string]string{"id": "1"})
	hub.Publish("alice", "task:updated", map[string]string{"id": "1"})
	hub.Publish("alice", "task:deleted", map[string]string{"id": "1"})

	for _, event := range []string{"task:created", "task:updated", "task:deleted"} {
		frame := readFrame(t, conn)
		assert.Equal(t, event, frame["event"])
		assert.Equal(t, map[string]any{"id": "1"}, frame["data"])
	}
}

func TestHub_ScopesByUser(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := newTestServer(t, hub)
	alicePhone := dial(t, server, hub, "alice")
	aliceLaptop := dial(t, server, hub, "alice")
	bob := dial(t, server, hub, "bob")

	hub.Publish("alice", "task:created", map[string]string{"id": "a"})
	hub.Publish("bob", "task:created", map[string]string{"id": "b"})

	assert.Equal(t, map[string]any{"id": "a"}, readFrame(t, alicePhone)["data"])
	assert.Equal(t, map[string]any{"id": "a"}, readFrame(t, aliceLaptop)["data"])
	assert.Equal(t, map[string]any{"id": "b"}, readFrame(t, bob)["data"])
}

func TestHub_NoReplayForLateClients(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := newTestServer(t, hub)

	hub.Publish("alice", "task:created", map[string]string{"id": "early"})
	conn := dial(t, server, hub, "alice")
	hub.Publish("alice", "task:created", map[string]string{"id": "late"})

	assert.Equal(t, map[string]any{"id": "late"}, readFrame(t, conn)["data"])
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := newTestServer(t, hub)
	conn := dial(t, server, hub, "alice")

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("alice") == 0
	}, time.Second, 5*time.Millisecond)
	hub.Publish("alice", "task:created", nil)
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(logging.Discard())
	client := &Client{id: "c1", userID: "alice", hub: hub, send: make(chan []byte, 1)}
	require.True(t, hub.register(client))

	done := make(chan struct{})
	go func() {
		hub.Publish("alice", "task:created", 1)
		hub.Publish("alice", "task:created", 2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	var frame Frame
	require.NoError(t, json.Unmarshal(<-client.send, &frame))
	assert.Equal(t, float64(1), frame.Data)
	assert.Empty(t, client.send)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(logging.Discard())
	server := newTestServer(t, hub)
	conn := dial(t, server, hub, "alice")

	require.NoError(t, hub.Close())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, hub.ConnectionCount("alice"))

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=alice"
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(logging.Discard(), "https://tasks.example.com")
	server := newTestServer(t, hub)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=alice"

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://tasks.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestRedisBroadcaster_FansOutThroughChannel(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at localhost:6379: %v", err)
	}
	defer client.Close()

	hub := NewHub(logging.Discard())
	server := newTestServer(t, hub)
	conn := dial(t, server, hub, "alice")

	channel := "taskwise:test:" + t.Name()
	broadcaster := NewRedisBroadcaster(client, channel, hub, logging.Discard())
	go broadcaster.Run(ctx)

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, channel).Result()
		return err == nil && n[channel] > 0
	}, 2*time.Second, 10*time.Millisecond)

	broadcaster.Publish("alice", "task:deleted", map[string]string{"id": "x"})

	frame := readFrame(t, conn)
	assert.Equal(t, "task:deleted", frame["event"])
	assert.Equal(t, map[string]any{"id": "x"}, frame["data"])
}

func TestRedisBroadcaster_FallsBackToLocalHub(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	hub := NewHub(logging.Discard())
	server := newTestServer(t, hub)
	conn := dial(t, server, hub, "alice")

	NewRedisBroadcaster(client, DefaultChannel, hub, logging.Discard()).
		Publish("alice", "task:updated", map[string]string{"id": "y"})

	frame := readFrame(t, conn)
	assert.Equal(t, "task:updated", frame["event"])
	assert.Equal(t, map[string]any{"id": "y"}, frame["data"])
}

func TestRedisBroadcaster_ServeRetriesUntilCancelled(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	log, hook := logtest.NewNullLogger()
	broadcaster := NewRedisBroadcaster(client, DefaultChannel, NewHub(logging.Discard()), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- broadcaster.Serve(ctx, backoff.NewConstantBackOff(10*time.Millisecond))
	}()

	retries := func() int {
		n := 0
		for _, entry := range hook.AllEntries() {
			if entry.Message == "Realtime subscriber failed, retrying" {
				n++
			}
		}
		return n
	}
	require.Eventually(t, func() bool { return retries() >= 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestNewRetryBackOff_NeverGivesUp(t *testing.T) {
	bo := NewRetryBackOff()
	for i := 0; i < 50; i++ {
		wait := bo.NextBackOff()
		require.NotEqual(t, backoff.Stop, wait)
		assert.LessOrEqual(t, wait, 45*time.Second)
	}
}
