package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"isuride/internal/domain/user"
	"isuride/internal/general/jwt"
	"isuride/internal/general/logger"
	"isuride/internal/ports"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onceNotifier delivers a single event per channel, then reports nothing new.
// An event whose send fails stays pending.
type onceNotifier struct {
	mu        sync.Mutex
	delivered map[string]bool
}

func (n *onceNotifier) pending(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.delivered[key]
}

func (n *onceNotifier) markDelivered(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.delivered == nil {
		n.delivered = map[string]bool{}
	}
	n.delivered[key] = true
}

func riderNotification() ports.RiderNotification {
	return ports.RiderNotification{
		Data:         &ports.RiderNotificationData{RideID: "r1", Status: "MATCHING", Fare: 2500},
		RetryAfterMs: 30,
		Delivered:    true,
	}
}

func chairNotification() ports.ChairNotification {
	return ports.ChairNotification{
		Data:         &ports.ChairNotificationData{RideID: "r1", Status: "ENROUTE"},
		RetryAfterMs: 30,
		Delivered:    true,
	}
}

func (n *onceNotifier) PollRider(_ context.Context, userID string) (ports.RiderNotification, error) {
	if !n.pending("rider:" + userID) {
		return ports.RiderNotification{RetryAfterMs: 30}, nil
	}
	n.markDelivered("rider:" + userID)
	return riderNotification(), nil
}

func (n *onceNotifier) PollChair(_ context.Context, chairID string) (ports.ChairNotification, error) {
	if !n.pending("chair:" + chairID) {
		return ports.ChairNotification{RetryAfterMs: 30}, nil
	}
	n.markDelivered("chair:" + chairID)
	return chairNotification(), nil
}

func (n *onceNotifier) DeliverRider(_ context.Context, userID string, send func(ports.RiderNotification) error) error {
	if !n.pending("rider:" + userID) {
		return nil
	}
	if err := send(riderNotification()); err != nil {
		return err
	}
	n.markDelivered("rider:" + userID)
	return nil
}

func (n *onceNotifier) DeliverChair(_ context.Context, chairID string, send func(ports.ChairNotification) error) error {
	if !n.pending("chair:" + chairID) {
		return nil
	}
	if err := send(chairNotification()); err != nil {
		return err
	}
	n.markDelivered("chair:" + chairID)
	return nil
}

func newStreamServer(t *testing.T) (*httptest.Server, *jwt.Manager) {
	t.Helper()
	mgr, err := jwt.NewManager("secret", time.Hour)
	require.NoError(t, err)

	stream := NewStream(logger.NewWithWriter("test", io.Discard), mgr, &onceNotifier{}, 5*time.Millisecond)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rider", stream.ConnectRider)
	mux.HandleFunc("GET /chair", stream.ConnectChair)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestStream_CookieAuthPushesDeliveredEvent(t *testing.T) {
	srv, mgr := newStreamServer(t)
	cookie, err := mgr.SessionCookie("u1", user.RoleRider)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Cookie", cookie.Name+"="+cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/rider"), header)
	require.NoError(t, err)
	defer conn.Close()

	auth := readFrame(t, conn)
	assert.Equal(t, "auth_success", auth["type"])
	assert.Equal(t, "u1", auth["subject"])

	frame := readFrame(t, conn)
	assert.Equal(t, "rider_notification", frame["type"])
	data := frame["data"].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "r1", data["ride_id"])
	assert.Equal(t, "MATCHING", data["status"])

	// nothing else is delivered, so no further frame arrives
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestStream_FirstFrameAuth(t *testing.T) {
	srv, mgr := newStreamServer(t)
	signed, _, err := mgr.Issue("c1", user.RoleChair)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/chair"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(jwt.ClientAuthMessage{Type: "auth", Token: "Bearer " + signed}))
	assert.Equal(t, "auth_success", readFrame(t, conn)["type"])

	frame := readFrame(t, conn)
	assert.Equal(t, "chair_notification", frame["type"])
}

func TestStream_RejectsWrongRole(t *testing.T) {
	srv, mgr := newStreamServer(t)
	signed, _, err := mgr.Issue("u1", user.RoleRider)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/chair"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(jwt.ClientAuthMessage{Type: "auth", Token: "Bearer " + signed}))
	frame := readFrame(t, conn)
	assert.Equal(t, "auth_error", frame["type"])
	assert.Equal(t, false, frame["success"])
}
