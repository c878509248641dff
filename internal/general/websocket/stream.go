package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"isuride/internal/domain/user"
	"isuride/internal/general/contracts"
	"isuride/internal/general/jwt"
	"isuride/internal/general/logger"
	"isuride/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	authTimeout      = 5 * time.Second
	pongWait         = 60 * time.Second
	pingEvery        = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// deliverFunc runs one read-and-mark poll for subject and hands a newly
// delivered frame to send before the delivery marker commits.
type deliverFunc func(ctx context.Context, subject string, send func(frame any) error) error

// Stream pushes notification frames over websockets. Each connection runs the
// same poll as the HTTP notification endpoints on a fixed interval.
type Stream struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	notify     ports.NotificationService
	interval   time.Duration
	writeLocks sync.Map
}

// NewStream creates the notification stream handlers.
func NewStream(logger *logger.Logger, jwtMgr *jwt.Manager, notify ports.NotificationService, interval time.Duration) *Stream {
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}
	return &Stream{logger: logger, jwtMgr: jwtMgr, notify: notify, interval: interval}
}

// ConnectRider streams the rider channel of the authenticated rider.
func (ws *Stream) ConnectRider(w http.ResponseWriter, r *http.Request) {
	ws.serve(w, r, user.RoleRider, func(ctx context.Context, subject string, send func(any) error) error {
		return ws.notify.DeliverRider(ctx, subject, func(n ports.RiderNotification) error {
			return send(contracts.WSNotification{Type: contracts.WSTypeRiderNotification, Data: n})
		})
	})
}

// ConnectChair streams the chair channel of the authenticated chair.
func (ws *Stream) ConnectChair(w http.ResponseWriter, r *http.Request) {
	ws.serve(w, r, user.RoleChair, func(ctx context.Context, subject string, send func(any) error) error {
		return ws.notify.DeliverChair(ctx, subject, func(n ports.ChairNotification) error {
			return send(contracts.WSNotification{Type: contracts.WSTypeChairNotification, Data: n})
		})
	})
}

func (ws *Stream) serve(w http.ResponseWriter, r *http.Request, role user.Role, deliver deliverFunc) {
	// a session cookie or bearer header authenticates before the upgrade
	claims, preAuthErr := ws.jwtMgr.Authenticate(r, role)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer ws.writeLocks.Delete(conn)

	conn.SetReadLimit(1 << 16)

	if preAuthErr != nil {
		claims = ws.authenticateFrame(r.Context(), conn, role)
		if claims == nil {
			return
		}
	}
	subject := claims.Subject

	if err := ws.sendAuthSuccess(conn, subject); err != nil {
		ws.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return
	}
	ws.logger.Info(r.Context(), "ws_connected", "Notification stream connected", map[string]any{
		"role": role.String(), "subject": subject,
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// reader: keeps pong/close handling alive and ends the stream on disconnect
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					ws.logger.Debug(ctx, "ws_unexpected_close", "Stream closed unexpectedly", map[string]any{
						"subject": subject, "error": err.Error(),
					})
				}
				return
			}
		}
	}()

	pollTicker := time.NewTicker(ws.interval)
	defer pollTicker.Stop()
	pingTicker := time.NewTicker(pingEvery)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			ws.logger.Info(ctx, "ws_connection_closed", "Notification stream closed", map[string]any{"subject": subject})
			return

		case <-pingTicker.C:
			if err := ws.wsPing(conn); err != nil {
				ws.logger.Error(ctx, "ws_ping_failed", "Failed to send ping", err, map[string]any{"subject": subject})
				return
			}

		case <-pollTicker.C:
			// the frame is written before the event is marked delivered, so a
			// failed write leaves it for the next poll or the HTTP endpoint
			var writeErr error
			err := deliver(ctx, subject, func(frame any) error {
				writeErr = ws.writeJSON(conn, frame)
				return writeErr
			})
			if writeErr != nil {
				ws.logger.Error(ctx, "ws_write_failed", "Failed to push notification", writeErr, map[string]any{"subject": subject})
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				ws.logger.Error(ctx, "ws_poll_failed", "Notification poll failed", err, map[string]any{"subject": subject})
				ws.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
				return
			}
		}
	}
}

// authenticateFrame waits for {"type":"auth","token":"Bearer <jwt>"} as the first frame.
func (ws *Stream) authenticateFrame(ctx context.Context, conn *websocket.Conn, role user.Role) *jwt.Claims {
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		ws.logger.Error(ctx, "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		ws.sendAuthError(conn, "internal server error")
		return nil
	}

	mt, first, err := conn.ReadMessage()
	if err != nil {
		ws.logger.Error(ctx, "ws_auth_read_failed", "Failed to read auth message", err, nil)
		ws.sendAuthError(conn, "authentication timeout: please send auth message within 5 seconds")
		return nil
	}
	if mt != websocket.TextMessage {
		ws.sendAuthError(conn, "auth message must be in text format")
		return nil
	}

	claims, err := jwt.ValidateWSAuth(first, ws.jwtMgr, role)
	if err != nil {
		ws.logger.Error(ctx, "ws_auth_failed", "Invalid auth message or token", err, nil)
		ws.sendAuthError(conn, "authentication failed: invalid token")
		return nil
	}
	return claims
}
