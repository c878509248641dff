package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/user"
	"isuride/internal/general/jwt"
	"isuride/internal/general/logger"
	"isuride/internal/general/websocket"
	"isuride/internal/ports"
	"isuride/internal/software/settlement"
)

// requestTimeout bounds ordinary service calls.
const requestTimeout = 5 * time.Second

// settleMargin covers the evaluation's own transactions around settlement.
const settleMargin = 5 * time.Second

// SettleTimeout bounds the evaluation call so that every payment attempt of
// the given settlement budget can run to completion.
func SettleTimeout(settleBudget time.Duration) time.Duration {
	return settleBudget + settleMargin
}

// Services groups the collaborators the dispatch API adapts to HTTP.
type Services struct {
	Rider   ports.RiderService
	Chair   ports.ChairService
	Owner   ports.OwnerService
	Notify  ports.NotificationService
	Matcher ports.Matcher
}

// DispatchHTTPHandler adapts HTTP requests to the dispatch services.
type DispatchHTTPHandler struct {
	rider   ports.RiderService
	chair   ports.ChairService
	owner   ports.OwnerService
	notify  ports.NotificationService
	matcher ports.Matcher
	logger  *logger.Logger
	auth    *jwt.Manager
	stream  *websocket.Stream

	settleTimeout time.Duration
}

// NewDispatchHTTPHandler wires an HTTP handler around the dispatch services.
// settleTimeout bounds ride evaluation, which waits for payment settlement.
func NewDispatchHTTPHandler(svcs Services, logger *logger.Logger, auth *jwt.Manager, stream *websocket.Stream, settleTimeout time.Duration) *DispatchHTTPHandler {
	if settleTimeout <= 0 {
		settleTimeout = SettleTimeout(settlement.Budget(settlement.DefaultMaxRetries, settlement.DefaultRetryDelay, requestTimeout))
	}
	return &DispatchHTTPHandler{
		rider:   svcs.Rider,
		chair:   svcs.Chair,
		owner:   svcs.Owner,
		notify:  svcs.Notify,
		matcher: svcs.Matcher,
		logger:  logger,
		auth:    auth,
		stream:  stream,

		settleTimeout: settleTimeout,
	}
}

// RegisterRoutes mounts the rider, chair, owner and internal endpoints on the provided mux.
func (handler *DispatchHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	rider := jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)
	chair := jwt.AuthMiddlewareFunc(handler.auth, user.RoleChair)

	// rider
	mux.HandleFunc("POST /api/app/users", handler.handleRegisterUser)
	mux.HandleFunc("POST /api/app/payment-methods", rider(handler.handleRegisterPaymentMethod))
	mux.HandleFunc("GET /api/app/rides", rider(handler.handleListRides))
	mux.HandleFunc("POST /api/app/rides", rider(handler.handleCreateRide))
	mux.HandleFunc("POST /api/app/rides/estimated-fare", rider(handler.handleEstimateFare))
	mux.HandleFunc("POST /api/app/rides/{ride_id}/evaluation", rider(handler.handleEvaluateRide))
	mux.HandleFunc("GET /api/app/notification", rider(handler.handleRiderNotification))
	mux.HandleFunc("GET /api/app/nearby-chairs", rider(handler.handleNearbyChairs))

	// owner
	mux.HandleFunc("POST /api/owner/owners", handler.handleRegisterOwner)

	// chair
	mux.HandleFunc("POST /api/chair/chairs", handler.handleRegisterChair)
	mux.HandleFunc("POST /api/chair/activity", chair(handler.handleChairActivity))
	mux.HandleFunc("POST /api/chair/coordinate", chair(handler.handleChairCoordinate))
	mux.HandleFunc("GET /api/chair/notification", chair(handler.handleChairNotification))
	mux.HandleFunc("POST /api/chair/rides/{ride_id}/status", chair(handler.handleChairRideStatus))

	// streams authenticate themselves (cookie, bearer or first frame)
	if handler.stream != nil {
		mux.HandleFunc("GET /api/app/notification/stream", handler.stream.ConnectRider)
		mux.HandleFunc("GET /api/chair/notification/stream", handler.stream.ConnectChair)
	}

	// internal
	mux.HandleFunc("GET /api/internal/matching", handler.handleMatching)
}

// ----- general helpers -----

// decodeJSON checks the content type, limits the body and decodes it into dst.
// It writes the error response itself and reports whether decoding succeeded.
func (handler *DispatchHTTPHandler) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10) // 64 KiB
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}
	return true
}

// subject returns the authenticated id injected by the auth middleware.
func (handler *DispatchHTTPHandler) subject(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := jwt.RequireClaims(r)
	if claims == nil || strings.TrimSpace(claims.Subject) == "" {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return "", false
	}
	return claims.Subject, true
}

// setSession issues a session cookie for subject.
func (handler *DispatchHTTPHandler) setSession(ctx context.Context, w http.ResponseWriter, subject string, role user.Role) bool {
	cookie, err := handler.auth.SessionCookie(subject, role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to issue session", err)
		return false
	}
	http.SetCookie(w, cookie)
	return true
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindInvalidTransition, apperr.KindMissingDependency:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// serviceError writes a service failure. Internal failures never leak their cause.
func (handler *DispatchHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := apperr.Message(err)
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	handler.httpError(ctx, w, status, msg, err)
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *DispatchHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *DispatchHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	if status >= 500 {
		handler.logger.Error(ctx, action, msg, err, nil)
	} else {
		handler.logger.Debug(ctx, action, msg, map[string]any{"status": status})
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *DispatchHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
