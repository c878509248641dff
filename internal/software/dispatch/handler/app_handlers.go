package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"isuride/internal/domain/geo"
	"isuride/internal/domain/user"
	"isuride/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type registerUserRequest struct {
	Username       string `json:"username"`
	Firstname      string `json:"firstname"`
	Lastname       string `json:"lastname"`
	DateOfBirth    string `json:"date_of_birth"`
	InvitationCode string `json:"invitation_code"`
}

type paymentMethodRequest struct {
	Token string `json:"token"`
}

type rideRequest struct {
	PickupCoordinate      *geo.Coordinate `json:"pickup_coordinate"`
	DestinationCoordinate *geo.Coordinate `json:"destination_coordinate"`
}

type evaluationRequest struct {
	Evaluation int `json:"evaluation"`
}

// defaultNearbyDistance applies when the query omits distance.
const defaultNearbyDistance = 50

// ----- Handler: POST /api/app/users -----

func (handler *DispatchHTTPHandler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req registerUserRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.rider.RegisterUser(ctxWithTimeout, ports.RegisterUserInput{
		Username:       strings.TrimSpace(req.Username),
		Firstname:      strings.TrimSpace(req.Firstname),
		Lastname:       strings.TrimSpace(req.Lastname),
		DateOfBirth:    strings.TrimSpace(req.DateOfBirth),
		InvitationCode: strings.TrimSpace(req.InvitationCode),
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	if !handler.setSession(ctx, w, res.ID, user.RoleRider) {
		return
	}

	handler.logger.Info(ctx, "user_registered", "Rider registered", map[string]any{"user_id": res.ID})
	handler.jsonResponse(ctx, w, http.StatusCreated, res)
}

// ----- Handler: POST /api/app/payment-methods -----

func (handler *DispatchHTTPHandler) handleRegisterPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	userID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	var req paymentMethodRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := handler.rider.RegisterPaymentMethod(ctxWithTimeout, ports.RegisterPaymentMethodInput{
		UserID: userID,
		Token:  strings.TrimSpace(req.Token),
	}); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- Handler: POST /api/app/rides -----

func (handler *DispatchHTTPHandler) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	userID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	var req rideRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.rider.CreateRide(ctxWithTimeout, ports.CreateRideInput{
		UserID:      userID,
		Pickup:      req.PickupCoordinate,
		Destination: req.DestinationCoordinate,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	ctx = handler.logger.WithRideID(ctx, res.RideID)

	handler.jsonResponse(ctx, w, http.StatusAccepted, res)
}

// ----- Handler: POST /api/app/rides/estimated-fare -----

func (handler *DispatchHTTPHandler) handleEstimateFare(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	userID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	var req rideRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.rider.EstimateFare(ctxWithTimeout, ports.EstimateFareInput{
		UserID:      userID,
		Pickup:      req.PickupCoordinate,
		Destination: req.DestinationCoordinate,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: POST /api/app/rides/{ride_id}/evaluation -----

func (handler *DispatchHTTPHandler) handleEvaluateRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	userID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", nil)
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	var req evaluationRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, handler.settleTimeout)
	defer cancel()

	res, err := handler.rider.EvaluateRide(ctxWithTimeout, ports.EvaluateRideInput{
		UserID:     userID,
		RideID:     rideID,
		Evaluation: req.Evaluation,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /api/app/rides -----

func (handler *DispatchHTTPHandler) handleListRides(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	userID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.rider.ListRides(ctxWithTimeout, userID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /api/app/notification -----

func (handler *DispatchHTTPHandler) handleRiderNotification(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	userID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.notify.PollRider(ctxWithTimeout, userID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /api/app/nearby-chairs -----

func (handler *DispatchHTTPHandler) handleNearbyChairs(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	if _, ok := handler.subject(ctx, w, r); !ok {
		return
	}

	q := r.URL.Query()
	lat, errLat := strconv.Atoi(q.Get("latitude"))
	lon, errLon := strconv.Atoi(q.Get("longitude"))
	if errLat != nil || errLon != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "latitude and longitude must be integers", nil)
		return
	}
	distance := defaultNearbyDistance
	if raw := q.Get("distance"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "distance must be an integer", err)
			return
		}
		distance = d
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.rider.NearbyChairs(ctxWithTimeout, ports.NearbyChairsInput{
		Center:   geo.Coordinate{Latitude: lat, Longitude: lon},
		Distance: distance,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}
