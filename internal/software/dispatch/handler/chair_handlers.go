package handler

import (
	"context"
	"net/http"
	"strings"

	"isuride/internal/domain/geo"
	"isuride/internal/domain/user"
	"isuride/internal/ports"
)

// --- Request DTOs (HTTP boundary) ---

type registerOwnerRequest struct {
	Name string `json:"name"`
}

type registerChairRequest struct {
	Name               string `json:"name"`
	Model              string `json:"model"`
	ChairRegisterToken string `json:"chair_register_token"`
}

type activityRequest struct {
	IsActive bool `json:"is_active"`
}

type rideStatusRequest struct {
	Status string `json:"status"`
}

// ----- Handler: POST /api/owner/owners -----

func (handler *DispatchHTTPHandler) handleRegisterOwner(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req registerOwnerRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.owner.RegisterOwner(ctxWithTimeout, strings.TrimSpace(req.Name))
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	if !handler.setSession(ctx, w, res.ID, user.RoleOwner) {
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, res)
}

// ----- Handler: POST /api/chair/chairs -----

func (handler *DispatchHTTPHandler) handleRegisterChair(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req registerChairRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.chair.RegisterChair(ctxWithTimeout, ports.RegisterChairInput{
		Name:               strings.TrimSpace(req.Name),
		Model:              strings.TrimSpace(req.Model),
		ChairRegisterToken: strings.TrimSpace(req.ChairRegisterToken),
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	if !handler.setSession(ctx, w, res.ID, user.RoleChair) {
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, res)
}

// ----- Handler: POST /api/chair/activity -----

func (handler *DispatchHTTPHandler) handleChairActivity(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	chairID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	var req activityRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := handler.chair.SetActivity(ctxWithTimeout, chairID, req.IsActive); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- Handler: POST /api/chair/coordinate -----

func (handler *DispatchHTTPHandler) handleChairCoordinate(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	chairID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	var req *geo.Coordinate
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.chair.RecordCoordinate(ctxWithTimeout, ports.ChairCoordinateInput{
		ChairID:    chairID,
		Coordinate: req,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /api/chair/notification -----

func (handler *DispatchHTTPHandler) handleChairNotification(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	chairID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.notify.PollChair(ctxWithTimeout, chairID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: POST /api/chair/rides/{ride_id}/status -----

func (handler *DispatchHTTPHandler) handleChairRideStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	chairID, ok := handler.subject(ctx, w, r)
	if !ok {
		return
	}

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", nil)
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	var req rideStatusRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := handler.chair.UpdateRideStatus(ctxWithTimeout, ports.ChairRideStatusInput{
		ChairID: chairID,
		RideID:  rideID,
		Status:  strings.TrimSpace(req.Status),
	}); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
