package handler

import (
	"context"
	"net/http"

	"isuride/internal/domain/apperr"
)

// ----- Handler: GET /api/internal/matching -----

// handleMatching runs one matching round. Finding nothing to match is still 204;
// only storage failures surface as 500.
func (handler *DispatchHTTPHandler) handleMatching(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := handler.matcher.MatchOnce(ctxWithTimeout)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "matching failed", err)
			return
		}
		handler.logger.Error(ctx, "matching_failed", "Matching round failed", err, nil)
	} else if res.Matched {
		handler.logger.Info(handler.logger.WithRideID(ctx, res.RideID), "ride_matched", "Ride matched to chair",
			map[string]any{"chair_id": res.ChairID, "draws": res.Draws})
	}
	w.WriteHeader(http.StatusNoContent)
}
