package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Mihailchik/TG-TimeChecker/internal/middleware"
	"github.com/Mihailchik/TG-TimeChecker/internal/services"
	"github.com/Mihailchik/TG-TimeChecker/internal/websocket"
	"github.com/Mihailchik/TG-TimeChecker/pkg/utils"
)

type siteRequest struct {
	Site string `json:"site"`
}

type geoRequest struct {
	Geo string `json:"geo"`
}

type videoRequest struct {
	MediaRef string `json:"media_ref"`
}

// broadcastShiftEvent pushes a live event to connected managers
func broadcastShiftEvent(hub *websocket.Hub, event string, userID int64, extra map[string]interface{}) {
	if hub == nil {
		return
	}
	data := map[string]interface{}{
		"type":    "shift_event",
		"event":   event,
		"user_id": userID,
	}
	for k, v := range extra {
		data[k] = v
	}
	hub.BroadcastToRole("admin", data)
}

// stepError maps controller failures onto HTTP responses. Precondition
// failures are client errors, everything else is a 500.
func stepError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotRegistered):
		utils.RespondError(w, http.StatusForbidden, "Worker is not registered")
	case errors.Is(err, services.ErrShiftAlreadyActive):
		utils.RespondError(w, http.StatusConflict, "A shift is already active")
	case errors.Is(err, services.ErrNoActiveShift):
		utils.RespondError(w, http.StatusBadRequest, "No active shift")
	case errors.Is(err, services.ErrWrongStep):
		utils.RespondError(w, http.StatusConflict, "Step not allowed in current shift state")
	default:
		log.Printf("❌ Shift step failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal error")
	}
}

// GetCurrentShift returns the worker's active shift, or null
func GetCurrentShift(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shift, err := controller.GetActiveShift(r.Context(), claims.UserID)
		if err != nil {
			stepError(w, err)
			return
		}
		utils.RespondData(w, shift)
	}
}

// StartShift opens a new shift for the worker
func StartShift(controller *services.ShiftController, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		log.Printf("📥 REQUEST: POST /api/shift/start (worker %d)", claims.UserID)

		shiftID, err := controller.InitShift(r.Context(), claims.UserID)
		if err != nil {
			stepError(w, err)
			return
		}

		broadcastShiftEvent(hub, "shift_started", claims.UserID, map[string]interface{}{"shift_id": shiftID})
		utils.RespondData(w, map[string]string{"shift_id": shiftID})
	}
}

// SelectSite records the chosen work site
func SelectSite(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req siteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Site == "" {
			utils.RespondError(w, http.StatusBadRequest, "site is required")
			return
		}

		if err := controller.SetShiftSite(r.Context(), claims.UserID, req.Site); err != nil {
			stepError(w, err)
			return
		}
		utils.RespondData(w, nil)
	}
}

// SubmitStartGeo records the start geolocation
func SubmitStartGeo(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req geoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Geo == "" {
			utils.RespondError(w, http.StatusBadRequest, "geo is required")
			return
		}

		if err := controller.SetShiftStartGeo(r.Context(), claims.UserID, req.Geo); err != nil {
			stepError(w, err)
			return
		}
		utils.RespondData(w, nil)
	}
}

// SubmitStartVideo records the start video proof and opens the shift.
// The durable upload runs in the background; the start row is logged
// with a placeholder link when it hasn't finished yet.
func SubmitStartVideo(controller *services.ShiftController, videos *services.VideoService, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req videoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MediaRef == "" {
			utils.RespondError(w, http.StatusBadRequest, "media_ref is required")
			return
		}

		shift, err := controller.GetActiveShift(r.Context(), claims.UserID)
		if err != nil {
			stepError(w, err)
			return
		}
		if shift == nil {
			stepError(w, services.ErrNoActiveShift)
			return
		}

		videos.StartUpload(shift.ShiftID, services.PhaseStart, req.MediaRef,
			controller.WorkerName(r.Context(), claims.UserID), shift.ProjectName())

		link := videos.Link(shift.ShiftID, services.PhaseStart)
		if err := controller.SetShiftStartVideo(r.Context(), claims.UserID, req.MediaRef, link); err != nil {
			stepError(w, err)
			return
		}

		broadcastShiftEvent(hub, "shift_active", claims.UserID, map[string]interface{}{
			"shift_id": shift.ShiftID,
			"project":  shift.ProjectName(),
		})
		utils.RespondData(w, nil)
	}
}

// SubmitEndGeo records the end geolocation
func SubmitEndGeo(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req geoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Geo == "" {
			utils.RespondError(w, http.StatusBadRequest, "geo is required")
			return
		}

		if err := controller.SetShiftEndGeo(r.Context(), claims.UserID, req.Geo); err != nil {
			stepError(w, err)
			return
		}
		utils.RespondData(w, nil)
	}
}

// SubmitEndVideo accepts the end video proof and dispatches finalize in
// the background: the worker gets an immediate "saving" acknowledgment
// and the outcome arrives as a follow-up notification.
func SubmitEndVideo(controller *services.ShiftController, videos *services.VideoService, notifier services.Notifier, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req videoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MediaRef == "" {
			utils.RespondError(w, http.StatusBadRequest, "media_ref is required")
			return
		}

		shift, err := controller.GetActiveShift(r.Context(), claims.UserID)
		if err != nil {
			stepError(w, err)
			return
		}
		if shift == nil {
			stepError(w, services.ErrNoActiveShift)
			return
		}

		videos.StartUpload(shift.ShiftID, services.PhaseEnd, req.MediaRef,
			controller.WorkerName(r.Context(), claims.UserID), shift.ProjectName())

		startLink := videos.Link(shift.ShiftID, services.PhaseStart)
		endLink := videos.Link(shift.ShiftID, services.PhaseEnd)

		done := services.DispatchFinalize(controller, notifier, claims.UserID,
			req.MediaRef, startLink, endLink)

		shiftID := shift.ShiftID
		userID := claims.UserID
		go func() {
			result := <-done
			videos.Forget(shiftID)
			if result.Err == nil {
				broadcastShiftEvent(hub, "shift_completed", userID, map[string]interface{}{
					"shift_id": shiftID,
					"status":   result.Entry.Status,
				})
			}
		}()

		utils.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
			"success": true,
			"status":  "saving",
		})
	}
}
