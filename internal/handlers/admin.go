package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/Mihailchik/TG-TimeChecker/internal/services"
	"github.com/Mihailchik/TG-TimeChecker/internal/websocket"
	"github.com/Mihailchik/TG-TimeChecker/pkg/utils"
)

type terminateRequest struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

type managerMessageRequest struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

type clearShiftRequest struct {
	UserID int64 `json:"user_id"`
}

// GetActiveShifts lists every shift currently in flight
func GetActiveShifts(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shifts, err := controller.ActiveShifts(r.Context())
		if err != nil {
			log.Printf("❌ Failed to list active shifts: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Could not load shifts")
			return
		}
		utils.RespondData(w, shifts)
	}
}

// TerminateShift forcibly closes a worker's shift with a reason
func TerminateShift(controller *services.ShiftController, notifier services.Notifier, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req terminateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
			utils.RespondError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if req.Reason == "" {
			req.Reason = "BY_MANAGER"
		}

		if err := controller.TerminateShift(r.Context(), req.UserID, req.Reason); err != nil {
			stepError(w, err)
			return
		}

		log.Printf("⚠️ Shift terminated by manager: worker %d, reason %s", req.UserID, req.Reason)
		if notifier != nil {
			notifier.NotifyUser(r.Context(), req.UserID, "Shift terminated",
				"Your shift was closed by a manager: "+req.Reason, nil)
		}
		broadcastShiftEvent(hub, "shift_terminated", req.UserID, map[string]interface{}{"reason": req.Reason})
		utils.RespondData(w, nil)
	}
}

// SendManagerMessage records a manager note against the worker. When the
// worker has an active shift the shift is closed with the message, otherwise
// a standalone message row is written to history.
func SendManagerMessage(controller *services.ShiftController, notifier services.Notifier, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req managerMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || req.Message == "" {
			utils.RespondError(w, http.StatusBadRequest, "user_id and message are required")
			return
		}

		if err := controller.HandleManagerMessage(r.Context(), req.UserID, req.Message); err != nil {
			stepError(w, err)
			return
		}

		if notifier != nil {
			notifier.NotifyUser(r.Context(), req.UserID, "Message from manager", req.Message, nil)
		}
		broadcastShiftEvent(hub, "manager_message", req.UserID, nil)
		utils.RespondData(w, nil)
	}
}

// ClearShift drops a worker's active shift record without touching history
func ClearShift(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clearShiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
			utils.RespondError(w, http.StatusBadRequest, "user_id is required")
			return
		}

		removed, err := controller.ClearActiveShift(r.Context(), req.UserID)
		if err != nil {
			stepError(w, err)
			return
		}
		utils.RespondData(w, map[string]bool{"removed": removed})
	}
}
