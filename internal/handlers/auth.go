package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mihailchik/TG-TimeChecker/internal/database"
	"github.com/Mihailchik/TG-TimeChecker/internal/middleware"
	"github.com/Mihailchik/TG-TimeChecker/internal/models"
	"github.com/Mihailchik/TG-TimeChecker/internal/services"
	"github.com/Mihailchik/TG-TimeChecker/pkg/utils"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerWorkerRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type fcmTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// Login authenticates a manager and returns a signed JWT
func Login(directory *database.UserDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		admin, err := directory.GetAdminByEmail(r.Context(), req.Email)
		if err != nil || admin == nil {
			utils.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		secret := os.Getenv("APP_JWT_SECRET")
		if secret == "" {
			log.Println("❌ APP_JWT_SECRET is not set")
			utils.RespondError(w, http.StatusInternalServerError, "Server misconfigured")
			return
		}

		claims := jwt.MapClaims{
			"admin_id": admin.ID,
			"email":    admin.Email,
			"role":     admin.Role,
			"exp":      time.Now().Add(24 * time.Hour).Unix(),
			"iat":      time.Now().Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(secret))
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Could not create token")
			return
		}

		log.Printf("✅ Manager logged in: %s", admin.Email)
		utils.RespondData(w, map[string]interface{}{
			"token": signed,
			"admin": admin.ToResponse(),
		})
	}
}

// RegisterWorker enrolls the authenticated worker in the directory
func RegisterWorker(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req registerWorkerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FullName == "" {
			utils.RespondError(w, http.StatusBadRequest, "full_name is required")
			return
		}

		worker := models.Worker{
			UserID:   claims.UserID,
			Username: req.Username,
			FullName: req.FullName,
			Phone:    req.Phone,
		}
		if err := controller.RegisterUser(r.Context(), worker); err != nil {
			log.Printf("❌ Worker registration failed: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		log.Printf("✅ Worker registered: %d (%s)", claims.UserID, req.FullName)
		utils.RespondData(w, nil)
	}
}

// RegisterFCMToken stores a device token for push delivery
func RegisterFCMToken(directory *database.UserDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req fcmTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}

		if req.DeviceType == "" {
			req.DeviceType = "android"
		}
		if err := directory.SaveFCMToken(r.Context(), claims.UserID, req.Token, req.DeviceType); err != nil {
			log.Printf("❌ Failed to save FCM token: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Could not save token")
			return
		}
		utils.RespondData(w, nil)
	}
}
