package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mihailchik/TG-TimeChecker/internal/database"
	"github.com/Mihailchik/TG-TimeChecker/internal/handlers"
	"github.com/Mihailchik/TG-TimeChecker/internal/history"
	"github.com/Mihailchik/TG-TimeChecker/internal/middleware"
	"github.com/Mihailchik/TG-TimeChecker/internal/services"
	"github.com/Mihailchik/TG-TimeChecker/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 TG-TIMECHECKER SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Get database URL
	log.Println("🔍 Checking DATABASE_URL environment variable...")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal("DATABASE_URL environment variable is required")
	}
	log.Println("✅ DATABASE_URL found")

	// Connect to database
	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	// Run migrations
	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	log.Println("✅ Database migrations completed")

	// Seed manager account
	log.Println("🌱 Seeding manager account...")
	if err := database.SeedAdmin(db); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Manager seeding failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	log.Println("✅ Manager account ready")

	ctx := context.Background()

	// History backends. Google Sheets is optional and degrades with a
	// warning; the local Excel workbook is always on.
	var backends []history.Backend
	var sheetsBackend *history.SheetsBackend

	sheetID := os.Getenv("GOOGLE_SHEET_ID")
	if sheetID != "" {
		if creds := os.Getenv("GOOGLE_CREDENTIALS_BASE64"); creds != "" {
			sheetsBackend, err = history.NewSheetsBackendFromBase64(ctx, creds, sheetID)
		} else {
			credsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE")
			if credsFile == "" {
				credsFile = "./google-service-account.json"
			}
			sheetsBackend, err = history.NewSheetsBackend(ctx, credsFile, sheetID)
		}
		if err != nil {
			log.Printf("⚠️  Failed to initialize Google Sheets history: %v (sheet logging disabled)", err)
			sheetsBackend = nil
		} else {
			log.Println("✅ Google Sheets history backend initialized")
			backends = append(backends, sheetsBackend)
		}
	} else {
		log.Println("⚠️  GOOGLE_SHEET_ID not set, sheet logging disabled")
	}

	excelPath := os.Getenv("EXCEL_FILE")
	if excelPath == "" {
		excelPath = "./shifts.xlsx"
	}
	excelBackend, err := history.NewExcelBackend(excelPath)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Excel history backend failed")
		log.Printf("   Error: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
	log.Printf("✅ Excel history backend initialized: %s", excelPath)
	backends = append(backends, excelBackend)

	sink := history.NewComposite(backends...)

	// Work sites come from the same spreadsheet when available,
	// otherwise from the SITES variable.
	var sitesRepo services.SitesRepo
	if sheetsBackend != nil {
		sitesRepo = services.NewGoogleSitesRepo(sheetsBackend.Service(), sheetID, 5*time.Minute)
		log.Println("✅ Sites loaded from spreadsheet")
	} else {
		var names []string
		for _, s := range strings.Split(os.Getenv("SITES"), ",") {
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
		sitesRepo = services.NewStaticSitesRepo(names)
		log.Printf("✅ Sites loaded from environment (%d)", len(names))
	}

	// Video uploads to Google Drive are optional
	var uploader services.MediaUploader
	if folderID := os.Getenv("DRIVE_FOLDER_ID"); folderID != "" {
		spoolDir := os.Getenv("VIDEO_SPOOL_DIR")
		if spoolDir == "" {
			spoolDir = "./videos"
		}
		var drive *services.DriveUploader
		if creds := os.Getenv("GOOGLE_CREDENTIALS_BASE64"); creds != "" {
			drive, err = services.NewDriveUploaderFromBase64(ctx, creds, folderID, spoolDir)
		} else {
			credsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE")
			if credsFile == "" {
				credsFile = "./google-service-account.json"
			}
			drive, err = services.NewDriveUploader(ctx, credsFile, folderID, spoolDir)
		}
		if err != nil {
			log.Printf("⚠️  Failed to initialize Drive uploader: %v (durable video links disabled)", err)
		} else {
			uploader = drive
			log.Println("✅ Google Drive uploader initialized")
		}
	} else {
		log.Println("⚠️  DRIVE_FOLDER_ID not set, durable video links disabled")
	}
	videoService := services.NewVideoService(uploader)

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials (for Railway/cloud deployments)
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else {
		fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE")
		if fcmCredentialsFile == "" {
			fcmCredentialsFile = "./firebase-service-account.json"
		}
		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	store := database.NewShiftStore(db)
	directory := database.NewUserDirectory(db)
	controller := services.NewShiftController(store, sink, services.NewTimeCalculator(), sitesRepo, directory)
	notifier := services.NewNotifyService(directory, fcmService, wsHub)

	// Stale shift sweep
	threshold := 24 * time.Hour
	if h := os.Getenv("STALE_THRESHOLD_HOURS"); h != "" {
		if parsed, err := strconv.Atoi(h); err == nil && parsed > 0 {
			threshold = time.Duration(parsed) * time.Hour
		}
	}
	sweeper := services.NewStaleSweeper(controller, notifier, time.Hour, threshold)
	go sweeper.Run(ctx)
	log.Printf("✅ Stale shift sweeper started (threshold %s)", threshold)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(directory))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Worker endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Post("/worker/register", handlers.RegisterWorker(controller))
			r.Post("/worker/fcm-token", handlers.RegisterFCMToken(directory))

			r.Get("/sites", handlers.GetSites(controller))
			r.Get("/sites/{name}", handlers.GetSiteDetails(controller))

			// Shift workflow
			r.Get("/shift/current", handlers.GetCurrentShift(controller))
			r.Post("/shift/start", handlers.StartShift(controller, wsHub))
			r.Post("/shift/site", handlers.SelectSite(controller))
			r.Post("/shift/start-geo", handlers.SubmitStartGeo(controller))
			r.Post("/shift/start-video", handlers.SubmitStartVideo(controller, videoService, wsHub))
			r.Post("/shift/end-geo", handlers.SubmitEndGeo(controller))
			r.Post("/shift/end-video", handlers.SubmitEndVideo(controller, videoService, notifier, wsHub))
		})

		// Manager endpoints (require authentication + admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			r.Get("/manager/shifts", handlers.GetActiveShifts(controller))
			r.Post("/manager/shifts/terminate", handlers.TerminateShift(controller, notifier, wsHub))
			r.Post("/manager/shifts/message", handlers.SendManagerMessage(controller, notifier, wsHub))
			r.Delete("/manager/shifts/clear", handlers.ClearShift(controller))
		})
	})

	// Get port
	log.Println("🔍 Checking PORT environment variable...")
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	} else {
		log.Printf("✅ PORT found: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Start server
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: Server failed to start")
		log.Printf("   Error: %v", err)
		log.Printf("   Port: %s", port)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal(err)
	}
}
