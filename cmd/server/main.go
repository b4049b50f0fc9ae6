package main

import (
	"net/http"

	"vibetravels/internal/api/handlers"
	"vibetravels/internal/app"
	"vibetravels/internal/auth"
	"vibetravels/internal/config"
	"vibetravels/internal/logger"
	"vibetravels/internal/repository/postgres"
	"vibetravels/internal/service/generation"
	"vibetravels/internal/service/limiter"
	"vibetravels/internal/service/llm"
	"vibetravels/internal/service/reaper"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := postgres.NewPostgresDB(appConfig.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	cfg := app.NewConfig(database, appConfig)

	aiClient, err := llm.NewAIClient(&appConfig.LLM, appConfig.Models)
	if err != nil {
		logger.Log.Fatalf("Failed to create AI client: %v", err)
	}

	limiterService := limiter.NewLimiterService(database, appConfig.Limits.MonthlyGenerations)
	generationService := generation.NewGenerationService(cfg, aiClient, limiterService)
	reaperService := reaper.NewReaperService(database, appConfig.Worker.JobTimeout, appConfig.Worker.ReaperBuffer)

	authService := auth.NewAuthService(database, appConfig.Auth)
	generationHandlers := handlers.NewGenerationHandlers(cfg, generationService, limiterService, reaperService)

	mux := http.NewServeMux()

	corsHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.WriteHeader(http.StatusOK)
	}

	// Public routes
	mux.HandleFunc("POST /api/login", enableCORS(authService.LoginHandler))
	mux.HandleFunc("OPTIONS /api/login", corsHandler)
	mux.HandleFunc("POST /api/register", enableCORS(authService.RegisterHandler))
	mux.HandleFunc("OPTIONS /api/register", corsHandler)
	mux.HandleFunc("GET /api/health", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	mux.HandleFunc("OPTIONS /api/health", corsHandler)

	// Protected routes
	mux.HandleFunc("POST /api/plans", enableCORS(authService.Middleware(generationHandlers.CreatePlanHandler)))
	mux.HandleFunc("OPTIONS /api/plans", corsHandler)
	mux.HandleFunc("GET /api/plans/{id}", enableCORS(authService.Middleware(generationHandlers.GetPlanHandler)))
	mux.HandleFunc("OPTIONS /api/plans/{id}", corsHandler)
	mux.HandleFunc("POST /api/plans/{id}/generate", enableCORS(authService.Middleware(generationHandlers.GenerateHandler)))
	mux.HandleFunc("OPTIONS /api/plans/{id}/generate", corsHandler)
	mux.HandleFunc("GET /api/plans/{id}/generation", enableCORS(authService.Middleware(generationHandlers.AttemptStatusHandler)))
	mux.HandleFunc("OPTIONS /api/plans/{id}/generation", corsHandler)
	mux.HandleFunc("GET /api/preferences", enableCORS(authService.Middleware(generationHandlers.GetPreferencesHandler)))
	mux.HandleFunc("PUT /api/preferences", enableCORS(authService.Middleware(generationHandlers.UpdatePreferencesHandler)))
	mux.HandleFunc("OPTIONS /api/preferences", corsHandler)
	mux.HandleFunc("GET /api/limits", enableCORS(authService.Middleware(generationHandlers.LimitInfoHandler)))
	mux.HandleFunc("OPTIONS /api/limits", corsHandler)

	// Admin routes
	mux.HandleFunc("POST /api/admin/generations/cleanup", enableCORS(authService.Middleware(generationHandlers.CleanupHandler)))
	mux.HandleFunc("OPTIONS /api/admin/generations/cleanup", corsHandler)
	mux.HandleFunc("POST /api/admin/limits/reset", enableCORS(authService.Middleware(generationHandlers.ResetLimitsHandler)))
	mux.HandleFunc("OPTIONS /api/admin/limits/reset", corsHandler)

	logger.Log.WithField("port", appConfig.Server.Port).Info("Server starting")

	if err := http.ListenAndServe(":"+appConfig.Server.Port, mux); err != nil {
		logger.Log.Fatalf("Server failed to start: %v", err)
	}
}
