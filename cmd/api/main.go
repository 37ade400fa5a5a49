package main

import (
	"context"
	"log"
	"os"

	"pkm-review-api/config"
	"pkm-review-api/middleware"
	"pkm-review-api/routes"
	"pkm-review-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	settings := config.LoadSettings()

	logFile, logWriter := config.InitLogging(settings.LogDir)
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()

	if os.Getenv("AUTO_MIGRATE") == "true" {
		if err := services.Migrate(context.Background(), config.DB); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Printf("Database schema migrated")
	}

	// Set Gin mode
	if settings.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logWriter
	gin.DefaultErrorWriter = logWriter

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	router.Use(middleware.MetricsMiddleware())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Setup routes
	routes.SetupRoutes(router)

	if settings.JWTSecret == "" {
		log.Printf("Warning: JWT_SECRET is empty, every authenticated request will fail")
	}
	if settings.ReviewQuorum > 0 {
		log.Printf("Review quorum: %d complete assessments", settings.ReviewQuorum)
	} else {
		log.Printf("Review quorum: all assignments")
	}

	log.Printf("🚀 Server starting on port %s", settings.ServerPort)
	if settings.GinMode == "release" {
		log.Printf("🏭 Running in production mode")
	} else {
		log.Printf("🔧 Running in development mode")
	}

	if err := router.Run(":" + settings.ServerPort); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}
