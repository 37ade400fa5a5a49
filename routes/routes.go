package routes

import (
	"pkm-review-api/controllers"
	"pkm-review-api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "PKM Review API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Common endpoints (all authenticated users)
			protected.GET("/phase", controllers.GetPhase)

			proposals := protected.Group("/proposals")
			{
				proposals.GET("/:id", controllers.GetProposal)
				proposals.GET("/:id/history", middleware.RequireRole(middleware.RoleReviewer, middleware.RoleAdmin), controllers.GetProposalHistory)

				// Only students can move their team's proposal
				proposals.POST("/:id/submit", middleware.RequireRole(middleware.RoleStudent), controllers.SubmitProposal)
				proposals.POST("/:id/revision", middleware.RequireRole(middleware.RoleStudent), controllers.SubmitProposalRevision)
			}

			reviewer := protected.Group("/reviewer")
			{
				reviewer.GET("/assignments", middleware.RequireRole(middleware.RoleReviewer), controllers.GetMyAssignments)
				reviewer.PUT("/assignments/:id/administrative", middleware.RequireRole(middleware.RoleReviewer), controllers.SaveAdministrativeAssessment)
				reviewer.PUT("/assignments/:id/substantive", middleware.RequireRole(middleware.RoleReviewer), controllers.SaveSubstantiveAssessment)
				reviewer.GET("/assignments/:id/summary", middleware.RequireRole(middleware.RoleReviewer, middleware.RoleAdmin), controllers.GetAssessmentSummary)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(middleware.RoleAdmin))
			{
				admin.PUT("/phase/toggles/:key", controllers.SetPhaseToggle)
				admin.GET("/phase/audit", controllers.GetPhaseAudit)

				admin.GET("/proposals/summary", controllers.GetProposalStatusSummary)
				admin.POST("/proposals/:id/finalize/preview", controllers.PreviewFinalize)
				admin.POST("/proposals/:id/assignments", controllers.AssignReviewer)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "route not found", "code": "not_found"})
	})
}
