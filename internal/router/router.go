// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/inkmarket/commission-backend/internal/config"
	"github.com/inkmarket/commission-backend/internal/handlers"
	"github.com/inkmarket/commission-backend/internal/middleware"
	"github.com/inkmarket/commission-backend/internal/services"
	"github.com/inkmarket/commission-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("Storage service unavailable, file uploads disabled")
	}

	authService := services.NewAuthService(db, cfg)
	userService := services.NewUserService(db, storageService)
	listingService := services.NewListingService(db)
	proposalService := services.NewProposalService(db, cfg, notificationService)
	contractService := services.NewContractService(db, cfg, notificationService)
	paymentService := services.NewPaymentService(db, cfg, proposalService, contractService, notificationService)
	ticketService := services.NewTicketService(db, cfg, contractService, notificationService)
	resolutionService := services.NewResolutionService(db, ticketService, contractService, notificationService)
	adminService := services.NewAdminService(db, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	listingHandler := handlers.NewListingHandler(listingService)
	proposalHandler := handlers.NewProposalHandler(proposalService)
	contractHandler := handlers.NewContractHandler(contractService, storageService)
	ticketHandler := handlers.NewTicketHandler(ticketService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(adminService, resolutionService, paymentService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/verify-email/:token", authHandler.VerifyEmail)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// User routes
		users := v1.Group("/users")
		{
			users.GET("/:id", userHandler.GetPublicProfile)

			protected := users.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.GET("/me", userHandler.GetMe)
				protected.PUT("/profile", userHandler.UpdateProfile)
				protected.POST("/upload-avatar", middleware.UploadRateLimit(), userHandler.UploadAvatar)
				protected.DELETE("/account", userHandler.DeleteAccount)
			}
		}

		// Listing routes
		listings := v1.Group("/listings")
		{
			listings.GET("", middleware.OptionalAuth(), listingHandler.SearchListings)
			listings.GET("/:id", middleware.OptionalAuth(), listingHandler.GetListing)

			protected := listings.Group("")
			protected.Use(middleware.AuthRequired(), middleware.ArtistRequired())
			{
				protected.POST("", listingHandler.CreateListing)
				protected.PUT("/:id", listingHandler.UpdateListing)
			}
		}

		// Proposal routes
		proposals := v1.Group("/proposals")
		proposals.Use(middleware.AuthRequired())
		{
			proposals.GET("", proposalHandler.ListProposals)
			proposals.GET("/:id", proposalHandler.GetProposal)
			proposals.POST("", middleware.ClientRequired(), proposalHandler.CreateProposal)
			proposals.POST("/:id/artist-response", middleware.ArtistRequired(), proposalHandler.ArtistRespond)
			proposals.POST("/:id/client-response", middleware.ClientRequired(), proposalHandler.ClientRespond)
			proposals.POST("/:id/cancel", middleware.ClientRequired(), proposalHandler.CancelProposal)
		}

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired())
		{
			payments.POST("/intent", middleware.ClientRequired(), paymentHandler.CreatePaymentIntent)
			payments.POST("/confirm", middleware.ClientRequired(), paymentHandler.ConfirmPayment)
			payments.GET("/history", paymentHandler.GetPaymentHistory)
		}

		// Contract routes
		contracts := v1.Group("/contracts")
		contracts.Use(middleware.AuthRequired())
		{
			contracts.GET("", contractHandler.ListContracts)
			contracts.GET("/:id", contractHandler.GetContract)
			contracts.POST("/:id/uploads", middleware.ArtistRequired(), middleware.UploadRateLimit(), contractHandler.SubmitUpload)

			contracts.POST("/:id/tickets", ticketHandler.OpenTicket)
			contracts.GET("/:id/tickets", ticketHandler.ListTickets)
		}

		// Upload routes; downloads are open to both parties, reviews to clients
		uploads := v1.Group("/uploads")
		uploads.Use(middleware.AuthRequired())
		{
			uploads.GET("/:id/download", contractHandler.DownloadUpload)
			uploads.POST("/:id/accept", middleware.ClientRequired(), contractHandler.AcceptUpload)
			uploads.POST("/:id/reject", middleware.ClientRequired(), contractHandler.RejectUpload)
		}

		// Ticket routes
		tickets := v1.Group("/tickets")
		tickets.Use(middleware.AuthRequired())
		{
			tickets.GET("/:id", ticketHandler.GetTicket)
			tickets.POST("/:id/counter", ticketHandler.SubmitCounter)
			tickets.POST("/:id/accept", ticketHandler.AcceptTicket)
			tickets.POST("/:id/escalate", ticketHandler.Escalate)
			tickets.POST("/:id/cancel", ticketHandler.CancelTicket)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)

			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.PUT("/:id/status", adminHandler.UpdateUserStatus)
			}

			adminContracts := admin.Group("/contracts")
			{
				adminContracts.GET("", adminHandler.GetContracts)
				adminContracts.GET("/:id/settlement", adminHandler.GetSettlement)
				adminContracts.POST("/:id/refund", adminHandler.ProcessRefund)
			}

			adminPayments := admin.Group("/payments")
			{
				adminPayments.GET("", adminHandler.GetPayments)
			}

			adminResolutions := admin.Group("/resolutions")
			{
				adminResolutions.GET("", adminHandler.ListResolutions)
				adminResolutions.POST("/:id/resolve", adminHandler.ResolveTicket)
			}

			admin.GET("/analytics", adminHandler.GetAnalytics)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads-local", "./uploads")
	}

	return r
}
