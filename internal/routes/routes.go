package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/config"
	"github.com/example/autolink/internal/handlers"
	"github.com/example/autolink/internal/ledger"
	"github.com/example/autolink/internal/middleware"
	"github.com/example/autolink/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, log *logrus.Logger) {
	mailer := services.NewMailerService(db, cfg.ResendAPIKey, cfg.MailFrom, log)
	sms := services.NewSMSService(cfg.SMSGatewayURL, cfg.SMSGatewayKey, log)
	l := ledger.New(db, mailer, sms, log, cfg.PublicBaseURL)

	authHandler := handlers.NewAuthHandler(db, l, cfg)
	groupHandler := handlers.NewGroupHandler(db, l)
	eventHandler := handlers.NewEventHandler(db, l)
	profileHandler := handlers.NewProfileHandler(db, l)
	inboxHandler := handlers.NewInboxHandler(db, mailer)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/verify", authHandler.Verify)
	auth.Post("/login", authHandler.Login)

	// Public join-link resolution
	api.Get("/groups/@:handle", groupHandler.PreviewGroup)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/groups", groupHandler.CreateGroup)
	protected.Get("/groups", groupHandler.ListMyGroups)
	protected.Get("/groups/:id", groupHandler.GetGroup)
	protected.Post("/groups/@:handle/join", groupHandler.JoinGroup)

	protected.Post("/events", eventHandler.CreateEvent)
	protected.Get("/events/:id", eventHandler.GetEvent)
	protected.Post("/events/:id/sms", eventHandler.SendBulkSMS)
	protected.Post("/events/:id/close", eventHandler.CloseEvent)
	protected.Post("/invites/:inviteId/pay", eventHandler.RecordPayment)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)

	protected.Get("/inbox", inboxHandler.ListMessages)
	protected.Post("/inbox/:id/read", inboxHandler.MarkRead)
}
