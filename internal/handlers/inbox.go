package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/middleware"
	"github.com/example/autolink/internal/models"
	"github.com/example/autolink/internal/services"
	"github.com/example/autolink/internal/utils"
)

// InboxHandler exposes the user's notification outbox as an inbox view.
type InboxHandler struct {
	db     *gorm.DB
	mailer *services.MailerService
}

// NewInboxHandler constructs an InboxHandler.
func NewInboxHandler(db *gorm.DB, mailer *services.MailerService) *InboxHandler {
	return &InboxHandler{db: db, mailer: mailer}
}

// ListMessages returns the caller's messages, newest first.
func (h *InboxHandler) ListMessages(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	pg := utils.ParsePagination(c)
	messages, total, err := h.mailer.Inbox(user.Email, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    messages,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// MarkRead flags one of the caller's messages as read.
func (h *InboxHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	if err := h.mailer.MarkRead(c.Params("id"), user.Email); err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "message not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
