package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/ledger"
	"github.com/example/autolink/internal/middleware"
	"github.com/example/autolink/internal/models"
)

// ProfileHandler serves the authenticated user's dashboard data.
type ProfileHandler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB, l *ledger.Ledger) *ProfileHandler {
	return &ProfileHandler{db: db, ledger: l}
}

// GetProfile returns the user, their attendance record and their open
// invites (PENDING invites on still-active events).
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	stats, err := h.ledger.UserStats(userID)
	if err != nil {
		return err
	}

	var pending []models.EventInvite
	if err := h.db.
		Joins("JOIN events ON events.id = event_invites.event_id AND events.status = ?", models.EventActive).
		Where("event_invites.invited_user_id = ? AND event_invites.payment_status = ?", userID, models.PaymentPending).
		Find(&pending).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user":            user,
			"stats":           stats,
			"pending_invites": pending,
		},
	})
}

type updateProfileRequest struct {
	FullName      string `json:"full_name"`
	Hcode         string `json:"hcode"`
	ProfilePicURL string `json:"profile_pic_url"`
}

// UpdateProfile changes the user's display fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]any{}
	if req.FullName != "" {
		updates["full_name"] = req.FullName
	}
	if req.Hcode != "" {
		updates["hcode"] = req.Hcode
	}
	if req.ProfilePicURL != "" {
		updates["profile_pic_url"] = req.ProfilePicURL
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := h.db.Model(&models.User{}).Where("id = ?", userID).
		Updates(updates).Error; err != nil {
		return err
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}
