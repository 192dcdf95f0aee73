package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/config"
	"github.com/example/autolink/internal/ledger"
	"github.com/example/autolink/internal/metrics"
	"github.com/example/autolink/internal/models"
	"github.com/example/autolink/internal/utils"
)

// AuthHandler bundles dependencies for account endpoints.
type AuthHandler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	cfg    *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, l *ledger.Ledger, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, ledger: l, cfg: cfg}
}

type registerRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,kephone"`
	Hcode    string `json:"hcode"`
	Password string `json:"password" validate:"required,min=6"`
}

// Register creates a new unverified account and emails its one-time code.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user, err := h.ledger.RegisterUser(ledger.RegisterInput{
		FullName:     req.FullName,
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		Hcode:        req.Hcode,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return mapLedgerError(err)
	}
	metrics.UsersRegistered.Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

type verifyRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Code   string `json:"code" validate:"required,len=6"`
}

// Verify activates an account by matching its one-time code.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	user, err := h.ledger.VerifyUser(userID, req.Code)
	if err != nil {
		return mapLedgerError(err)
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login authenticates an existing verified user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	// A phone can back one account per email provider, so several
	// candidates may share it; the password picks the right one.
	var candidates []models.User
	if err := h.db.Where("phone = ?", req.Phone).
		Order("created_at asc").
		Find(&candidates).Error; err != nil {
		return err
	}

	var user *models.User
	for i := range candidates {
		if utils.CheckPassword(candidates[i].PasswordHash, req.Password) {
			user = &candidates[i]
			break
		}
	}
	if user == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	if !user.IsVerified {
		return fiber.NewError(fiber.StatusForbidden, "account not verified")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}
