package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/ledger"
	"github.com/example/autolink/internal/middleware"
	"github.com/example/autolink/internal/models"
	"github.com/example/autolink/internal/utils"
)

// GroupHandler manages group and membership endpoints.
type GroupHandler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(db *gorm.DB, l *ledger.Ledger) *GroupHandler {
	return &GroupHandler{db: db, ledger: l}
}

type createGroupRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=3,alphanum"`
	Hcode    string `json:"hcode"`
}

// CreateGroup creates a group with the caller enrolled as admin.
func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	group, err := h.ledger.CreateGroup(userID, req.Name, req.Username, req.Hcode)
	if err != nil {
		return mapLedgerError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"data":      group,
		"join_link": h.ledger.JoinLink(group.Username),
	})
}

// JoinGroup enrolls the caller into the group behind the handle.
// Joining twice is a no-op that still returns the group.
func (h *GroupHandler) JoinGroup(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	group, err := h.ledger.JoinGroup(userID, c.Params("handle"))
	if err != nil {
		return mapLedgerError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": group})
}

// PreviewGroup is the public endpoint behind join deep links: it resolves
// a handle to the group's display facts without requiring a session.
func (h *GroupHandler) PreviewGroup(c *fiber.Ctx) error {
	var group models.Group
	if err := h.db.Where("username = ?", c.Params("handle")).First(&group).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "group not found")
		}
		return err
	}

	var memberCount int64
	if err := h.db.Model(&models.GroupMember{}).
		Where("group_id = ?", group.ID).
		Count(&memberCount).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"name":         group.Name,
			"username":     group.Username,
			"unique_id":    group.UniqueID,
			"hcode":        group.Hcode,
			"member_count": memberCount,
		},
	})
}

type memberView struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// GetGroup returns the group with its members and event history. Only
// members may view it.
func (h *GroupHandler) GetGroup(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var group models.Group
	if err := h.db.First(&group, "id = ?", groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "group not found")
		}
		return err
	}

	isMember, err := h.ledger.IsMember(groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return fiber.NewError(fiber.StatusForbidden, "not a member of this group")
	}

	var memberships []models.GroupMember
	if err := h.db.Where("group_id = ?", groupID).
		Order("joined_at asc").
		Find(&memberships).Error; err != nil {
		return err
	}

	userIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		userIDs = append(userIDs, m.UserID)
	}
	var users []models.User
	if err := h.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return err
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]memberView, 0, len(memberships))
	for _, m := range memberships {
		u := byID[m.UserID]
		members = append(members, memberView{
			UserID:   m.UserID.String(),
			FullName: u.FullName,
			Username: u.Username,
			Role:     m.Role,
		})
	}

	var active, closed []models.Event
	if err := h.db.Where("group_id = ? AND status = ?", groupID, models.EventActive).
		Order("created_at desc").Find(&active).Error; err != nil {
		return err
	}
	if err := h.db.Where("group_id = ? AND status = ?", groupID, models.EventClosed).
		Order("end_time desc").Find(&closed).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"group":         group,
			"members":       members,
			"active_events": active,
			"closed_events": closed,
			"join_link":     h.ledger.JoinLink(group.Username),
		},
	})
}

// ListMyGroups returns the groups the caller belongs to.
func (h *GroupHandler) ListMyGroups(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var memberships []models.GroupMember
	if err := h.db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return err
	}

	groupIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		groupIDs = append(groupIDs, m.GroupID)
	}

	var groups []models.Group
	if len(groupIDs) > 0 {
		if err := h.db.Where("id IN ?", groupIDs).
			Order("created_at desc").
			Find(&groups).Error; err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": groups})
}
