package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/ledger"
	"github.com/example/autolink/internal/middleware"
	"github.com/example/autolink/internal/models"
	"github.com/example/autolink/internal/utils"
)

// EventHandler manages the event lifecycle endpoints.
type EventHandler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(db *gorm.DB, l *ledger.Ledger) *EventHandler {
	return &EventHandler{db: db, ledger: l}
}

type createEventRequest struct {
	GroupID         string   `json:"group_id" validate:"required,uuid"`
	InvitedUserIDs  []string `json:"invited_user_ids" validate:"dive,uuid"`
	AmountPerMember float64  `json:"amount_per_member" validate:"required,gt=0"`
	MeetingHcode    string   `json:"meeting_hcode"`
	Title           string   `json:"title" validate:"required"`
	MeetingDateTime string   `json:"meeting_date_time" validate:"required"`
}

// CreateEvent opens a meetup event and invites the listed members.
func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid group id")
	}
	meetingAt, err := time.Parse(time.RFC3339, req.MeetingDateTime)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "meeting_date_time must be RFC 3339")
	}

	invited := make([]uuid.UUID, 0, len(req.InvitedUserIDs))
	for _, raw := range req.InvitedUserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid invited user id")
		}
		invited = append(invited, id)
	}

	event, err := h.ledger.CreateEvent(userID, groupID, invited, req.AmountPerMember, req.MeetingHcode, req.Title, meetingAt)
	if err != nil {
		return mapLedgerError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": event})
}

type inviteView struct {
	models.EventInvite
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

// GetEvent returns the event dashboard payload: the event, its invites
// annotated with member names, the derived statistics and, for a closed
// event, the frozen report.
func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	event, err := h.ledger.GetEvent(eventID)
	if err != nil {
		return mapLedgerError(err)
	}

	isMember, err := h.ledger.IsMember(event.GroupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return fiber.NewError(fiber.StatusForbidden, "not a member of this group")
	}

	invites, err := h.ledger.EventInvites(eventID)
	if err != nil {
		return err
	}

	userIDs := make([]uuid.UUID, 0, len(invites))
	for _, inv := range invites {
		userIDs = append(userIDs, inv.InvitedUserID)
	}
	var users []models.User
	if len(userIDs) > 0 {
		if err := h.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return err
		}
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]inviteView, 0, len(invites))
	for _, inv := range invites {
		u := byID[inv.InvitedUserID]
		views = append(views, inviteView{
			EventInvite: inv,
			FullName:    u.FullName,
			Username:    u.Username,
		})
	}

	report, err := event.Report()
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"event":   event,
			"invites": views,
			"stats":   ledger.ComputeEventStats(invites),
			"report":  report,
		},
	})
}

// RecordPayment marks the invite's contribution as paid.
func (h *EventHandler) RecordPayment(c *fiber.Ctx) error {
	if _, ok := middleware.GetCurrentUserID(c); !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	inviteID, err := uuid.Parse(c.Params("inviteId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid invite id")
	}

	invite, err := h.ledger.RecordPayment(inviteID)
	if err != nil {
		return mapLedgerError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": invite})
}

type bulkSMSRequest struct {
	Message string `json:"message" validate:"required"`
}

// SendBulkSMS texts every paid invitee of the event.
func (h *EventHandler) SendBulkSMS(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req bulkSMSRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	smsLog, err := h.ledger.SendBulkSMS(eventID, userID, req.Message)
	if err != nil {
		return mapLedgerError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": smsLog})
}

type closeEventRequest struct {
	AbsentUserIDs []string       `json:"absent_user_ids" validate:"dive,uuid"`
	GoodsCounts   map[string]int `json:"goods_counts"`
	AOPs          []models.AOP   `json:"aops"`
}

// CloseEvent finalizes the event with the staged closure report.
func (h *EventHandler) CloseEvent(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req closeEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	event, err := h.ledger.CloseEvent(eventID, userID, &models.EventReport{
		AbsentUserIDs: req.AbsentUserIDs,
		GoodsCounts:   req.GoodsCounts,
		AOPs:          req.AOPs,
	})
	if err != nil {
		return mapLedgerError(err)
	}

	report, err := event.Report()
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"event":  event,
			"report": report,
		},
	})
}
