package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks an invite's contribution state.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// EventStatus is the event lifecycle state.
type EventStatus string

const (
	EventActive EventStatus = "active"
	EventClosed EventStatus = "closed"
)

// Event is a paid meetup organized within a group.
// Once Status is closed the row is terminal: EndTime, DurationMinutes and
// ReportJSON are set exactly once and never change afterwards.
type Event struct {
	BaseModel
	GroupID         uuid.UUID   `gorm:"type:uuid;index" json:"group_id"`
	CreatedBy       uuid.UUID   `gorm:"type:uuid;index" json:"created_by"`
	Title           string      `json:"title"`
	MeetingHcode    string      `json:"meeting_hcode"`
	MeetingDateTime time.Time   `json:"meeting_date_time"`
	AmountPerMember float64     `json:"amount_per_member"`
	Status          EventStatus `json:"status"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	DurationMinutes *int        `json:"duration_minutes,omitempty"`
	ReportJSON      []byte      `gorm:"type:jsonb" json:"-"`
}

// EventReport freezes attendance and consumption facts at closure.
type EventReport struct {
	AllPresent    bool           `json:"all_present"`
	AbsentUserIDs []string       `json:"absent_user_ids"`
	GoodsCounts   map[string]int `json:"goods_counts"`
	AOPs          []AOP          `json:"aops"`
}

// AOP (any-other-partner) is a walk-in guest recorded at closure.
type AOP struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Report decodes the attached closure report, or returns nil for an
// event that is still active.
func (e *Event) Report() (*EventReport, error) {
	if len(e.ReportJSON) == 0 {
		return nil, nil
	}
	var r EventReport
	if err := json.Unmarshal(e.ReportJSON, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SetReport encodes the closure report onto the event.
func (e *Event) SetReport(r *EventReport) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	e.ReportJSON = raw
	return nil
}

// EventInvite is the per-user payment record for an event.
// Exactly one invite exists per (event, user); PaymentStatus only ever
// moves PENDING -> PAID (FAILED is a terminal state reserved for
// gateway callbacks).
type EventInvite struct {
	BaseModel
	EventID       uuid.UUID     `gorm:"type:uuid;index;uniqueIndex:idx_event_invitee" json:"event_id"`
	InvitedUserID uuid.UUID     `gorm:"type:uuid;index;uniqueIndex:idx_event_invitee" json:"invited_user_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaidAmount    float64       `json:"paid_amount"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	EmailSent     bool          `json:"email_sent"`
	SMSSent       bool          `json:"sms_sent"`
}
