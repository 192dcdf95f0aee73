package models

import "github.com/google/uuid"

// EmailMessage is an append-only outbox record of an outgoing email.
// Rows are written before any delivery attempt and never mutated apart
// from the recipient-facing Read flag.
type EmailMessage struct {
	BaseModel
	To      string `gorm:"column:recipient;index" json:"to"`
	Subject string `json:"subject"`
	Body    string `gorm:"type:text" json:"body"`
	Read    bool   `json:"read"`
}

// SMSLog records one bulk SMS send. TotalSent is a snapshot of the
// paid-invite count at send time, not a live figure.
type SMSLog struct {
	BaseModel
	EventID   uuid.UUID `gorm:"type:uuid;index" json:"event_id"`
	SentBy    uuid.UUID `gorm:"type:uuid" json:"sent_by"`
	Message   string    `gorm:"type:text" json:"message"`
	TotalSent int       `json:"total_sent"`
}
