// Package services holds the outbound delivery adapters behind the
// ledger's notification ports.
package services

import (
	"context"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/metrics"
	"github.com/example/autolink/internal/models"
)

// MailerService implements the notification port. Every send appends an
// append-only outbox row; when a Resend API key is configured the message
// is additionally handed to Resend. Delivery is fire-and-forget: a Resend
// failure is logged and the outbox record stands.
type MailerService struct {
	db     *gorm.DB
	client *resend.Client
	from   string
	log    *logrus.Logger
}

// NewMailerService constructs a MailerService. With an empty API key the
// service degrades to outbox-only.
func NewMailerService(db *gorm.DB, apiKey, from string, log *logrus.Logger) *MailerService {
	s := &MailerService{db: db, from: from, log: log}
	if apiKey != "" {
		s.client = resend.NewClient(apiKey)
	}
	return s
}

// Send records the message in the outbox and attempts delivery.
func (s *MailerService) Send(to, subject, body string) error {
	msg := models.EmailMessage{
		To:      to,
		Subject: subject,
		Body:    body,
		Read:    false,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return err
	}
	metrics.EmailsSent.Inc()

	if s.client == nil {
		s.log.WithFields(logrus.Fields{"to": to, "subject": subject}).
			Debug("mailer not configured, message kept in outbox only")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		s.log.WithError(err).WithField("to", to).Warn("resend delivery failed")
	}
	return nil
}

// Inbox returns a recipient's outbox rows, newest first.
func (s *MailerService) Inbox(to string, limit, offset int) ([]models.EmailMessage, int64, error) {
	query := s.db.Model(&models.EmailMessage{}).Where("recipient = ?", to)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.EmailMessage
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// MarkRead flags one of the recipient's messages as read.
func (s *MailerService) MarkRead(id, to string) error {
	res := s.db.Model(&models.EmailMessage{}).
		Where("id = ? AND recipient = ?", id, to).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
