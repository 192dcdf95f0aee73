package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/metrics"
	"github.com/example/autolink/internal/models"
)

// CreateEvent opens a meetup event in the group and creates exactly one
// PENDING invite per invited user. Each invited user that exists in the
// store is emailed an invitation notice after the transaction commits.
func (l *Ledger) CreateEvent(creatorID, groupID uuid.UUID, invitedUserIDs []uuid.UUID, amount float64, hcode, title string, meetingAt time.Time) (*models.Event, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount per member must be positive", ErrValidation)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	var (
		event    models.Event
		group    models.Group
		invitees []models.User
	)
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var membership int64
		if err := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, creatorID).
			Count(&membership).Error; err != nil {
			return err
		}
		if membership == 0 {
			return ErrForbidden
		}

		event = models.Event{
			GroupID:         groupID,
			CreatedBy:       creatorID,
			Title:           title,
			MeetingHcode:    hcode,
			MeetingDateTime: meetingAt,
			AmountPerMember: amount,
			Status:          models.EventActive,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		// Exactly one invite per (event, user): a repeated id in the
		// request collapses into a single PENDING invite.
		seen := make(map[uuid.UUID]bool, len(invitedUserIDs))
		for _, uid := range invitedUserIDs {
			if seen[uid] {
				continue
			}
			seen[uid] = true

			var invitee models.User
			known := true
			if err := tx.First(&invitee, "id = ?", uid).Error; err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				known = false
			}

			invite := models.EventInvite{
				EventID:       event.ID,
				InvitedUserID: uid,
				PaymentStatus: models.PaymentPending,
				PaidAmount:    0,
				EmailSent:     known,
				SMSSent:       false,
			}
			if err := tx.Create(&invite).Error; err != nil {
				return err
			}
			if known {
				invitees = append(invitees, invitee)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, u := range invitees {
		l.notify(
			u.Email,
			fmt.Sprintf("New Meetup Invite: %s", title),
			fmt.Sprintf("You have been invited to %s by the %s group. Amount: KES %.0f. Location: %s. Time: %s.",
				title, group.Name, amount, hcode, meetingAt.Format("Mon, 02 Jan 2006 15:04")),
		)
	}

	metrics.EventsCreated.Inc()
	return &event, nil
}

// RecordPayment transitions a PENDING invite to PAID, stamping the paid
// amount with the event's configured contribution and the payment time.
// Paying an invite that already left PENDING is rejected with
// ErrAlreadyPaid; the conditional update guarantees a paid amount is
// never overwritten even under concurrent calls.
func (l *Ledger) RecordPayment(inviteID uuid.UUID) (*models.EventInvite, error) {
	var invite models.EventInvite
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&invite, "id = ?", inviteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if invite.PaymentStatus != models.PaymentPending {
			return ErrAlreadyPaid
		}

		var event models.Event
		if err := tx.First(&event, "id = ?", invite.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		paidAt := nowPtr()
		res := tx.Model(&models.EventInvite{}).
			Where("id = ? AND payment_status = ?", inviteID, models.PaymentPending).
			Updates(map[string]any{
				"payment_status": models.PaymentPaid,
				"paid_amount":    event.AmountPerMember,
				"paid_at":        paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPaid
		}

		invite.PaymentStatus = models.PaymentPaid
		invite.PaidAmount = event.AmountPerMember
		invite.PaidAt = paidAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsRecorded.Inc()
	return &invite, nil
}

// SendBulkSMS texts every currently-paid invitee of the event, marks those
// invites notified, and appends an SMSLog carrying the message and a
// snapshot of the recipient count. Fails with ErrNoRecipients when no
// invite is PAID at call time.
func (l *Ledger) SendBulkSMS(eventID, senderID uuid.UUID, message string) (*models.SMSLog, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}

	var (
		smsLog models.SMSLog
		phones []string
	)
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Event{}, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var paid []models.EventInvite
		if err := tx.Where("event_id = ? AND payment_status = ?", eventID, models.PaymentPaid).
			Find(&paid).Error; err != nil {
			return err
		}
		if len(paid) == 0 {
			return ErrNoRecipients
		}

		ids := make([]uuid.UUID, 0, len(paid))
		userIDs := make([]uuid.UUID, 0, len(paid))
		for _, inv := range paid {
			ids = append(ids, inv.ID)
			userIDs = append(userIDs, inv.InvitedUserID)
		}
		if err := tx.Model(&models.EventInvite{}).
			Where("id IN ?", ids).
			Update("sms_sent", true).Error; err != nil {
			return err
		}

		var recipients []models.User
		if err := tx.Where("id IN ?", userIDs).Find(&recipients).Error; err != nil {
			return err
		}
		for _, u := range recipients {
			if u.Phone != "" {
				phones = append(phones, u.Phone)
			}
		}

		smsLog = models.SMSLog{
			EventID:   eventID,
			SentBy:    senderID,
			Message:   message,
			TotalSent: len(paid),
		}
		return tx.Create(&smsLog).Error
	})
	if err != nil {
		return nil, err
	}

	if l.sms != nil && len(phones) > 0 {
		if err := l.sms.SendBulk(phones, message); err != nil {
			l.log.WithError(err).WithField("event_id", eventID).Warn("bulk SMS delivery failed")
		}
	}

	metrics.SMSSent.Add(float64(smsLog.TotalSent))
	return &smsLog, nil
}
