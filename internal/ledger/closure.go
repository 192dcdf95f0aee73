package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/metrics"
	"github.com/example/autolink/internal/models"
)

// CloseEvent finalizes an active event: it stamps the end time, computes
// the duration in whole minutes (clamped to zero for early closures),
// derives AllPresent and freezes the submitted report. Only the event's
// creator may close it, and an event closes exactly once.
//
// After the closure commits, absentees and registered AOP guests are
// emailed best-effort: each recipient is attempted independently and a
// delivery failure never affects the closed event.
func (l *Ledger) CloseEvent(eventID, initiatorID uuid.UUID, report *models.EventReport) (*models.Event, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: report is required", ErrValidation)
	}
	for item, count := range report.GoodsCounts {
		if count < 0 {
			return nil, fmt.Errorf("%w: negative count for %q", ErrValidation, item)
		}
	}
	for _, aop := range report.AOPs {
		if aop.Name == "" || !strings.Contains(aop.Email, "@") {
			return nil, fmt.Errorf("%w: AOP entries need a name and a valid email", ErrValidation)
		}
	}

	var (
		event  models.Event
		group  models.Group
		absent []models.User
	)
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if event.CreatedBy != initiatorID {
			return ErrForbidden
		}
		if event.Status == models.EventClosed {
			return ErrAlreadyClosed
		}
		if err := tx.First(&group, "id = ?", event.GroupID).Error; err != nil {
			return err
		}

		var paid []models.EventInvite
		if err := tx.Where("event_id = ? AND payment_status = ?", eventID, models.PaymentPaid).
			Find(&paid).Error; err != nil {
			return err
		}
		paidUsers := make(map[string]bool, len(paid))
		for _, inv := range paid {
			paidUsers[inv.InvitedUserID.String()] = true
		}
		for _, uid := range report.AbsentUserIDs {
			if !paidUsers[uid] {
				return fmt.Errorf("%w: user %s has no paid invite and cannot be marked absent", ErrValidation, uid)
			}
		}

		report.AllPresent = len(report.AbsentUserIDs) == 0

		now := time.Now()
		duration := int(now.Sub(event.MeetingDateTime).Minutes())
		if duration < 0 {
			duration = 0
		}

		event.Status = models.EventClosed
		event.EndTime = &now
		event.DurationMinutes = &duration
		if err := event.SetReport(report); err != nil {
			return err
		}

		res := tx.Model(&models.Event{}).
			Where("id = ? AND status = ?", eventID, models.EventActive).
			Updates(map[string]any{
				"status":           models.EventClosed,
				"end_time":         event.EndTime,
				"duration_minutes": duration,
				"report_json":      event.ReportJSON,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClosed
		}

		if len(report.AbsentUserIDs) > 0 {
			return tx.Where("id IN ?", report.AbsentUserIDs).Find(&absent).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tally := formatGoodsTally(report.GoodsCounts)
	for _, u := range absent {
		l.notify(
			u.Email,
			"You missed the spot!",
			fmt.Sprintf("Hello %s, you missed the %s meeting today. We missed you! Duration: %d mins. Goods missed: %s.",
				u.FullName, event.Title, *event.DurationMinutes, tally),
		)
	}
	for _, aop := range report.AOPs {
		l.notify(
			aop.Email,
			"You were invited as an AOP!",
			fmt.Sprintf("Hello %s, you were tagged as a partner (AOP) at the %s meeting. Join Auto-Link to be part of the community and join group @%s using this link: %s",
				aop.Name, event.Title, group.Username, l.JoinLink(group.Username)),
		)
	}

	metrics.EventsClosed.Inc()
	return &event, nil
}

func formatGoodsTally(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	items := make([]string, 0, len(counts))
	for item := range counts {
		items = append(items, item)
	}
	sort.Strings(items)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", item, counts[item]))
	}
	return strings.Join(parts, ", ")
}
