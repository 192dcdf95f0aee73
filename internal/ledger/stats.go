package ledger

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/autolink/internal/models"
)

// EventStats are the derived per-event counters. They are recomputed from
// the invite rows on every read and never stored.
type EventStats struct {
	TotalInvited   int     `json:"total_invited"`
	Paid           int     `json:"paid"`
	Pending        int     `json:"pending"`
	Failed         int     `json:"failed"`
	TotalCollected float64 `json:"total_collected"`
}

// ComputeEventStats folds a slice of invites into its counters.
func ComputeEventStats(invites []models.EventInvite) EventStats {
	var s EventStats
	s.TotalInvited = len(invites)
	for _, inv := range invites {
		switch inv.PaymentStatus {
		case models.PaymentPaid:
			s.Paid++
		case models.PaymentPending:
			s.Pending++
		case models.PaymentFailed:
			s.Failed++
		}
		s.TotalCollected += inv.PaidAmount
	}
	return s
}

// EventStats loads the event's invites and computes its counters.
func (l *Ledger) EventStats(eventID uuid.UUID) (EventStats, error) {
	var invites []models.EventInvite
	if err := l.db.Where("event_id = ?", eventID).Find(&invites).Error; err != nil {
		return EventStats{}, err
	}
	return ComputeEventStats(invites), nil
}

// UserStats are the per-user attendance counters across all closed events.
type UserStats struct {
	Attended int `json:"attended"`
	Missed   int `json:"missed"`
}

// UserStats recomputes the user's attendance record. A closed event counts
// as attended when the user held a PAID invite and is not in the report's
// absentee set; it counts as missed when the user was paid-but-absent or
// stayed PENDING through closure.
func (l *Ledger) UserStats(userID uuid.UUID) (UserStats, error) {
	var invites []models.EventInvite
	if err := l.db.Where("invited_user_id = ?", userID).Find(&invites).Error; err != nil {
		return UserStats{}, err
	}
	if len(invites) == 0 {
		return UserStats{}, nil
	}

	byEvent := make(map[uuid.UUID]models.EventInvite, len(invites))
	eventIDs := make([]uuid.UUID, 0, len(invites))
	for _, inv := range invites {
		byEvent[inv.EventID] = inv
		eventIDs = append(eventIDs, inv.EventID)
	}

	var closed []models.Event
	if err := l.db.Where("id IN ? AND status = ?", eventIDs, models.EventClosed).
		Find(&closed).Error; err != nil {
		return UserStats{}, err
	}

	var stats UserStats
	uid := userID.String()
	for _, event := range closed {
		report, err := event.Report()
		if err != nil {
			return UserStats{}, err
		}
		absent := false
		if report != nil {
			for _, id := range report.AbsentUserIDs {
				if id == uid {
					absent = true
					break
				}
			}
		}

		switch byEvent[event.ID].PaymentStatus {
		case models.PaymentPaid:
			if absent {
				stats.Missed++
			} else {
				stats.Attended++
			}
		case models.PaymentPending:
			stats.Missed++
		}
	}
	return stats, nil
}

// GetEvent loads an event by id.
func (l *Ledger) GetEvent(eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := l.db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// EventInvites lists the invites of an event in insertion order.
func (l *Ledger) EventInvites(eventID uuid.UUID) ([]models.EventInvite, error) {
	var invites []models.EventInvite
	err := l.db.Where("event_id = ?", eventID).Order("created_at asc").Find(&invites).Error
	return invites, err
}
