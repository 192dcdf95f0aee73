// Package metrics exposes the application's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UsersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autolink_users_registered_total",
		Help: "Accounts created.",
	})
	EventsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autolink_events_created_total",
		Help: "Meetup events opened.",
	})
	EventsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autolink_events_closed_total",
		Help: "Meetup events finalized.",
	})
	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autolink_payments_recorded_total",
		Help: "Invite contributions marked paid.",
	})
	EmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autolink_emails_sent_total",
		Help: "Outbox email records written.",
	})
	SMSSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autolink_sms_sent_total",
		Help: "Bulk SMS recipients notified.",
	})
)

// Handler returns the scrape endpoint handler for the ops listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
