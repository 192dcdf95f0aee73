// Package ledger implements the event lifecycle and payment ledger engine:
// group membership, invite/payment state transitions, bulk notification and
// one-time event closure with its frozen report.
//
// Every mutating operation runs inside a single database transaction. The two
// transitions that can race (recording a payment, closing an event) are
// implemented as conditional updates checked through RowsAffected, so an
// invite is paid at most once and an event closes at most once.
package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notifier is the outbound notification port. Implementations append an
// outbox record and may attempt real delivery; the ledger never blocks on
// or inspects delivery outcome beyond logging.
type Notifier interface {
	Send(to, subject, body string) error
}

// SMSSender delivers a bulk text message to a set of phone numbers.
type SMSSender interface {
	SendBulk(phones []string, message string) error
}

// Ledger bundles the persistent store and outbound ports.
type Ledger struct {
	db            *gorm.DB
	mailer        Notifier
	sms           SMSSender
	log           *logrus.Logger
	publicBaseURL string
}

// New constructs a Ledger. mailer and sms may be nil, in which case the
// corresponding side effects are skipped.
func New(db *gorm.DB, mailer Notifier, sms SMSSender, log *logrus.Logger, publicBaseURL string) *Ledger {
	if log == nil {
		log = logrus.New()
	}
	return &Ledger{db: db, mailer: mailer, sms: sms, log: log, publicBaseURL: publicBaseURL}
}

// JoinLink builds the public deep link that resolves to a group's
// preview-then-join flow.
func (l *Ledger) JoinLink(groupHandle string) string {
	return fmt.Sprintf("%s/#/join/@%s", l.publicBaseURL, groupHandle)
}

func (l *Ledger) notify(to, subject, body string) {
	if l.mailer == nil || to == "" {
		return
	}
	if err := l.mailer.Send(to, subject, body); err != nil {
		l.log.WithError(err).WithField("to", to).Warn("notification send failed")
	}
}

// randomDigits returns a zero-padded numeric string of the given width,
// e.g. a 6-digit verification code.
func randomDigits(width int) (string, error) {
	bound := big.NewInt(1)
	for i := 0; i < width; i++ {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", width, n.Int64()), nil
}

func nowPtr() *time.Time {
	now := time.Now()
	return &now
}
