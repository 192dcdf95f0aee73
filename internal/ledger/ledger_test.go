package ledger

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/autolink/internal/database"
	"github.com/example/autolink/internal/models"
)

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	sent []sentEmail
}

func (f *fakeMailer) Send(to, subject, body string) error {
	f.sent = append(f.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

type fakeSMS struct {
	batches [][]string
}

func (f *fakeSMS) SendBulk(phones []string, message string) error {
	f.batches = append(f.batches, phones)
	return nil
}

func newTestLedger(t *testing.T) (*Ledger, *fakeMailer, *fakeSMS, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mailer := &fakeMailer{}
	sms := &fakeSMS{}
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return New(db, mailer, sms, log, "https://app.autolink.test"), mailer, sms, db
}

func registerVerified(t *testing.T, l *Ledger, name, username, email, phone string) *models.User {
	t.Helper()

	user, err := l.RegisterUser(RegisterInput{
		FullName: name,
		Username: username,
		Email:    email,
		Phone:    phone,
		Hcode:    "HC-01",
	})
	require.NoError(t, err)

	verified, err := l.VerifyUser(user.ID, user.VerificationCode)
	require.NoError(t, err)
	return verified
}

func TestRegisterAndVerify(t *testing.T) {
	l, mailer, _, _ := newTestLedger(t)

	user, err := l.RegisterUser(RegisterInput{
		FullName: "Alice Wanjiku",
		Username: "alice",
		Email:    "alice@gmail.com",
		Phone:    "0712345678",
	})
	require.NoError(t, err)

	assert.False(t, user.IsVerified)
	assert.Len(t, user.VerificationCode, 6)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@gmail.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, user.VerificationCode)

	_, err = l.VerifyUser(user.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = l.VerifyUser(uuid.New(), user.VerificationCode)
	assert.ErrorIs(t, err, ErrNotFound)

	verified, err := l.VerifyUser(user.ID, user.VerificationCode)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Empty(t, verified.VerificationCode)
}

func TestVerifyRejectsSecondAttempt(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	user, err := l.RegisterUser(RegisterInput{
		FullName: "Alice Wanjiku",
		Username: "alice",
		Email:    "alice@gmail.com",
		Phone:    "0712345678",
	})
	require.NoError(t, err)
	code := user.VerificationCode

	_, err = l.VerifyUser(user.ID, code)
	require.NoError(t, err)

	// The code redeemed once; no later call succeeds, with any input.
	_, err = l.VerifyUser(user.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = l.VerifyUser(user.ID, code)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = l.VerifyUser(user.ID, "")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	_, err := l.RegisterUser(RegisterInput{Username: "alice"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	registerVerified(t, l, "Alice", "alice", "alice@gmail.com", "0712345678")

	// Same phone, same provider domain: rejected.
	_, err := l.RegisterUser(RegisterInput{
		FullName: "Alice Two",
		Username: "alice2",
		Email:    "alice.two@gmail.com",
		Phone:    "0712345678",
	})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	// Same phone on a different provider is allowed.
	_, err = l.RegisterUser(RegisterInput{
		FullName: "Alice Work",
		Username: "alicework",
		Email:    "alice@example.co.ke",
		Phone:    "0712345678",
	})
	assert.NoError(t, err)
}

func TestDuplicateCheckIgnoresUnverifiedAccounts(t *testing.T) {
	l, _, _, _ := newTestLedger(t)

	// Unverified account on the same phone+provider does not block.
	_, err := l.RegisterUser(RegisterInput{
		FullName: "Ghost",
		Username: "ghost",
		Email:    "ghost@gmail.com",
		Phone:    "0712345678",
	})
	require.NoError(t, err)

	_, err = l.RegisterUser(RegisterInput{
		FullName: "Alice",
		Username: "alice",
		Email:    "alice@gmail.com",
		Phone:    "0712345678",
	})
	assert.NoError(t, err)
}

func TestCreateGroupEnrollsCreatorAsAdmin(t *testing.T) {
	l, _, _, db := newTestLedger(t)

	alice := registerVerified(t, l, "Alice", "alice", "alice@gmail.com", "0712345678")

	group, err := l.CreateGroup(alice.ID, "Nairobi Riders", "nairobiriders", "HC-NBO")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(group.UniqueID, "AL-"))
	assert.Len(t, group.UniqueID, 7)

	var members []models.GroupMember
	require.NoError(t, db.Where("group_id = ?", group.ID).Find(&members).Error)
	require.Len(t, members, 1)
	assert.Equal(t, alice.ID, members[0].UserID)
	assert.Equal(t, models.RoleAdmin, members[0].Role)

	_, err = l.CreateGroup(alice.ID, "Other", "nairobiriders", "HC-NBO")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoinGroupIsIdempotent(t *testing.T) {
	l, _, _, db := newTestLedger(t)

	alice := registerVerified(t, l, "Alice", "alice", "alice@gmail.com", "0712345678")
	bob := registerVerified(t, l, "Bob", "bob", "bob@gmail.com", "0722345678")

	group, err := l.CreateGroup(alice.ID, "Nairobi Riders", "nairobiriders", "HC-NBO")
	require.NoError(t, err)

	_, err = l.JoinGroup(bob.ID, "nosuchgroup")
	assert.ErrorIs(t, err, ErrNotFound)

	joined, err := l.JoinGroup(bob.ID, "nairobiriders")
	require.NoError(t, err)
	assert.Equal(t, group.ID, joined.ID)

	// Joining again is a no-op.
	_, err = l.JoinGroup(bob.ID, "nairobiriders")
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var membership models.GroupMember
	require.NoError(t, db.Where("group_id = ? AND user_id = ?", group.ID, bob.ID).
		First(&membership).Error)
	assert.Equal(t, models.RoleMember, membership.Role)
}

type fixture struct {
	ledger *Ledger
	mailer *fakeMailer
	sms    *fakeSMS
	db     *gorm.DB
	alice  *models.User // group creator
	bob    *models.User
	carol  *models.User
	group  *models.Group
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l, mailer, sms, db := newTestLedger(t)
	f := &fixture{ledger: l, mailer: mailer, sms: sms, db: db}

	f.alice = registerVerified(t, l, "Alice Wanjiku", "alice", "alice@gmail.com", "0712345678")
	f.bob = registerVerified(t, l, "Bob Otieno", "bob", "bob@gmail.com", "0722345678")
	f.carol = registerVerified(t, l, "Carol Njeri", "carol", "carol@gmail.com", "0733345678")

	var err error
	f.group, err = l.CreateGroup(f.alice.ID, "Nairobi Riders", "nairobiriders", "HC-NBO")
	require.NoError(t, err)
	_, err = l.JoinGroup(f.bob.ID, "nairobiriders")
	require.NoError(t, err)
	_, err = l.JoinGroup(f.carol.ID, "nairobiriders")
	require.NoError(t, err)

	mailer.sent = nil
	return f
}

func (f *fixture) createEvent(t *testing.T, invited ...uuid.UUID) *models.Event {
	t.Helper()

	event, err := f.ledger.CreateEvent(f.alice.ID, f.group.ID, invited, 100,
		"HC-SPOT", "Friday Meetup", time.Now().Add(-90*time.Minute))
	require.NoError(t, err)
	return event
}

func (f *fixture) inviteOf(t *testing.T, eventID, userID uuid.UUID) *models.EventInvite {
	t.Helper()

	var invite models.EventInvite
	require.NoError(t, f.db.Where("event_id = ? AND invited_user_id = ?", eventID, userID).
		First(&invite).Error)
	return &invite
}

func TestCreateEventCreatesPendingInvites(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID, f.carol.ID)
	assert.Equal(t, models.EventActive, event.Status)

	var invites []models.EventInvite
	require.NoError(t, f.db.Where("event_id = ?", event.ID).Find(&invites).Error)
	require.Len(t, invites, 2)
	for _, inv := range invites {
		assert.Equal(t, models.PaymentPending, inv.PaymentStatus)
		assert.Zero(t, inv.PaidAmount)
		assert.True(t, inv.EmailSent)
		assert.False(t, inv.SMSSent)
	}

	require.Len(t, f.mailer.sent, 2)
	for _, email := range f.mailer.sent {
		assert.Equal(t, "New Meetup Invite: Friday Meetup", email.Subject)
		assert.Contains(t, email.Body, "Nairobi Riders")
		assert.Contains(t, email.Body, "KES 100")
	}
}

func TestCreateEventDeduplicatesInvitees(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID, f.bob.ID, f.carol.ID)

	var invites []models.EventInvite
	require.NoError(t, f.db.Where("event_id = ?", event.ID).Find(&invites).Error)
	assert.Len(t, invites, 2)
	assert.Len(t, f.mailer.sent, 2)
}

func TestCreateEventRejectsNonMemberCreator(t *testing.T) {
	f := newFixture(t)

	outsider := registerVerified(t, f.ledger, "Eve", "eve", "eve@gmail.com", "0744445678")

	_, err := f.ledger.CreateEvent(outsider.ID, f.group.ID, nil, 100,
		"HC-SPOT", "Friday Meetup", time.Now())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateEventRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.CreateEvent(f.alice.ID, f.group.ID, nil, 0,
		"HC-SPOT", "Friday Meetup", time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ledger.CreateEvent(f.alice.ID, f.group.ID, nil, 100,
		"HC-SPOT", "", time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ledger.CreateEvent(f.alice.ID, uuid.New(), nil, 100,
		"HC-SPOT", "Friday Meetup", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPaymentStampsContribution(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID)
	invite := f.inviteOf(t, event.ID, f.bob.ID)

	paid, err := f.ledger.RecordPayment(invite.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, 100.0, paid.PaidAmount)
	require.NotNil(t, paid.PaidAt)

	_, err = f.ledger.RecordPayment(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPaymentRejectsRepeat(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID)
	invite := f.inviteOf(t, event.ID, f.bob.ID)

	_, err := f.ledger.RecordPayment(invite.ID)
	require.NoError(t, err)

	_, err = f.ledger.RecordPayment(invite.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	// Paying twice never accumulates more than one contribution.
	reloaded := f.inviteOf(t, event.ID, f.bob.ID)
	assert.Equal(t, 100.0, reloaded.PaidAmount)
}

func TestSendBulkSMSRequiresPaidInvites(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID, f.carol.ID)

	_, err := f.ledger.SendBulkSMS(event.ID, f.alice.ID, "See you at 6pm!")
	assert.ErrorIs(t, err, ErrNoRecipients)

	var logs int64
	require.NoError(t, f.db.Model(&models.SMSLog{}).Count(&logs).Error)
	assert.Zero(t, logs)
}

func TestSendBulkSMSSnapshotsRecipients(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID, f.carol.ID)
	_, err := f.ledger.RecordPayment(f.inviteOf(t, event.ID, f.bob.ID).ID)
	require.NoError(t, err)

	smsLog, err := f.ledger.SendBulkSMS(event.ID, f.alice.ID, "See you at 6pm!")
	require.NoError(t, err)
	assert.Equal(t, 1, smsLog.TotalSent)
	assert.Equal(t, "See you at 6pm!", smsLog.Message)
	assert.Equal(t, f.alice.ID, smsLog.SentBy)

	assert.True(t, f.inviteOf(t, event.ID, f.bob.ID).SMSSent)
	assert.False(t, f.inviteOf(t, event.ID, f.carol.ID).SMSSent)

	require.Len(t, f.sms.batches, 1)
	assert.Equal(t, []string{f.bob.Phone}, f.sms.batches[0])

	// Carol pays later; the earlier log's snapshot is unchanged.
	_, err = f.ledger.RecordPayment(f.inviteOf(t, event.ID, f.carol.ID).ID)
	require.NoError(t, err)

	var first models.SMSLog
	require.NoError(t, f.db.First(&first, "id = ?", smsLog.ID).Error)
	assert.Equal(t, 1, first.TotalSent)
}

func TestCloseEventHappyPath(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID)
	_, err := f.ledger.RecordPayment(f.inviteOf(t, event.ID, f.bob.ID).ID)
	require.NoError(t, err)
	f.mailer.sent = nil

	closed, err := f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{
		AbsentUserIDs: nil,
		GoodsCounts:   map[string]int{"drink": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, models.EventClosed, closed.Status)
	require.NotNil(t, closed.EndTime)
	require.NotNil(t, closed.DurationMinutes)
	assert.GreaterOrEqual(t, *closed.DurationMinutes, 89)

	report, err := closed.Report()
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.AllPresent)
	assert.Equal(t, 2, report.GoodsCounts["drink"])

	// Nobody was absent and no AOPs were registered: no closure emails.
	assert.Empty(t, f.mailer.sent)
}

func TestCloseEventOnlyCreator(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID)
	_, err := f.ledger.CloseEvent(event.ID, f.bob.ID, &models.EventReport{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.ledger.CloseEvent(uuid.New(), f.alice.ID, &models.EventReport{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseEventRejectsUnpaidAbsentees(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID, f.carol.ID)
	_, err := f.ledger.RecordPayment(f.inviteOf(t, event.ID, f.bob.ID).ID)
	require.NoError(t, err)

	// Carol is still PENDING, so she cannot be marked absent.
	_, err = f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{
		AbsentUserIDs: []string{f.carol.ID.String()},
	})
	assert.ErrorIs(t, err, ErrValidation)

	var reloaded models.Event
	require.NoError(t, f.db.First(&reloaded, "id = ?", event.ID).Error)
	assert.Equal(t, models.EventActive, reloaded.Status)
}

func TestCloseEventRejectsMalformedReport(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID)

	_, err := f.ledger.CloseEvent(event.ID, f.alice.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{
		GoodsCounts: map[string]int{"drink": -1},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{
		AOPs: []models.AOP{{Name: "Dan", Email: "not-an-email"}},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCloseEventNotifiesAbsenteesAndGuests(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID)
	_, err := f.ledger.RecordPayment(f.inviteOf(t, event.ID, f.bob.ID).ID)
	require.NoError(t, err)
	f.mailer.sent = nil

	closed, err := f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{
		AbsentUserIDs: []string{f.bob.ID.String()},
		GoodsCounts:   map[string]int{"drink": 2, "snack": 1},
		AOPs:          []models.AOP{{Name: "Dan Guest", Email: "dan@example.com"}},
	})
	require.NoError(t, err)

	report, err := closed.Report()
	require.NoError(t, err)
	assert.False(t, report.AllPresent)

	require.Len(t, f.mailer.sent, 2)

	absentee := f.mailer.sent[0]
	assert.Equal(t, "bob@gmail.com", absentee.To)
	assert.Contains(t, absentee.Body, "Friday Meetup")
	assert.Contains(t, absentee.Body, "drink x2")
	assert.Contains(t, absentee.Body, "snack x1")

	guest := f.mailer.sent[1]
	assert.Equal(t, "dan@example.com", guest.To)
	assert.Contains(t, guest.Body, "@nairobiriders")
	assert.Contains(t, guest.Body, "https://app.autolink.test/#/join/@nairobiriders")
}

func TestCloseEventTwiceFails(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID)
	_, err := f.ledger.RecordPayment(f.inviteOf(t, event.ID, f.bob.ID).ID)
	require.NoError(t, err)

	first, err := f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{
		GoodsCounts: map[string]int{"drink": 2},
	})
	require.NoError(t, err)

	_, err = f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{
		GoodsCounts: map[string]int{"drink": 99},
	})
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	// The original report stands.
	var reloaded models.Event
	require.NoError(t, f.db.First(&reloaded, "id = ?", event.ID).Error)
	report, err := reloaded.Report()
	require.NoError(t, err)
	assert.Equal(t, 2, report.GoodsCounts["drink"])
	assert.Equal(t, first.EndTime.Unix(), reloaded.EndTime.Unix())
}

func TestCloseEventBeforeMeetingClampsDuration(t *testing.T) {
	f := newFixture(t)

	event, err := f.ledger.CreateEvent(f.alice.ID, f.group.ID, []uuid.UUID{f.bob.ID}, 100,
		"HC-SPOT", "Future Meetup", time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	closed, err := f.ledger.CloseEvent(event.ID, f.alice.ID, &models.EventReport{})
	require.NoError(t, err)
	require.NotNil(t, closed.DurationMinutes)
	assert.Equal(t, 0, *closed.DurationMinutes)
}

func TestEventStats(t *testing.T) {
	f := newFixture(t)

	event := f.createEvent(t, f.bob.ID, f.carol.ID)

	stats, err := f.ledger.EventStats(event.ID)
	require.NoError(t, err)
	assert.Equal(t, EventStats{TotalInvited: 2, Pending: 2}, stats)

	_, err = f.ledger.RecordPayment(f.inviteOf(t, event.ID, f.bob.ID).ID)
	require.NoError(t, err)

	stats, err = f.ledger.EventStats(event.ID)
	require.NoError(t, err)
	assert.Equal(t, EventStats{TotalInvited: 2, Paid: 1, Pending: 1, TotalCollected: 100}, stats)
}

func TestUserStatsAttendedAndMissed(t *testing.T) {
	f := newFixture(t)

	// Event 1: Bob pays and attends.
	e1 := f.createEvent(t, f.bob.ID)
	_, err := f.ledger.RecordPayment(f.inviteOf(t, e1.ID, f.bob.ID).ID)
	require.NoError(t, err)
	_, err = f.ledger.CloseEvent(e1.ID, f.alice.ID, &models.EventReport{})
	require.NoError(t, err)

	stats, err := f.ledger.UserStats(f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, UserStats{Attended: 1, Missed: 0}, stats)

	// Event 2: Bob pays but is marked absent.
	e2 := f.createEvent(t, f.bob.ID)
	_, err = f.ledger.RecordPayment(f.inviteOf(t, e2.ID, f.bob.ID).ID)
	require.NoError(t, err)
	_, err = f.ledger.CloseEvent(e2.ID, f.alice.ID, &models.EventReport{
		AbsentUserIDs: []string{f.bob.ID.String()},
	})
	require.NoError(t, err)

	stats, err = f.ledger.UserStats(f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, UserStats{Attended: 1, Missed: 1}, stats)

	// Event 3: Bob never pays before closure.
	e3 := f.createEvent(t, f.bob.ID)
	_, err = f.ledger.CloseEvent(e3.ID, f.alice.ID, &models.EventReport{})
	require.NoError(t, err)

	stats, err = f.ledger.UserStats(f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, UserStats{Attended: 1, Missed: 2}, stats)

	// Active events never count either way.
	f.createEvent(t, f.bob.ID)
	stats, err = f.ledger.UserStats(f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, UserStats{Attended: 1, Missed: 2}, stats)
}
