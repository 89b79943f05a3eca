package service

import (
	"context"
	"database/sql"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/storage"
)

func q(s string) string { return regexp.QuoteMeta(s) }

func newTxService(t *testing.T) (*TransactionService, sqlmock.Sqlmock, *mockJobs, *mockPublisher) {
	db, sm := newMockDB(t)
	jobs, pub := &mockJobs{}, &mockPublisher{}
	integ := &config.Integrations{
		Jobs:    config.JobsConfig{PaymentWindow: 2 * time.Hour, ConfirmationWindow: 72 * time.Hour},
		Loyalty: config.LoyaltyConfig{RewardValidity: 90 * 24 * time.Hour},
	}
	svc := NewTransactionService(db, repository.NewSet(), jobs, pub, nil, integ, discard())
	svc.now = func() time.Time { return fixedNow }
	return svc, sm, jobs, pub
}

var txCols = []string{"id", "invoice_no", "user_id", "event_id", "status", "quantity", "subtotal",
	"discount_amount", "points_used", "total_amount", "voucher_id", "coupon_id"}

var eventCols = []string{"id", "organizer_id", "title", "start_at", "end_at", "price", "total_seats", "available_seats"}

// expectPublishLookups covers the best-effort reads made while building the
// status event.  They fail, which publish tolerates.
func expectPublishLookups(sm sqlmock.Sqlmock, done bool) {
	sm.ExpectQuery(q("FROM users WHERE id=?")).WillReturnError(sql.ErrNoRows)
	sm.ExpectQuery(q("FROM events WHERE id=?")).WillReturnError(sql.ErrNoRows)
	if done {
		sm.ExpectQuery(q("FROM attendees a JOIN users u")).WillReturnError(sql.ErrNoRows)
	}
}

func TestDecideRejectedRestoresEverything(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)
	ctx := context.Background()

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_CONFIRMATION", 3, "250", "0", 500, "249500", 4, 9))
	sm.ExpectQuery(q("FROM events WHERE id=?")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(5, 2, "Gig", fixedNow, fixedNow.Add(time.Hour), "0", 0, 0))
	sm.ExpectExec(q("UPDATE transactions SET status=?")).WithArgs("REJECTED", 7, "WAITING_CONFIRMATION").
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("FROM transaction_details WHERE transaction_id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "ticket_type_id", "quantity", "unit_price", "subtotal"}).
			AddRow(1, 7, 11, 2, "100", "200").
			AddRow(2, 7, 12, 1, "50", "50"))
	sm.ExpectExec(q("UPDATE ticket_types SET available_quantity = LEAST(")).WithArgs(2, 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("UPDATE ticket_types SET available_quantity = LEAST(")).WithArgs(1, 12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("FROM points WHERE user_id=?")+".*"+q("LIMIT 1 FOR UPDATE")).WithArgs(3, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance"}).AddRow(40, 3, 100))
	sm.ExpectExec(q("UPDATE points SET balance = balance + ?")).WithArgs(500, 500, 40).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("INSERT INTO point_histories")).WithArgs(3, 40, 500, "REFUND", 7).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sm.ExpectExec(q("UPDATE coupons SET status='ACTIVE'")).WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("UPDATE vouchers SET status = IF(status")).WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectCommit()
	expectPublishLookups(sm, false)

	jobs.On("Remove", mock.Anything, uint64(7)).Return(nil).Once()
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.MatchedBy(func(ev queue.TransactionStatusEvent) bool {
		return ev.Status == "REJECTED" && ev.PointsUsed == 500
	})).Return(nil).Once()

	tx, err := svc.Decide(ctx, 2, 7, model.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, tx.Status)
	assert.NoError(t, sm.ExpectationsWereMet())
	jobs.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestDecideDoneIssuesAttendees(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_CONFIRMATION", 2, "200", "0", 0, "200", nil, nil))
	sm.ExpectQuery(q("FROM events WHERE id=?")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(5, 2, "Gig", fixedNow, fixedNow.Add(time.Hour), "100", 10, 8))
	sm.ExpectExec(q("UPDATE transactions SET status=?")).WithArgs("DONE", 7, "WAITING_CONFIRMATION").
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("SELECT COUNT(*) FROM attendees WHERE transaction_id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	sm.ExpectQuery(q("FROM transaction_details WHERE transaction_id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "ticket_type_id", "quantity", "unit_price", "subtotal"}))
	sm.ExpectExec(q("INSERT INTO attendees")).
		WithArgs(7, 5, 3, nil, sqlmock.AnyArg(), 7, 5, 3, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 2))
	sm.ExpectCommit()
	expectPublishLookups(sm, true)

	jobs.On("Remove", mock.Anything, uint64(7)).Return(nil)
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.Anything).Return(nil)

	sold := testutil.ToFloat64(metrics.TicketsSold)
	tx, err := svc.Decide(context.Background(), 2, 7, model.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, tx.Status)
	assert.Equal(t, sold+2, testutil.ToFloat64(metrics.TicketsSold))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestIssueAttendeesSkipsWhenAlreadyIssued(t *testing.T) {
	svc, sm, _, _ := newTxService(t)
	sm.ExpectBegin()
	tx, err := svc.db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	sm.ExpectQuery(q("SELECT COUNT(*) FROM attendees WHERE transaction_id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))

	err = svc.issueAttendees(context.Background(), tx, &model.Transaction{ID: 7, Quantity: 2})
	require.NoError(t, err)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestDecideRejectsOtherOrganizer(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_CONFIRMATION", 2, "200", "0", 0, "200", nil, nil))
	sm.ExpectQuery(q("FROM events WHERE id=?")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(5, 99, "Gig", fixedNow, fixedNow.Add(time.Hour), "100", 0, 0))
	sm.ExpectRollback()

	_, err := svc.Decide(context.Background(), 2, 7, model.StatusDone)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestDecideOnlyAcceptsDoneOrRejected(t *testing.T) {
	svc, sm, _, _ := newTxService(t)
	_, err := svc.Decide(context.Background(), 2, 7, model.StatusExpired)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreateInsufficientStock(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM events WHERE id=? FOR UPDATE")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow(5, 2, "Gig", fixedNow.Add(48*time.Hour), fixedNow.Add(50*time.Hour), "0", 0, 0))
	sm.ExpectQuery(q("FROM ticket_types WHERE event_id=? AND id IN (")).WithArgs(5, 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "name", "price", "quantity", "available_quantity"}).
			AddRow(11, 5, "VIP", "100", 10, 1))
	sm.ExpectRollback()

	_, err := svc.Create(context.Background(), 3, PurchaseInput{
		EventID: 5, Items: []PurchaseItem{{TicketTypeID: 11, Quantity: 2}},
	})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "insufficient seats", ae.Message)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreateRejectsEndedEvent(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM events WHERE id=? FOR UPDATE")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow(5, 2, "Gig", fixedNow.Add(-48*time.Hour), fixedNow.Add(-time.Hour), "10", 10, 10))
	sm.ExpectRollback()

	_, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreateFreeEventCompletesImmediately(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM events WHERE id=? FOR UPDATE")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow(5, 2, "Meetup", fixedNow.Add(24*time.Hour), fixedNow.Add(26*time.Hour), "0", 10, 10))
	sm.ExpectQuery(q("SELECT COUNT(*) FROM ticket_types WHERE event_id=?")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	sm.ExpectExec(q("UPDATE events SET available_seats = available_seats - ?")).WithArgs(2, 5, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("INSERT INTO transactions")).WillReturnResult(sqlmock.NewResult(100, 1))
	sm.ExpectQuery(q("SELECT COUNT(*) FROM attendees WHERE transaction_id=?")).WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	sm.ExpectQuery(q("FROM transaction_details WHERE transaction_id=?")).WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "ticket_type_id", "quantity", "unit_price", "subtotal"}))
	sm.ExpectExec(q("INSERT INTO attendees")).WillReturnResult(sqlmock.NewResult(1, 2))
	sm.ExpectCommit()
	expectPublishLookups(sm, true)

	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.Anything).Return(nil)

	sold := testutil.ToFloat64(metrics.TicketsSold)
	tx, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, sold+2, testutil.ToFloat64(metrics.TicketsSold))
	assert.Equal(t, uint64(100), tx.ID)
	assert.Equal(t, model.StatusDone, tx.Status)
	assert.Nil(t, tx.PaymentDeadline)
	assert.True(t, tx.TotalAmount.IsZero())
	jobs.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreatePaidPurchaseSchedulesExpiry(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM events WHERE id=? FOR UPDATE")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow(5, 2, "Gig", fixedNow.Add(48*time.Hour), fixedNow.Add(50*time.Hour), "0", 0, 0))
	sm.ExpectQuery(q("FROM ticket_types WHERE event_id=? AND id IN (")).WithArgs(5, 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "name", "price", "quantity", "available_quantity"}).
			AddRow(11, 5, "VIP", "100", 10, 10))
	sm.ExpectExec(q("UPDATE ticket_types SET available_quantity = available_quantity - ?")).WithArgs(2, 11, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("INSERT INTO transactions")).WillReturnResult(sqlmock.NewResult(101, 1))
	sm.ExpectExec(q("INSERT INTO transaction_details")).WillReturnResult(sqlmock.NewResult(1, 1))
	sm.ExpectCommit()
	expectPublishLookups(sm, false)

	deadline := fixedNow.Add(2 * time.Hour)
	jobs.On("Schedule", mock.Anything, model.JobExpirePayment, uint64(101), deadline).Return(nil).Once()
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.Anything).Return(nil)

	sold := testutil.ToFloat64(metrics.TicketsSold)
	tx, err := svc.Create(context.Background(), 3, PurchaseInput{
		EventID: 5, Items: []PurchaseItem{{TicketTypeID: 11, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, sold, testutil.ToFloat64(metrics.TicketsSold), "unpaid tickets are not sold yet")
	assert.Equal(t, model.StatusWaitingPayment, tx.Status)
	assert.Equal(t, "200", tx.TotalAmount.String())
	require.NotNil(t, tx.PaymentDeadline)
	assert.Equal(t, deadline, *tx.PaymentDeadline)
	require.Len(t, tx.Details, 1)
	jobs.AssertExpectations(t)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestRunJobSkipsStaleTransaction(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_CONFIRMATION", 2, "200", "0", 0, "200", nil, nil))
	sm.ExpectRollback()

	require.NoError(t, svc.RunJob(context.Background(), model.JobExpirePayment, 7))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestRunJobSkipsMissingTransaction(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).WillReturnError(sql.ErrNoRows)
	sm.ExpectRollback()

	require.NoError(t, svc.RunJob(context.Background(), model.JobAutoCancel, 7))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestRunJobExpiresUnpaidTransaction(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_PAYMENT", 2, "200", "0", 0, "200", nil, nil))
	sm.ExpectExec(q("UPDATE transactions SET status=?")).WithArgs("EXPIRED", 7, "WAITING_PAYMENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("FROM transaction_details WHERE transaction_id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "ticket_type_id", "quantity", "unit_price", "subtotal"}))
	sm.ExpectExec(q("UPDATE events SET available_seats = LEAST(")).WithArgs(2, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectCommit()
	expectPublishLookups(sm, false)

	jobs.On("Remove", mock.Anything, uint64(7)).Return(nil).Once()
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.Anything).Return(nil)

	require.NoError(t, svc.RunJob(context.Background(), model.JobExpirePayment, 7))
	jobs.AssertExpectations(t)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCancelRequiresOwner(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_PAYMENT", 2, "200", "0", 0, "200", nil, nil))
	sm.ExpectRollback()

	_, err := svc.Cancel(context.Background(), 4, 7)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestPurchaseInputValidate(t *testing.T) {
	assert.Error(t, PurchaseInput{}.Validate())
	assert.Error(t, PurchaseInput{EventID: 1}.Validate())
	assert.Error(t, PurchaseInput{EventID: 1, Items: []PurchaseItem{{TicketTypeID: 1}}}.Validate())
	assert.NoError(t, PurchaseInput{EventID: 1, Quantity: 2}.Validate())
	assert.NoError(t, PurchaseInput{EventID: 1, Items: []PurchaseItem{{TicketTypeID: 1, Quantity: 1}}}.Validate())
}

var (
	voucherCols = []string{"id", "event_id", "code", "discount_amount", "quota", "used_count", "starts_at", "ends_at", "status"}
	couponCols  = []string{"id", "user_id", "code", "discount_percent", "status", "expires_at"}
	pointCols   = []string{"id", "user_id", "balance", "expires_at"}
)

// expectReserve locks event 5 and takes two VIP tickets at 100 each.
func expectReserve(sm sqlmock.Sqlmock) {
	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM events WHERE id=? FOR UPDATE")).WithArgs(5).
		WillReturnRows(sqlmock.NewRows(eventCols).
			AddRow(5, 2, "Gig", fixedNow.Add(48*time.Hour), fixedNow.Add(50*time.Hour), "0", 0, 0))
	sm.ExpectQuery(q("FROM ticket_types WHERE event_id=? AND id IN (")).WithArgs(5, 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "name", "price", "quantity", "available_quantity"}).
			AddRow(11, 5, "VIP", "100", 10, 10))
	sm.ExpectExec(q("UPDATE ticket_types SET available_quantity = available_quantity - ?")).WithArgs(2, 11, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

var twoVIP = []PurchaseItem{{TicketTypeID: 11, Quantity: 2}}

func TestCreateWithVoucherCouponAndPoints(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)
	couponID := uint64(9)

	expectReserve(sm)
	sm.ExpectQuery(q("FROM vouchers WHERE event_id=? AND code=?")).WithArgs(5, "SAVE20").
		WillReturnRows(sqlmock.NewRows(voucherCols).
			AddRow(4, 5, "SAVE20", "20", 10, 0, fixedNow.Add(-time.Hour), fixedNow.Add(24*time.Hour), "ACTIVE"))
	sm.ExpectExec(q("UPDATE vouchers SET status = IF(used_count + 1 >= quota")).WithArgs(4, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("FROM coupons WHERE id=?")).WithArgs(9).
		WillReturnRows(sqlmock.NewRows(couponCols).AddRow(9, 3, "REF-ABC", "10", "ACTIVE", fixedNow.Add(24*time.Hour)))
	sm.ExpectExec(q("UPDATE coupons SET status='USED'")).WithArgs(fixedNow, 9, 3, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("FROM points WHERE user_id=? AND expired=0 AND expires_at > ? AND balance > 0 ORDER BY expires_at ASC")).
		WithArgs(3, fixedNow).
		WillReturnRows(sqlmock.NewRows(pointCols).
			AddRow(40, 3, 50, fixedNow.Add(24*time.Hour)).
			AddRow(41, 3, 200, fixedNow.Add(48*time.Hour)))
	sm.ExpectExec(q("INSERT INTO transactions")).WillReturnResult(sqlmock.NewResult(102, 1))
	sm.ExpectExec(q("INSERT INTO transaction_details")).WillReturnResult(sqlmock.NewResult(1, 1))
	// 100 points: the whole of row 40, then 50 of row 41.
	sm.ExpectExec(q("UPDATE points SET used = used + ?, balance = balance - ? WHERE id=? AND balance >= ?")).
		WithArgs(50, 50, 40, 50).WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("INSERT INTO point_histories")).WithArgs(3, 40, -50, "PURCHASE", 102).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sm.ExpectExec(q("UPDATE points SET used = used + ?, balance = balance - ? WHERE id=? AND balance >= ?")).
		WithArgs(50, 50, 41, 50).WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("INSERT INTO point_histories")).WithArgs(3, 41, -50, "PURCHASE", 102).
		WillReturnResult(sqlmock.NewResult(2, 1))
	sm.ExpectCommit()
	expectPublishLookups(sm, false)

	jobs.On("Schedule", mock.Anything, model.JobExpirePayment, uint64(102), fixedNow.Add(2*time.Hour)).Return(nil).Once()
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.Anything).Return(nil)

	tx, err := svc.Create(context.Background(), 3, PurchaseInput{
		EventID: 5, Items: twoVIP, VoucherCode: " save20 ", CouponID: &couponID, UsePoints: 100,
	})
	require.NoError(t, err)
	// 200 - 20 voucher = 180, - 10% coupon = 162, - 100 points = 62.
	assert.Equal(t, "200", tx.Subtotal.String())
	assert.Equal(t, "38", tx.DiscountAmount.String())
	assert.Equal(t, int64(100), tx.PointsUsed)
	assert.Equal(t, "62", tx.TotalAmount.String())
	require.NotNil(t, tx.VoucherID)
	assert.Equal(t, uint64(4), *tx.VoucherID)
	require.NotNil(t, tx.CouponID)
	assert.Equal(t, uint64(9), *tx.CouponID)
	jobs.AssertExpectations(t)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreatePointsSpentConcurrently(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	expectReserve(sm)
	sm.ExpectQuery(q("FROM points WHERE user_id=?")).WithArgs(3, fixedNow).
		WillReturnRows(sqlmock.NewRows(pointCols).AddRow(40, 3, 50, fixedNow.Add(24*time.Hour)))
	sm.ExpectExec(q("INSERT INTO transactions")).WillReturnResult(sqlmock.NewResult(103, 1))
	sm.ExpectExec(q("INSERT INTO transaction_details")).WillReturnResult(sqlmock.NewResult(1, 1))
	// The guard on balance matches nothing: the row was drained meanwhile.
	sm.ExpectExec(q("WHERE id=? AND balance >= ?")).WithArgs(50, 50, 40, 50).
		WillReturnResult(sqlmock.NewResult(0, 0))
	sm.ExpectRollback()

	_, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Items: twoVIP, UsePoints: 50})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "insufficient points", ae.Message)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreatePointsCappedAtBalance(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)

	expectReserve(sm)
	sm.ExpectQuery(q("FROM points WHERE user_id=?")).WithArgs(3, fixedNow).
		WillReturnRows(sqlmock.NewRows(pointCols).AddRow(40, 3, 30, fixedNow.Add(24*time.Hour)))
	sm.ExpectExec(q("INSERT INTO transactions")).WillReturnResult(sqlmock.NewResult(104, 1))
	sm.ExpectExec(q("INSERT INTO transaction_details")).WillReturnResult(sqlmock.NewResult(1, 1))
	sm.ExpectExec(q("UPDATE points SET used = used + ?")).WithArgs(30, 30, 40, 30).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectExec(q("INSERT INTO point_histories")).WithArgs(3, 40, -30, "PURCHASE", 104).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sm.ExpectCommit()
	expectPublishLookups(sm, false)

	jobs.On("Schedule", mock.Anything, model.JobExpirePayment, uint64(104), mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.Anything).Return(nil)

	tx, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Items: twoVIP, UsePoints: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(30), tx.PointsUsed)
	assert.Equal(t, "170", tx.TotalAmount.String())
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreateCouponAlreadyUsed(t *testing.T) {
	svc, sm, _, _ := newTxService(t)
	couponID := uint64(9)

	expectReserve(sm)
	sm.ExpectQuery(q("FROM coupons WHERE id=?")).WithArgs(9).
		WillReturnRows(sqlmock.NewRows(couponCols).AddRow(9, 3, "REF-ABC", "10", "ACTIVE", fixedNow.Add(24*time.Hour)))
	// Another purchase used it between the read and the update.
	sm.ExpectExec(q("UPDATE coupons SET status='USED'")).WithArgs(fixedNow, 9, 3, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	sm.ExpectRollback()

	_, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Items: twoVIP, CouponID: &couponID})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "coupon is not available", ae.Message)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreateCouponOfAnotherUser(t *testing.T) {
	svc, sm, _, _ := newTxService(t)
	couponID := uint64(9)

	expectReserve(sm)
	sm.ExpectQuery(q("FROM coupons WHERE id=?")).WithArgs(9).
		WillReturnRows(sqlmock.NewRows(couponCols).AddRow(9, 8, "REF-ABC", "10", "ACTIVE", fixedNow.Add(24*time.Hour)))
	sm.ExpectRollback()

	_, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Items: twoVIP, CouponID: &couponID})
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreateVoucherExpired(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	expectReserve(sm)
	sm.ExpectQuery(q("FROM vouchers WHERE event_id=? AND code=?")).WithArgs(5, "SAVE20").
		WillReturnRows(sqlmock.NewRows(voucherCols).
			AddRow(4, 5, "SAVE20", "20", 10, 0, fixedNow.Add(-48*time.Hour), fixedNow.Add(-time.Hour), "ACTIVE"))
	sm.ExpectRollback()

	_, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Items: twoVIP, VoucherCode: "SAVE20"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "voucher is not available", ae.Message)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCreateVoucherQuotaTakenConcurrently(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	expectReserve(sm)
	sm.ExpectQuery(q("FROM vouchers WHERE event_id=? AND code=?")).WithArgs(5, "SAVE20").
		WillReturnRows(sqlmock.NewRows(voucherCols).
			AddRow(4, 5, "SAVE20", "20", 1, 0, fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour), "ACTIVE"))
	sm.ExpectExec(q("UPDATE vouchers SET status = IF(used_count + 1 >= quota")).WithArgs(4, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	sm.ExpectRollback()

	_, err := svc.Create(context.Background(), 3, PurchaseInput{EventID: 5, Items: twoVIP, VoucherCode: "SAVE20"})
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCancelRestoresStockAndRefundsToNewPointRow(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_PAYMENT", 2, "200", "0", 150, "50", nil, nil))
	sm.ExpectExec(q("UPDATE transactions SET status=?")).WithArgs("CANCELLED", 7, "WAITING_PAYMENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("FROM transaction_details WHERE transaction_id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "ticket_type_id", "quantity", "unit_price", "subtotal"}).
			AddRow(1, 7, 11, 2, "100", "200"))
	sm.ExpectExec(q("UPDATE ticket_types SET available_quantity = LEAST(")).WithArgs(2, 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Every point row of the user has expired since the purchase.
	sm.ExpectQuery(q("FROM points WHERE user_id=?")+".*"+q("LIMIT 1 FOR UPDATE")).WithArgs(3, fixedNow).
		WillReturnError(sql.ErrNoRows)
	sm.ExpectExec(q("INSERT INTO points (user_id, amount, used, balance, source, expires_at)")).
		WithArgs(3, 150, 150, "REFUND", fixedNow.Add(90*24*time.Hour)).
		WillReturnResult(sqlmock.NewResult(55, 1))
	sm.ExpectExec(q("INSERT INTO point_histories")).WithArgs(3, 55, 150, "REFUND", 7).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sm.ExpectCommit()
	expectPublishLookups(sm, false)

	jobs.On("Remove", mock.Anything, uint64(7)).Return(nil).Once()
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.MatchedBy(func(ev queue.TransactionStatusEvent) bool {
		return ev.Status == "CANCELLED"
	})).Return(nil).Once()

	tx, err := svc.Cancel(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, tx.Status)
	jobs.AssertExpectations(t)
	pub.AssertExpectations(t)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestCancelOnlyWhileWaitingPayment(t *testing.T) {
	svc, sm, _, _ := newTxService(t)

	sm.ExpectBegin()
	sm.ExpectQuery(q("FROM transactions WHERE id=? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_CONFIRMATION", 2, "200", "0", 0, "200", nil, nil))
	sm.ExpectRollback()

	_, err := svc.Cancel(context.Background(), 3, 7)
	assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestSubmitProofSwapsExpiryForAutoCancel(t *testing.T) {
	svc, sm, jobs, pub := newTxService(t)
	images := &mockImages{}
	svc.images, svc.maxFile = images, 1<<20
	confirmBy := fixedNow.Add(72 * time.Hour)
	url := "https://cdn.example.com/proofs/7/receipt.png"

	sm.ExpectQuery(q("FROM transactions WHERE id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_PAYMENT", 2, "200", "0", 0, "200", nil, nil))
	sm.ExpectBegin()
	sm.ExpectExec(q("UPDATE transactions SET status='WAITING_CONFIRMATION', payment_proof_url=?, confirm_deadline=?")).
		WithArgs(url, confirmBy, 7).WillReturnResult(sqlmock.NewResult(0, 1))
	sm.ExpectQuery(q("FROM transactions WHERE id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(append(txCols, "confirm_deadline")).
			AddRow(7, "INV-1", 3, 5, "WAITING_CONFIRMATION", 2, "200", "0", 0, "200", nil, nil, confirmBy))
	sm.ExpectCommit()
	expectPublishLookups(sm, false)

	images.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "proofs/7/") && strings.HasSuffix(key, ".png")
	}), int64(4), "image/png").Return(url, nil).Once()
	var order []string
	jobs.On("Remove", mock.Anything, uint64(7)).Return(nil).Once().
		Run(func(mock.Arguments) { order = append(order, "remove") })
	jobs.On("Schedule", mock.Anything, model.JobAutoCancel, uint64(7), confirmBy).Return(nil).Once().
		Run(func(mock.Arguments) { order = append(order, "schedule") })
	pub.On("Publish", mock.Anything, queue.TypeTransactionStatus, mock.MatchedBy(func(ev queue.TransactionStatusEvent) bool {
		return ev.Status == "WAITING_CONFIRMATION" && ev.Deadline != nil && ev.Deadline.Equal(confirmBy)
	})).Return(nil).Once()

	tx, err := svc.SubmitProof(context.Background(), 3, 7, storage.Upload{
		Reader: strings.NewReader("\x89PNG"), Size: 4, ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingConfirmation, tx.Status)
	assert.Equal(t, []string{"remove", "schedule"}, order)
	images.AssertExpectations(t)
	jobs.AssertExpectations(t)
	pub.AssertExpectations(t)
	assert.NoError(t, sm.ExpectationsWereMet())
}

func TestSubmitProofRejectsUnsupportedType(t *testing.T) {
	svc, sm, _, _ := newTxService(t)
	images := &mockImages{}
	svc.images, svc.maxFile = images, 1<<20

	sm.ExpectQuery(q("FROM transactions WHERE id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow(7, "INV-1", 3, 5, "WAITING_PAYMENT", 2, "200", "0", 0, "200", nil, nil))

	_, err := svc.SubmitProof(context.Background(), 3, 7, storage.Upload{
		Reader: strings.NewReader("%PDF"), Size: 4, ContentType: "application/pdf",
	})
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	images.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, sm.ExpectationsWereMet())
}
