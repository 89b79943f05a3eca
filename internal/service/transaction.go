package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/storage"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

// PurchaseItem asks for quantity tickets of one ticket type.
type PurchaseItem struct {
	TicketTypeID uint64 `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

// PurchaseInput is the body of POST /transactions.  Quantity is only used
// for legacy events that have no ticket types.
type PurchaseInput struct {
	EventID     uint64         `json:"event_id"`
	Items       []PurchaseItem `json:"items"`
	Quantity    int            `json:"quantity"`
	VoucherCode string         `json:"voucher_code"`
	CouponID    *uint64        `json:"coupon_id"`
	UsePoints   int64          `json:"use_points"`
}

func (in PurchaseInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EventID, validation.Required),
		validation.Field(&in.Items, validation.When(in.Quantity == 0, validation.Required.Error("items or quantity is required")),
			validation.Each(validation.By(func(v interface{}) error {
				it, _ := v.(PurchaseItem)
				if it.TicketTypeID == 0 {
					return errors.New("ticket_type_id is required")
				}
				if it.Quantity < 1 {
					return errors.New("quantity must be at least 1")
				}
				return nil
			}))),
		validation.Field(&in.Quantity, validation.Min(0)),
		validation.Field(&in.UsePoints, validation.Min(int64(0))),
		validation.Field(&in.VoucherCode, validation.Length(0, 40)),
	)
}

// TransactionService owns the purchase lifecycle: creation, proof upload,
// organizer review, customer cancellation and deadline jobs.  Every path
// that ends in REJECTED, EXPIRED or CANCELLED restores stock, points,
// coupon and voucher inside the same database transaction that changes
// the status.
type TransactionService struct {
	db      *sqlx.DB
	repos   *repository.Set
	jobs    JobScheduler
	pub     queue.Publisher
	images  storage.ImageStore
	cfg     config.JobsConfig
	loyalty config.LoyaltyConfig
	maxFile int64
	now     Clock
	logger  *slog.Logger
}

func NewTransactionService(db *sqlx.DB, repos *repository.Set, jobs JobScheduler, pub queue.Publisher,
	images storage.ImageStore, integ *config.Integrations, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		db:      db,
		repos:   repos,
		jobs:    jobs,
		pub:     pub,
		images:  images,
		cfg:     integ.Jobs,
		loyalty: integ.Loyalty,
		maxFile: integ.Storage.MaxBytes,
		now:     utcNow,
		logger:  logger.With("component", "transactions"),
	}
}

// Create reserves stock and prices a purchase.  A zero total completes
// immediately; anything else waits for payment until the payment window
// closes.
func (s *TransactionService) Create(ctx context.Context, userID uint64, in PurchaseInput) (*model.Transaction, error) {
	now := s.now()
	var t *model.Transaction
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ev, err := s.repos.Events.GetForUpdate(ctx, tx, in.EventID)
		if err != nil {
			return translate(err, "event not found")
		}
		if !ev.EndAt.IsZero() && !now.Before(ev.EndAt) {
			return apperr.BadRequest("event has already ended")
		}

		details, quantity, subtotal, err := s.reserve(ctx, tx, ev, in)
		if err != nil {
			return err
		}

		voucherAmount, voucherID, err := s.applyVoucher(ctx, tx, ev.ID, in.VoucherCode, now)
		if err != nil {
			return err
		}
		couponPercent, couponID, err := s.applyCoupon(ctx, tx, userID, in.CouponID, now)
		if err != nil {
			return err
		}

		var spendable []model.Point
		var available int64
		if in.UsePoints > 0 {
			if spendable, err = s.repos.Points.LockSpendable(ctx, tx, userID, now); err != nil {
				return apperr.Internal(err)
			}
			for _, p := range spendable {
				available += p.Balance
			}
		}
		price := Quote(subtotal, voucherAmount, couponPercent, in.UsePoints, available)

		t = &model.Transaction{
			InvoiceNo:      utils.NewInvoiceNo(now),
			UserID:         userID,
			EventID:        ev.ID,
			Status:         model.StatusWaitingPayment,
			Quantity:       quantity,
			Subtotal:       price.Subtotal,
			DiscountAmount: price.Discount,
			PointsUsed:     price.PointsUsed,
			TotalAmount:    price.Total,
			VoucherID:      voucherID,
			CouponID:       couponID,
		}
		if price.Total.IsZero() {
			t.Status = model.StatusDone
		} else {
			deadline := now.Add(s.cfg.PaymentWindow)
			t.PaymentDeadline = &deadline
		}
		if err := s.repos.Transactions.Create(ctx, tx, t); err != nil {
			return apperr.Internal(err)
		}
		if err := s.repos.Transactions.CreateDetails(ctx, tx, t.ID, details); err != nil {
			return apperr.Internal(err)
		}
		t.Details = details

		if err := s.spendPoints(ctx, tx, t, spendable); err != nil {
			return err
		}
		if t.Status == model.StatusDone {
			return s.issueAttendees(ctx, tx, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("", string(t.Status))
	if t.Status == model.StatusDone {
		metrics.TicketsSold.Add(float64(t.Quantity))
	}
	if t.Status == model.StatusWaitingPayment {
		if err := s.jobs.Schedule(ctx, model.JobExpirePayment, t.ID, *t.PaymentDeadline); err != nil {
			s.logger.Warn("schedule expiry failed, sweep will pick it up", "transaction_id", t.ID, "error", err)
		}
	}
	s.publish(ctx, t)
	return t, nil
}

// reserve takes stock for the purchase and returns the detail lines, the
// total ticket count and the subtotal.
func (s *TransactionService) reserve(ctx context.Context, tx *sqlx.Tx, ev *model.Event, in PurchaseInput) ([]model.TransactionDetail, int, decimal.Decimal, error) {
	if len(in.Items) == 0 {
		return s.reserveLegacy(ctx, tx, ev, in.Quantity)
	}

	wanted := map[uint64]int{}
	for _, it := range in.Items {
		wanted[it.TicketTypeID] += it.Quantity
	}
	ids := make([]uint64, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	types, err := s.repos.TicketTypes.LockMany(ctx, tx, ev.ID, ids)
	if err != nil {
		return nil, 0, decimal.Zero, apperr.Internal(err)
	}
	if len(types) != len(ids) {
		return nil, 0, decimal.Zero, apperr.BadRequest("unknown ticket type for this event")
	}

	details := make([]model.TransactionDetail, 0, len(types))
	subtotal := decimal.Zero
	quantity := 0
	for _, tt := range types {
		n := wanted[tt.ID]
		if tt.AvailableQuantity < n {
			return nil, 0, decimal.Zero, apperr.BadRequest("insufficient seats")
		}
		if err := s.repos.TicketTypes.Take(ctx, tx, tt.ID, n); err != nil {
			return nil, 0, decimal.Zero, translate(err, "ticket type not found")
		}
		line := tt.Price.Mul(decimal.NewFromInt(int64(n)))
		details = append(details, model.TransactionDetail{
			TicketTypeID: tt.ID,
			Quantity:     n,
			UnitPrice:    tt.Price,
			Subtotal:     line,
		})
		subtotal = subtotal.Add(line)
		quantity += n
	}
	return details, quantity, subtotal, nil
}

func (s *TransactionService) reserveLegacy(ctx context.Context, tx *sqlx.Tx, ev *model.Event, quantity int) ([]model.TransactionDetail, int, decimal.Decimal, error) {
	if quantity < 1 {
		return nil, 0, decimal.Zero, apperr.BadRequest("quantity must be at least 1")
	}
	n, err := s.repos.TicketTypes.CountByEvent(ctx, tx, ev.ID)
	if err != nil {
		return nil, 0, decimal.Zero, apperr.Internal(err)
	}
	if n > 0 {
		return nil, 0, decimal.Zero, apperr.BadRequest("items are required for this event")
	}
	if ev.AvailableSeats < quantity {
		return nil, 0, decimal.Zero, apperr.BadRequest("insufficient seats")
	}
	if err := s.repos.Events.TakeSeats(ctx, tx, ev.ID, quantity); err != nil {
		return nil, 0, decimal.Zero, translate(err, "event not found")
	}
	return nil, quantity, ev.Price.Mul(decimal.NewFromInt(int64(quantity))), nil
}

func (s *TransactionService) applyVoucher(ctx context.Context, tx *sqlx.Tx, eventID uint64, code string, now time.Time) (decimal.Decimal, *uint64, error) {
	if code == "" {
		return decimal.Zero, nil, nil
	}
	v, err := s.repos.Vouchers.GetByCode(ctx, tx, eventID, code)
	if errors.Is(err, repository.ErrNotFound) {
		return decimal.Zero, nil, apperr.BadRequest("invalid voucher code")
	}
	if err != nil {
		return decimal.Zero, nil, apperr.Internal(err)
	}
	if !v.Usable(now) {
		return decimal.Zero, nil, apperr.BadRequest("voucher is not available")
	}
	if err := s.repos.Vouchers.Consume(ctx, tx, v.ID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return decimal.Zero, nil, apperr.BadRequest("voucher is not available")
		}
		return decimal.Zero, nil, apperr.Internal(err)
	}
	return v.DiscountAmount, &v.ID, nil
}

func (s *TransactionService) applyCoupon(ctx context.Context, tx *sqlx.Tx, userID uint64, couponID *uint64, now time.Time) (decimal.Decimal, *uint64, error) {
	if couponID == nil || *couponID == 0 {
		return decimal.Zero, nil, nil
	}
	c, err := s.repos.Coupons.GetByID(ctx, tx, *couponID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && c.UserID != userID) {
		return decimal.Zero, nil, apperr.BadRequest("invalid coupon")
	}
	if err != nil {
		return decimal.Zero, nil, apperr.Internal(err)
	}
	if !c.Usable(now) {
		return decimal.Zero, nil, apperr.BadRequest("coupon is not available")
	}
	if err := s.repos.Coupons.Use(ctx, tx, c.ID, userID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return decimal.Zero, nil, apperr.BadRequest("coupon is not available")
		}
		return decimal.Zero, nil, apperr.Internal(err)
	}
	return c.DiscountPercent, &c.ID, nil
}

// spendPoints deducts t.PointsUsed across rows, soonest expiry first, and
// writes one ledger entry per row touched.
func (s *TransactionService) spendPoints(ctx context.Context, tx *sqlx.Tx, t *model.Transaction, rows []model.Point) error {
	left := t.PointsUsed
	for _, p := range rows {
		if left == 0 {
			break
		}
		take := p.Balance
		if take > left {
			take = left
		}
		if take <= 0 {
			continue
		}
		if err := s.repos.Points.Deduct(ctx, tx, p.ID, take); err != nil {
			return translate(err, "points not found")
		}
		pid, txID := p.ID, t.ID
		if err := s.repos.Points.Record(ctx, tx, model.PointHistory{
			UserID: t.UserID, PointID: &pid, Delta: -take, Reason: model.ReasonPurchase, TransactionID: &txID,
		}); err != nil {
			return apperr.Internal(err)
		}
		left -= take
	}
	if left > 0 {
		return apperr.BadRequest("insufficient points")
	}
	return nil
}

// issueAttendees creates one attendee per ticket.  It does nothing when
// the transaction already has attendees.
func (s *TransactionService) issueAttendees(ctx context.Context, tx *sqlx.Tx, t *model.Transaction) error {
	n, err := s.repos.Attendees.CountByTransaction(ctx, tx, t.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	if n > 0 {
		return nil
	}
	details := t.Details
	if details == nil {
		if details, err = s.repos.Transactions.Details(ctx, tx, t.ID); err != nil {
			return apperr.Internal(err)
		}
	}
	rows := make([]model.Attendee, 0, t.Quantity)
	if len(details) == 0 {
		for i := 0; i < t.Quantity; i++ {
			rows = append(rows, model.Attendee{TransactionID: t.ID, EventID: t.EventID, UserID: t.UserID, TicketCode: utils.NewTicketCode()})
		}
	}
	for _, d := range details {
		typeID := d.TicketTypeID
		for i := 0; i < d.Quantity; i++ {
			rows = append(rows, model.Attendee{
				TransactionID: t.ID, EventID: t.EventID, UserID: t.UserID,
				TicketTypeID: &typeID, TicketCode: utils.NewTicketCode(),
			})
		}
	}
	if err := s.repos.Attendees.CreateBulk(ctx, tx, rows); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// restore gives back everything t took: stock per detail line (or the
// event's legacy seats when there are no lines), used points, the coupon
// and the voucher use.
func (s *TransactionService) restore(ctx context.Context, tx *sqlx.Tx, t *model.Transaction) error {
	details, err := s.repos.Transactions.Details(ctx, tx, t.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	if len(details) == 0 {
		if err := s.repos.Events.ReturnSeats(ctx, tx, t.EventID, t.Quantity); err != nil {
			return apperr.Internal(err)
		}
	}
	for _, d := range details {
		if err := s.repos.TicketTypes.Return(ctx, tx, d.TicketTypeID, d.Quantity); err != nil {
			return apperr.Internal(err)
		}
	}
	if t.PointsUsed > 0 {
		if err := s.refundPoints(ctx, tx, t); err != nil {
			return err
		}
	}
	if t.CouponID != nil {
		if err := s.repos.Coupons.Reactivate(ctx, tx, *t.CouponID); err != nil {
			return apperr.Internal(err)
		}
	}
	if t.VoucherID != nil {
		if err := s.repos.Vouchers.Release(ctx, tx, *t.VoucherID); err != nil {
			return apperr.Internal(err)
		}
	}
	return nil
}

// refundPoints credits the user's latest spendable point row and writes a
// REFUND ledger entry.  A user without a spendable row gets a new REFUND
// row instead.
func (s *TransactionService) refundPoints(ctx context.Context, tx *sqlx.Tx, t *model.Transaction) error {
	now := s.now()
	var pointID uint64
	latest, err := s.repos.Points.LockLatest(ctx, tx, t.UserID, now)
	switch {
	case err == nil:
		pointID = latest.ID
		if err := s.repos.Points.Refund(ctx, tx, pointID, t.PointsUsed); err != nil {
			return apperr.Internal(err)
		}
	case errors.Is(err, repository.ErrNotFound):
		pointID, err = s.repos.Points.Grant(ctx, tx, t.UserID, t.PointsUsed, model.SourceRefund, now.Add(s.loyalty.RewardValidity))
		if err != nil {
			return apperr.Internal(err)
		}
	default:
		return apperr.Internal(err)
	}
	txID := t.ID
	if err := s.repos.Points.Record(ctx, tx, model.PointHistory{
		UserID: t.UserID, PointID: &pointID, Delta: t.PointsUsed, Reason: string(model.SourceRefund), TransactionID: &txID,
	}); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// transition locks the row, runs check, moves it to `to` and applies the
// side effects of the new status.  It returns the updated transaction and
// the status it left.
func (s *TransactionService) transition(ctx context.Context, id uint64, to model.TransactionStatus,
	check func(tx *sqlx.Tx, t *model.Transaction) error) (*model.Transaction, model.TransactionStatus, error) {
	var t *model.Transaction
	var from model.TransactionStatus
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if t, err = s.repos.Transactions.GetForUpdate(ctx, tx, id); err != nil {
			return translate(err, "transaction not found")
		}
		if err := check(tx, t); err != nil {
			return err
		}
		from = t.Status
		if !from.CanTransition(to) {
			return apperr.Conflict(fmt.Sprintf("cannot move transaction from %s to %s", from, to))
		}
		if err := s.repos.Transactions.UpdateStatus(ctx, tx, id, from, to); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.Conflict("transaction status changed concurrently")
			}
			return apperr.Internal(err)
		}
		t.Status = to
		switch {
		case to.Restores():
			return s.restore(ctx, tx, t)
		case to == model.StatusDone:
			return s.issueAttendees(ctx, tx, t)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	metrics.RecordTransition(string(from), string(to))
	if to == model.StatusDone {
		metrics.TicketsSold.Add(float64(t.Quantity))
	}
	if to.Terminal() {
		if err := s.jobs.Remove(ctx, id); err != nil {
			s.logger.Warn("remove job failed", "transaction_id", id, "error", err)
		}
	}
	s.publish(ctx, t)
	return t, from, nil
}

// Decide is the organizer review: DONE or REJECTED from
// WAITING_CONFIRMATION only.
func (s *TransactionService) Decide(ctx context.Context, organizerID, id uint64, to model.TransactionStatus) (*model.Transaction, error) {
	if to != model.StatusDone && to != model.StatusRejected {
		return nil, apperr.BadRequest("status must be DONE or REJECTED")
	}
	t, _, err := s.transition(ctx, id, to, func(tx *sqlx.Tx, t *model.Transaction) error {
		ev, err := s.repos.Events.GetByID(ctx, tx, t.EventID)
		if err != nil {
			return translate(err, "event not found")
		}
		if ev.OrganizerID != organizerID {
			return apperr.Forbidden("transaction belongs to another organizer's event")
		}
		if t.Status != model.StatusWaitingConfirmation {
			return apperr.Conflict(fmt.Sprintf("cannot move transaction from %s to %s", t.Status, to))
		}
		return nil
	})
	return t, err
}

// Cancel lets a customer abandon an unpaid transaction.
func (s *TransactionService) Cancel(ctx context.Context, userID, id uint64) (*model.Transaction, error) {
	t, _, err := s.transition(ctx, id, model.StatusCancelled, func(_ *sqlx.Tx, t *model.Transaction) error {
		if t.UserID != userID {
			return apperr.Forbidden("not your transaction")
		}
		if t.Status != model.StatusWaitingPayment {
			return apperr.Conflict(fmt.Sprintf("cannot cancel a transaction in %s", t.Status))
		}
		return nil
	})
	return t, err
}

// RunJob fires a deferred job.  A transaction that already moved on, or no
// longer exists, is skipped without error.
func (s *TransactionService) RunJob(ctx context.Context, kind model.JobKind, id uint64) error {
	var want, to model.TransactionStatus
	switch kind {
	case model.JobExpirePayment:
		want, to = model.StatusWaitingPayment, model.StatusExpired
	case model.JobAutoCancel:
		want, to = model.StatusWaitingConfirmation, model.StatusCancelled
	default:
		return fmt.Errorf("unknown job kind %q", kind)
	}
	errSkip := errors.New("skip")
	_, _, err := s.transition(ctx, id, to, func(_ *sqlx.Tx, t *model.Transaction) error {
		if t.Status != want {
			return errSkip
		}
		return nil
	})
	if errors.Is(err, errSkip) || apperr.StatusOf(err) == http.StatusNotFound {
		s.logger.Debug("job skipped", "kind", kind, "transaction_id", id)
		return nil
	}
	if err == nil {
		s.logger.Info("job applied", "kind", kind, "transaction_id", id, "status", to)
	}
	return err
}

// SweepOverdue applies the deadline jobs straight from the database, for
// rows whose Redis job was lost or never scheduled.
func (s *TransactionService) SweepOverdue(ctx context.Context, limit int) (int, error) {
	done := 0
	for _, kind := range model.JobKinds {
		status := model.StatusWaitingPayment
		if kind == model.JobAutoCancel {
			status = model.StatusWaitingConfirmation
		}
		ids, err := s.repos.Transactions.Overdue(ctx, s.db, status, s.now(), limit)
		if err != nil {
			return done, err
		}
		for _, id := range ids {
			if err := s.RunJob(ctx, kind, id); err != nil {
				s.logger.Error("sweep transition failed", "kind", kind, "transaction_id", id, "error", err)
				continue
			}
			done++
		}
	}
	return done, nil
}

// SubmitProof stores the customer's payment proof and hands the
// transaction to the organizer for review.  The payment expiry job is
// replaced by the auto-cancel job.
func (s *TransactionService) SubmitProof(ctx context.Context, userID, id uint64, up storage.Upload) (*model.Transaction, error) {
	cur, err := s.repos.Transactions.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, translate(err, "transaction not found")
	}
	if cur.UserID != userID {
		return nil, apperr.Forbidden("not your transaction")
	}
	if cur.Status != model.StatusWaitingPayment {
		return nil, apperr.Conflict(fmt.Sprintf("cannot upload proof for a transaction in %s", cur.Status))
	}
	ext, err := storage.CheckImage(up, s.maxFile)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	url, err := s.images.Put(ctx, utils.NewObjectKey(fmt.Sprintf("proofs/%d", id), ext), up.Reader, up.Size, up.ContentType)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	confirmBy := s.now().Add(s.cfg.ConfirmationWindow)
	var t *model.Transaction
	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repos.Transactions.AttachProof(ctx, tx, id, url, confirmBy); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperr.Conflict("transaction is no longer waiting for payment")
			}
			return apperr.Internal(err)
		}
		var err error
		t, err = s.repos.Transactions.GetByID(ctx, tx, id)
		return translate(err, "transaction not found")
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(model.StatusWaitingPayment), string(model.StatusWaitingConfirmation))
	if err := s.jobs.Remove(ctx, id); err != nil {
		s.logger.Warn("remove expiry job failed", "transaction_id", id, "error", err)
	}
	if err := s.jobs.Schedule(ctx, model.JobAutoCancel, id, confirmBy); err != nil {
		s.logger.Warn("schedule auto-cancel failed, sweep will pick it up", "transaction_id", id, "error", err)
	}
	s.publish(ctx, t)
	return t, nil
}

// Get returns a transaction with its detail lines to the buyer or to the
// organizer of the event.
func (s *TransactionService) Get(ctx context.Context, userID uint64, role model.Role, id uint64) (*model.Transaction, error) {
	t, err := s.repos.Transactions.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, translate(err, "transaction not found")
	}
	allowed := t.UserID == userID
	if !allowed && role == model.RoleOrganizer {
		ev, err := s.repos.Events.GetByID(ctx, s.db, t.EventID)
		if err != nil {
			return nil, translate(err, "event not found")
		}
		allowed = ev.OrganizerID == userID
	}
	if !allowed {
		return nil, apperr.Forbidden("not your transaction")
	}
	if t.Details, err = s.repos.Transactions.Details(ctx, s.db, id); err != nil {
		return nil, apperr.Internal(err)
	}
	return t, nil
}

// ListMine returns the customer's own transactions.
func (s *TransactionService) ListMine(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	out, err := s.repos.Transactions.ListByUser(ctx, s.db, userID)
	return out, translate(err, "")
}

// ListForEvent returns an event's transactions to its organizer.
func (s *TransactionService) ListForEvent(ctx context.Context, organizerID, eventID uint64, status model.TransactionStatus) ([]model.Transaction, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.BadRequest("unknown status")
	}
	if _, err := ownedEvent(ctx, s.db, s.repos, eventID, organizerID); err != nil {
		return nil, err
	}
	out, err := s.repos.Transactions.ListByEvent(ctx, s.db, eventID, status)
	return out, translate(err, "")
}

// publish emits a transaction.status event.  Failures are logged only.
func (s *TransactionService) publish(ctx context.Context, t *model.Transaction) {
	ev := queue.TransactionStatusEvent{
		TransactionID: t.ID,
		InvoiceNo:     t.InvoiceNo,
		UserID:        t.UserID,
		EventID:       t.EventID,
		Status:        string(t.Status),
		Quantity:      t.Quantity,
		TotalAmount:   t.TotalAmount,
		PointsUsed:    t.PointsUsed,
	}
	switch t.Status {
	case model.StatusWaitingPayment:
		ev.Deadline = t.PaymentDeadline
	case model.StatusWaitingConfirmation:
		ev.Deadline = t.ConfirmDeadline
	}
	if u, err := s.repos.Users.GetByID(ctx, s.db, t.UserID); err == nil {
		ev.UserName, ev.UserEmail = u.Name, u.Email
	}
	if e, err := s.repos.Events.GetByID(ctx, s.db, t.EventID); err == nil {
		ev.EventTitle, ev.EventStartAt = e.Title, e.StartAt
	}
	if t.Status == model.StatusDone {
		if rows, err := s.repos.Attendees.ListByTransaction(ctx, s.db, t.ID); err == nil {
			for _, a := range rows {
				ev.TicketCodes = append(ev.TicketCodes, a.TicketCode)
			}
		}
	}
	if err := s.pub.Publish(ctx, queue.TypeTransactionStatus, ev); err != nil {
		s.logger.Warn("publish status event failed", "transaction_id", t.ID, "error", err)
	}
}
