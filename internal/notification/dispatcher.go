// Package notification turns domain events into emails and realtime
// pushes.  It runs inside the API process or in the worker behind the
// AMQP consumer.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iliyamo/event-ticketing/internal/queue"
)

// Dispatcher implements queue.Handler.
type Dispatcher struct {
	render *Renderer
	mail   Sender
	push   Pusher
	logger *slog.Logger
}

func NewDispatcher(render *Renderer, mail Sender, push Pusher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{render: render, mail: mail, push: push, logger: logger.With("component", "notifications")}
}

// Handle routes one envelope by type.  Unknown types are dropped.  A push
// failure does not fail the event; a mail failure does.
func (d *Dispatcher) Handle(ctx context.Context, env queue.Envelope) error {
	switch env.Type {
	case queue.TypeTransactionStatus:
		var ev queue.TransactionStatusEvent
		if err := env.Decode(&ev); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return d.transactionStatus(ctx, ev)
	case queue.TypeUserRegistered:
		var ev queue.UserRegisteredEvent
		if err := env.Decode(&ev); err != nil {
			return fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return d.userRegistered(ctx, ev)
	}
	d.logger.Debug("ignoring event", "type", env.Type)
	return nil
}

func (d *Dispatcher) transactionStatus(ctx context.Context, ev queue.TransactionStatusEvent) error {
	msg := map[string]any{
		"type":           "transaction_status",
		"transaction_id": ev.TransactionID,
		"invoice_no":     ev.InvoiceNo,
		"status":         ev.Status,
	}
	if ev.Deadline != nil {
		msg["deadline"] = ev.Deadline
	}
	_ = d.push.Push(ctx, ev.UserID, msg)

	if ev.UserEmail == "" {
		return nil
	}
	m, err := d.render.TransactionStatus(ev)
	if err != nil {
		return err
	}
	return d.mail.Send(ctx, m)
}

func (d *Dispatcher) userRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error {
	if ev.ReferralReward && ev.ReferrerID != 0 {
		_ = d.push.Push(ctx, ev.ReferrerID, map[string]any{
			"type":   "referral_reward",
			"points": ev.ReferrerPoints,
		})
	}
	m, err := d.render.Welcome(ev)
	if err != nil {
		return err
	}
	return d.mail.Send(ctx, m)
}
