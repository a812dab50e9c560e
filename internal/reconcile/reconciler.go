package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bna-integrations/checkout-reconciler/internal/order"
	"github.com/bna-integrations/checkout-reconciler/internal/webhook"
)

// Outcome reports what a reconciliation attempt did to the order.
type Outcome string

const (
	OutcomePaid      Outcome = "paid" // order marked paid
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRecorded  Outcome = "recorded" // transaction id noted, no status change
	OutcomeNoop      Outcome = "noop"     // idempotence/terminal check suppressed the mutation
	OutcomeIgnored   Outcome = "ignored"  // unrecognized event and status
)

type action int

const (
	actionComplete action = iota
	actionFail
	actionCancel
	actionRecord
)

// Primary dispatch: webhook event name.
var eventActions = map[string]action{
	"transaction.approved":  actionComplete,
	"transaction.completed": actionComplete,
	"transaction.declined":  actionFail,
	"transaction.failed":    actionFail,
	"transaction.cancelled": actionCancel,
	"transaction.canceled":  actionCancel,
	"transaction.created":   actionRecord,
}

// Secondary dispatch: the transaction's own status, upper-cased. Used only
// when the event name is unrecognized (legacy flat webhooks have no event).
var statusActions = map[string]action{
	"APPROVED":   actionComplete,
	"COMPLETED":  actionComplete,
	"DECLINED":   actionFail,
	"FAILED":     actionFail,
	"CANCELLED":  actionCancel,
	"CANCELED":   actionCancel,
	"PROCESSING": actionRecord,
}

// Reconciler applies transaction outcomes to the order state machine.
// Duplicate and out-of-order webhooks carry no idempotency key, so the only
// dedup is the status inspection inside applyTransition.
type Reconciler struct {
	orders order.Store
	logger *log.Logger
}

func New(orders order.Store, logger *log.Logger) *Reconciler {
	return &Reconciler{orders: orders, logger: logger}
}

// Apply resolves the action for the webhook (event name first, transaction
// status second) and runs it through the single shared transition path, so
// both dispatch levels enforce the same idempotence rule.
func (r *Reconciler) Apply(ctx context.Context, event string, tx webhook.Transaction, o *order.Order) (Outcome, error) {
	act, ok := eventActions[strings.ToLower(event)]
	if !ok {
		act, ok = statusActions[strings.ToUpper(tx.Status)]
	}
	if !ok {
		r.logger.Printf("[Reconciler] order %s: unrecognized event=%q status=%q, no mutation", o.ID, event, tx.Status)
		return OutcomeIgnored, nil
	}
	return r.applyTransition(ctx, act, tx, o)
}

func (r *Reconciler) applyTransition(ctx context.Context, act action, tx webhook.Transaction, o *order.Order) (Outcome, error) {
	switch act {
	case actionComplete:
		// Success after success (or after any terminal state) is a no-op:
		// duplicate approved webhooks must not mutate or re-note the order.
		if o.Status.Terminal() || o.Status == order.StatusProcessing {
			r.logger.Printf("[Reconciler] order %s already %s, ignoring approved transaction %s", o.ID, o.Status, tx.ID)
			return OutcomeNoop, nil
		}
		if err := r.recordTransaction(ctx, o.ID, tx); err != nil {
			return "", err
		}
		if err := r.orders.UpdateStatus(ctx, o.ID, order.StatusProcessing); err != nil {
			return "", fmt.Errorf("mark order %s paid: %w", o.ID, err)
		}
		note := fmt.Sprintf("BNA payment approved (transaction %s)", tx.ID)
		if err := r.orders.AppendNote(ctx, o.ID, note); err != nil {
			return "", err
		}
		return OutcomePaid, nil

	case actionFail:
		if o.Status.Terminal() {
			r.logger.Printf("[Reconciler] order %s already %s, ignoring declined transaction %s", o.ID, o.Status, tx.ID)
			return OutcomeNoop, nil
		}
		if err := r.recordTransaction(ctx, o.ID, tx); err != nil {
			return "", err
		}
		if err := r.orders.UpdateStatus(ctx, o.ID, order.StatusFailed); err != nil {
			return "", fmt.Errorf("fail order %s: %w", o.ID, err)
		}
		note := fmt.Sprintf("BNA payment declined (transaction %s)", tx.ID)
		if tx.Message != "" {
			note += ": " + tx.Message
		}
		if err := r.orders.AppendNote(ctx, o.ID, note); err != nil {
			return "", err
		}
		return OutcomeFailed, nil

	case actionCancel:
		if o.Status.Terminal() {
			r.logger.Printf("[Reconciler] order %s already %s, ignoring cancelled transaction %s", o.ID, o.Status, tx.ID)
			return OutcomeNoop, nil
		}
		if err := r.recordTransaction(ctx, o.ID, tx); err != nil {
			return "", err
		}
		if err := r.orders.UpdateStatus(ctx, o.ID, order.StatusCancelled); err != nil {
			return "", fmt.Errorf("cancel order %s: %w", o.ID, err)
		}
		note := fmt.Sprintf("BNA payment cancelled (transaction %s)", tx.ID)
		if tx.Message != "" {
			note += ": " + tx.Message
		}
		if err := r.orders.AppendNote(ctx, o.ID, note); err != nil {
			return "", err
		}
		return OutcomeCancelled, nil

	case actionRecord:
		if err := r.recordTransaction(ctx, o.ID, tx); err != nil {
			return "", err
		}
		note := fmt.Sprintf("BNA transaction %s is %s", tx.ID, strings.ToLower(tx.Status))
		if err := r.orders.AppendNote(ctx, o.ID, note); err != nil {
			return "", err
		}
		return OutcomeRecorded, nil
	}

	return OutcomeIgnored, nil
}

// recordTransaction stashes the correlation identifiers on the order so
// later webhooks can be matched by transaction id directly.
func (r *Reconciler) recordTransaction(ctx context.Context, orderID string, tx webhook.Transaction) error {
	if err := r.orders.SetMeta(ctx, orderID, order.MetaTransactionID, tx.ID); err != nil {
		return fmt.Errorf("record transaction id on order %s: %w", orderID, err)
	}
	if err := r.orders.SetMeta(ctx, orderID, order.MetaBNATransactionID, tx.ID); err != nil {
		return fmt.Errorf("record transaction id on order %s: %w", orderID, err)
	}
	if tx.ReferenceUUID != "" {
		if err := r.orders.SetMeta(ctx, orderID, order.MetaReferenceUUID, tx.ReferenceUUID); err != nil {
			return fmt.Errorf("record reference uuid on order %s: %w", orderID, err)
		}
	}
	return nil
}
