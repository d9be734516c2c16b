package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"movie-membership/internal/database"
	"movie-membership/internal/domain"
	"movie-membership/internal/infrastructure/kafka"
	"movie-membership/internal/infrastructure/metrics"
	"movie-membership/internal/repo"
)

type Outcome string

const (
	OutcomePaid           Outcome = "paid"
	OutcomeFailed         Outcome = "failed"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomePending        Outcome = "pending"
)

const (
	sourceIPN   = "ipn"
	sourceQuery = "query"
	sourceAdmin = "admin"
)

// Transition mutates a locked pending order. Leaving the order pending means
// nothing is written.
type Transition func(o *domain.Order) (Outcome, error)

type activator interface {
	Activate(ctx context.Context, tx *sql.Tx, order *domain.Order) error
}

// Resolver is the only path that moves an order out of pending. Every caller
// (gateway callback, gateway query, admin) goes through the same locked
// read-check-write, so the first writer wins and the rest see a duplicate.
type Resolver struct {
	tx        database.Transactor
	orders    repo.OrderRepo
	activator activator
	events    kafka.Publisher
	metrics   *metrics.PaymentMetrics
	log       *slog.Logger
	now       func() time.Time
}

func NewResolver(
	tx database.Transactor,
	orders repo.OrderRepo,
	activator activator,
	events kafka.Publisher,
	m *metrics.PaymentMetrics,
	log *slog.Logger,
) *Resolver {
	return &Resolver{
		tx:        tx,
		orders:    orders,
		activator: activator,
		events:    events,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func (r *Resolver) Resolve(ctx context.Context, orderID, source string, apply Transition) (*domain.Order, Outcome, error) {
	var (
		order   *domain.Order
		outcome Outcome
		raced   bool
	)

	err := r.tx.InTx(ctx, func(tx *sql.Tx) error {
		o, err := r.orders.FindByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		order = o

		if o.Status.Final() {
			outcome = OutcomeDuplicate
			return nil
		}

		outcome, err = apply(o)
		if err != nil {
			return err
		}
		if !o.Status.Final() {
			return nil
		}

		o.UpdatedAt = r.now()
		if err := r.orders.UpdateResolution(ctx, tx, o); err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				raced = true
				return nil
			}
			return err
		}

		if o.Status == domain.OrderPaid {
			return r.activator.Activate(ctx, tx, o)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if raced {
		fresh, err := r.orders.FindByOrderID(ctx, orderID)
		if err != nil {
			return nil, "", err
		}
		return fresh, OutcomeDuplicate, nil
	}

	if outcome != OutcomeDuplicate && order.Status.Final() {
		r.afterResolve(ctx, order, source)
	}
	return order, outcome, nil
}

func (r *Resolver) afterResolve(ctx context.Context, o *domain.Order, source string) {
	r.metrics.RecordResolved(string(o.Status), source)
	r.log.Info("order resolved",
		slog.String("order_id", o.OrderID),
		slog.String("status", string(o.Status)),
		slog.String("trans_id", o.TransID),
		slog.String("source", source),
	)
	if err := r.events.PublishPayment(ctx, kafka.NewPaymentEvent(uuid.NewString(), o, r.now())); err != nil {
		r.log.Warn("publish payment event failed", slog.String("order_id", o.OrderID), slog.Any("error", err))
	}
}

func outcomeFor(status domain.OrderStatus) Outcome {
	switch status {
	case domain.OrderPaid:
		return OutcomePaid
	case domain.OrderFailed:
		return OutcomeFailed
	}
	return OutcomePending
}
