package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"movie-membership/internal/domain"
	"movie-membership/internal/infrastructure/metrics"
	"movie-membership/internal/infrastructure/momo"
	"movie-membership/internal/repo"
)

// VerifyConfig holds the shared keys used to check gateway signatures.
type VerifyConfig struct {
	AccessKey     string
	SecretKey     string
	QueryOnReturn bool
}

type CallbackResult struct {
	Outcome Outcome
	Order   *domain.Order
}

type ReturnResult struct {
	OK         bool               `json:"ok"`
	ResultCode int                `json:"rc"`
	Amount     string             `json:"amount"`
	OrderID    string             `json:"orderId"`
	Status     domain.OrderStatus `json:"status"`
}

type CallbackService interface {
	// HandleCallback verifies and applies one gateway notification. It is
	// safe to call repeatedly with the same payload.
	HandleCallback(ctx context.Context, raw []byte) (*CallbackResult, error)
	// VerifyReturn checks the browser redirect without trusting it to settle
	// the order, unless query-on-return is enabled.
	VerifyReturn(ctx context.Context, query url.Values) (*ReturnResult, error)
	// ReconcileWithGateway asks the gateway for the order's final result.
	ReconcileWithGateway(ctx context.Context, orderID string) (*CallbackResult, error)
}

type callbackService struct {
	orders   repo.OrderRepo
	gateway  momo.Gateway
	resolver *Resolver
	cfg      VerifyConfig
	metrics  *metrics.PaymentMetrics
	log      *slog.Logger
	now      func() time.Time
}

func NewCallbackService(
	orders repo.OrderRepo,
	gateway momo.Gateway,
	resolver *Resolver,
	cfg VerifyConfig,
	m *metrics.PaymentMetrics,
	log *slog.Logger,
) CallbackService {
	return &callbackService{
		orders:   orders,
		gateway:  gateway,
		resolver: resolver,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (s *callbackService) HandleCallback(ctx context.Context, raw []byte) (*CallbackResult, error) {
	n, err := momo.ParseNotification(raw)
	if err != nil {
		s.metrics.RecordCallback("malformed")
		s.log.Warn("malformed gateway notification", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if !momo.Verify(momo.NotificationFields(s.cfg.AccessKey, n), s.cfg.SecretKey, n.Signature) {
		s.metrics.RecordCallback("invalid_signature")
		s.log.Warn("gateway notification signature mismatch",
			slog.String("order_id", n.OrderID),
			slog.String("request_id", n.RequestID),
		)
		return nil, domain.ErrInvalidSignature
	}

	order, outcome, err := s.resolver.Resolve(ctx, n.OrderID, sourceIPN, func(o *domain.Order) (Outcome, error) {
		o.RawIPN = raw
		if n.Amount == "" || n.AmountValue() != o.Amount {
			s.log.Warn("gateway notification amount mismatch",
				slog.String("order_id", o.OrderID),
				slog.Int64("expected", o.Amount),
				slog.Int64("got", n.AmountValue()),
			)
			o.Fail()
			return OutcomeAmountMismatch, nil
		}
		o.Resolve(n.Code(), n.TransID.String())
		return outcomeFor(o.Status), nil
	})
	if err != nil {
		s.metrics.RecordCallback("error")
		return nil, err
	}

	s.metrics.RecordCallback(string(outcome))
	if outcome == OutcomeDuplicate {
		s.log.Info("duplicate gateway notification", slog.String("order_id", order.OrderID), slog.String("status", string(order.Status)))
	}
	return &CallbackResult{Outcome: outcome, Order: order}, nil
}

func (s *callbackService) VerifyReturn(ctx context.Context, query url.Values) (*ReturnResult, error) {
	n, err := momo.NotificationFromQuery(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if !momo.Verify(momo.NotificationFields(s.cfg.AccessKey, n), s.cfg.SecretKey, n.Signature) {
		s.log.Warn("return redirect signature mismatch", slog.String("order_id", n.OrderID))
		return nil, domain.ErrInvalidSignature
	}

	order, err := s.orders.FindByOrderID(ctx, n.OrderID)
	if err != nil {
		return nil, err
	}

	res := &ReturnResult{
		OK:         n.Code() == domain.ResultCodeSuccess && n.AmountValue() == order.Amount,
		ResultCode: n.Code(),
		Amount:     n.Amount.String(),
		OrderID:    order.OrderID,
		Status:     order.Status,
	}

	if res.OK && s.cfg.QueryOnReturn && order.Status == domain.OrderPending {
		rec, err := s.ReconcileWithGateway(ctx, order.OrderID)
		if err != nil {
			s.log.Warn("query fallback on return failed", slog.String("order_id", order.OrderID), slog.Any("error", err))
		} else {
			res.Status = rec.Order.Status
		}
	}
	return res, nil
}

func (s *callbackService) ReconcileWithGateway(ctx context.Context, orderID string) (*CallbackResult, error) {
	order, err := s.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Final() {
		return &CallbackResult{Outcome: OutcomeDuplicate, Order: order}, nil
	}

	started := s.now()
	q, raw, err := s.gateway.Query(ctx, order.OrderID, order.RequestID)
	s.metrics.ObserveGateway("query", started, err)
	if err != nil {
		return nil, err
	}
	if q.ResultCode != domain.ResultCodeSuccess && !domain.IsTerminalFailure(q.ResultCode) {
		if !domain.IsInProgress(q.ResultCode) {
			s.log.Warn("gateway query returned a non-final code, leaving order pending",
				slog.String("order_id", order.OrderID),
				slog.Int("result_code", q.ResultCode),
				slog.String("message", q.Message),
			)
		}
		return &CallbackResult{Outcome: OutcomePending, Order: order}, nil
	}

	resolved, outcome, err := s.resolver.Resolve(ctx, orderID, sourceQuery, func(o *domain.Order) (Outcome, error) {
		o.RawQuery = raw
		if q.ResultCode == domain.ResultCodeSuccess && q.Amount != 0 && q.Amount != o.Amount {
			o.Fail()
			return OutcomeAmountMismatch, nil
		}
		o.Resolve(q.ResultCode, q.TransID.String())
		return outcomeFor(o.Status), nil
	})
	if err != nil {
		return nil, err
	}
	return &CallbackResult{Outcome: outcome, Order: resolved}, nil
}
