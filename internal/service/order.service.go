package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"movie-membership/internal/database"
	"movie-membership/internal/domain"
	"movie-membership/internal/infrastructure/kafka"
	"movie-membership/internal/infrastructure/metrics"
	"movie-membership/internal/infrastructure/momo"
	"movie-membership/internal/repo"
)

var orderIDPattern = regexp.MustCompile(`^[0-9A-Za-z_.:-]{1,50}$`)

// CheckoutConfig holds the partner values that go into every create request.
type CheckoutConfig struct {
	PartnerCode string
	RequestType string
	RedirectURL string
	IPNURL      string
}

type CreateOrderInput struct {
	UserID    string
	PlanID    string
	Period    domain.Period
	Amount    int64
	OrderID   string
	OrderInfo string
}

type OrderService interface {
	// Checkout prices the plan for the period and creates an order for it.
	Checkout(ctx context.Context, userID, planCode, period string) (*domain.Order, error)
	CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	OverrideStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	tx       database.Transactor
	orders   repo.OrderRepo
	plans    repo.PlanRepo
	gateway  momo.Gateway
	resolver *Resolver
	cfg      CheckoutConfig
	events   kafka.Publisher
	metrics  *metrics.PaymentMetrics
	log      *slog.Logger
	now      func() time.Time
}

func NewOrderService(
	tx database.Transactor,
	orders repo.OrderRepo,
	plans repo.PlanRepo,
	gateway momo.Gateway,
	resolver *Resolver,
	cfg CheckoutConfig,
	events kafka.Publisher,
	m *metrics.PaymentMetrics,
	log *slog.Logger,
) OrderService {
	return &orderService{
		tx:       tx,
		orders:   orders,
		plans:    plans,
		gateway:  gateway,
		resolver: resolver,
		cfg:      cfg,
		events:   events,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (s *orderService) Checkout(ctx context.Context, userID, planCode, period string) (*domain.Order, error) {
	if planCode == "" {
		planCode = "standard"
	}
	p, err := domain.ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.FindActiveByCode(ctx, planCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: plan %q not found", domain.ErrValidation, planCode)
		}
		return nil, err
	}

	amount, err := plan.PriceFor(p)
	if err != nil {
		s.log.Error("invalid plan price", slog.String("plan", plan.Code), slog.String("period", string(p)))
		return nil, err
	}

	return s.CreateOrder(ctx, CreateOrderInput{
		UserID:    userID,
		PlanID:    plan.ID,
		Period:    p,
		Amount:    amount,
		OrderInfo: plan.OrderInfo(p),
	})
}

// CreateOrder asks the gateway for a pay URL and only then stores the order.
// A failed gateway call leaves no record behind.
func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := validateCreate(&in); err != nil {
		s.metrics.RecordCreateFailure("validation")
		return nil, err
	}
	if _, err := s.plans.FindByID(ctx, in.PlanID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.RecordCreateFailure("validation")
			return nil, fmt.Errorf("%w: plan %q not found", domain.ErrValidation, in.PlanID)
		}
		return nil, err
	}

	orderID := in.OrderID
	if orderID == "" {
		orderID = s.newOrderID()
	}

	if _, err := s.orders.FindByOrderID(ctx, orderID); err == nil {
		s.metrics.RecordCreateFailure("conflict")
		return nil, fmt.Errorf("%w: order %s already exists", domain.ErrConflict, orderID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	params := momo.CreateParams{
		PartnerCode: s.cfg.PartnerCode,
		RequestID:   orderID,
		OrderID:     orderID,
		Amount:      in.Amount,
		OrderInfo:   in.OrderInfo,
		RedirectURL: s.cfg.RedirectURL,
		IPNURL:      s.cfg.IPNURL,
		RequestType: s.cfg.RequestType,
	}

	started := s.now()
	res, raw, err := s.gateway.Create(ctx, params)
	s.metrics.ObserveGateway("create", started, err)
	if err != nil {
		s.metrics.RecordCreateFailure("upstream")
		s.log.Error("gateway create failed",
			slog.String("order_id", orderID),
			slog.String("user_id", in.UserID),
			slog.Any("error", err),
		)
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		}
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		OrderID:      orderID,
		RequestID:    params.RequestID,
		UserID:       in.UserID,
		PlanID:       in.PlanID,
		Period:       in.Period,
		Amount:       in.Amount,
		OrderInfo:    in.OrderInfo,
		PayURL:       res.PayURL,
		Status:       domain.OrderPending,
		RawCreateRes: raw,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		return s.orders.CreateOrder(ctx, tx, order)
	})
	if err != nil {
		reason := "persist"
		if errors.Is(err, domain.ErrConflict) {
			reason = "conflict"
		}
		s.metrics.RecordCreateFailure(reason)
		s.log.Error("store order after gateway create failed",
			slog.String("order_id", orderID),
			slog.String("pay_url", res.PayURL),
			slog.Any("error", err),
		)
		return nil, err
	}

	s.metrics.RecordOrderCreated(order.PlanID, string(order.Period), order.Amount)
	s.log.Info("order created",
		slog.String("order_id", order.OrderID),
		slog.String("user_id", order.UserID),
		slog.String("plan_id", order.PlanID),
		slog.Int64("amount", order.Amount),
	)
	if err := s.events.PublishPayment(ctx, kafka.NewPaymentEvent(uuid.NewString(), order, now)); err != nil {
		s.log.Warn("publish payment event failed", slog.String("order_id", order.OrderID), slog.Any("error", err))
	}

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.FindByOrderID(ctx, orderID)
}

func (s *orderService) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// OverrideStatus lets an admin settle a pending order by hand. Settled orders
// stay as they are.
func (s *orderService) OverrideStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if status != domain.OrderPaid && status != domain.OrderFailed {
		return nil, fmt.Errorf("%w: status must be %q or %q", domain.ErrValidation, domain.OrderPaid, domain.OrderFailed)
	}

	order, outcome, err := s.resolver.Resolve(ctx, orderID, sourceAdmin, func(o *domain.Order) (Outcome, error) {
		if status == domain.OrderPaid {
			o.Resolve(domain.ResultCodeSuccess, "")
		} else {
			o.Fail()
		}
		return outcomeFor(o.Status), nil
	})
	if err != nil {
		return nil, err
	}
	if outcome == OutcomeDuplicate && order.Status != status {
		return nil, fmt.Errorf("%w: order %s is already %s", domain.ErrConflict, orderID, order.Status)
	}
	return order, nil
}

// newOrderID follows the gateway's partnerCode+millis convention with a short
// random tail, so two checkouts in the same millisecond get distinct ids.
func (s *orderService) newOrderID() string {
	return s.cfg.PartnerCode + strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + uuid.NewString()[:8]
}

func validateCreate(in *CreateOrderInput) error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: userId is required", domain.ErrValidation)
	case in.PlanID == "":
		return fmt.Errorf("%w: planId is required", domain.ErrValidation)
	case in.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	case in.OrderID != "" && !orderIDPattern.MatchString(in.OrderID):
		return fmt.Errorf("%w: malformed orderId %q", domain.ErrValidation, in.OrderID)
	}
	if in.Period == "" {
		in.Period = domain.PeriodMonthly
	}
	if in.OrderInfo == "" {
		in.OrderInfo = "Pay with MoMo"
	}
	return nil
}
