package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"movie-membership/internal/domain"
	"movie-membership/internal/infrastructure/kafka"
	"movie-membership/internal/infrastructure/metrics"
	"movie-membership/internal/infrastructure/momo"
	"movie-membership/internal/logger"
)

var testEpoch = time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)

const (
	testAccessKey = "F8BBA842ECF85"
	testSecretKey = "K951B6PE1waDMi640xX08PD3vg6EkVlz"
)

// serialTx runs one transaction at a time, standing in for the row lock.
type serialTx struct {
	mu sync.Mutex
}

func (s *serialTx) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(nil)
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemOrders(seed ...domain.Order) *memOrders {
	m := &memOrders{orders: map[string]domain.Order{}}
	for _, o := range seed {
		m.orders[o.OrderID] = o
	}
	return m
}

func (m *memOrders) CreateOrder(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.OrderID]; ok {
		return fmt.Errorf("%w: order %s already exists", domain.ErrConflict, o.OrderID)
	}
	m.orders[o.OrderID] = *o
	return nil
}

func (m *memOrders) FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return &o, nil
}

func (m *memOrders) FindByOrderIDForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Order, error) {
	return m.FindByOrderID(ctx, orderID)
}

func (m *memOrders) UpdateResolution(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.OrderID]
	if !ok || stored.Status != domain.OrderPending {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyResolved, o.OrderID)
	}
	stored.Status = o.Status
	stored.TransID = o.TransID
	if len(o.RawIPN) > 0 {
		stored.RawIPN = o.RawIPN
	}
	if len(o.RawQuery) > 0 {
		stored.RawQuery = o.RawQuery
	}
	stored.UpdatedAt = o.UpdatedAt
	m.orders[o.OrderID] = stored
	return nil
}

func (m *memOrders) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memOrders) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) get(orderID string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID]
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memPlans struct {
	plans []domain.Plan
}

func (m *memPlans) ListActive(ctx context.Context) ([]domain.Plan, error) {
	return m.plans, nil
}

func (m *memPlans) FindActiveByCode(ctx context.Context, code string) (*domain.Plan, error) {
	for _, p := range m.plans {
		if p.Code == code && p.IsActive {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: plan %q", domain.ErrNotFound, code)
}

func (m *memPlans) FindByID(ctx context.Context, id string) (*domain.Plan, error) {
	for _, p := range m.plans {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: plan %s", domain.ErrNotFound, id)
}

func (m *memPlans) Upsert(ctx context.Context, plan *domain.Plan) error {
	m.plans = append(m.plans, *plan)
	return nil
}

type memMemberships struct {
	mu    sync.Mutex
	saved map[string]domain.Membership
}

func newMemMemberships() *memMemberships {
	return &memMemberships{saved: map[string]domain.Membership{}}
}

func (m *memMemberships) FindByUser(ctx context.Context, userID string) (*domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.saved[userID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *memMemberships) FindByUserForUpdate(ctx context.Context, tx *sql.Tx, userID string) (*domain.Membership, error) {
	return m.FindByUser(ctx, userID)
}

func (m *memMemberships) Save(ctx context.Context, tx *sql.Tx, v *domain.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[v.UserID] = *v
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	queryCalls  int
	createFunc  func(ctx context.Context, p momo.CreateParams) (*momo.CreateResponse, []byte, error)
	queryFunc   func(ctx context.Context, orderID, requestID string) (*momo.QueryResponse, []byte, error)
}

func (f *fakeGateway) Create(ctx context.Context, p momo.CreateParams) (*momo.CreateResponse, []byte, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	if f.createFunc != nil {
		return f.createFunc(ctx, p)
	}
	res := &momo.CreateResponse{OrderID: p.OrderID, RequestID: p.RequestID, Amount: p.Amount, PayURL: "https://pay.example/" + p.OrderID}
	raw, _ := json.Marshal(res)
	return res, raw, nil
}

func (f *fakeGateway) Query(ctx context.Context, orderID, requestID string) (*momo.QueryResponse, []byte, error) {
	f.mu.Lock()
	f.queryCalls++
	f.mu.Unlock()
	if f.queryFunc != nil {
		return f.queryFunc(ctx, orderID, requestID)
	}
	return nil, nil, fmt.Errorf("%w: no query stub", domain.ErrUpstream)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.PaymentEvent
}

func (r *recordingPublisher) PublishPayment(ctx context.Context, e kafka.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	orders      *memOrders
	plans       *memPlans
	memberships *memMemberships
	gateway     *fakeGateway
	events      *recordingPublisher
	orderSvc    OrderService
	callbackSvc CallbackService
	memberSvc   MembershipService
	resolver    *Resolver
	metrics     *metrics.PaymentMetrics
	now         time.Time
}

var standardPlan = domain.Plan{
	ID:           "P1",
	Code:         "standard",
	Name:         "Standard",
	PriceMonthly: 50000,
	PriceYearly:  500000,
	DurationDays: 30,
	IsActive:     true,
}

func newFixture(t *testing.T, seed ...domain.Order) *fixture {
	t.Helper()
	f := &fixture{
		orders:      newMemOrders(seed...),
		plans:       &memPlans{plans: []domain.Plan{standardPlan}},
		memberships: newMemMemberships(),
		gateway:     &fakeGateway{},
		events:      &recordingPublisher{},
		now:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	log := logger.Discard()
	m := metrics.NewPaymentMetrics(prometheus.NewRegistry())
	tx := &serialTx{}

	ms := NewMembershipService(f.plans, f.memberships, log)
	ms.(*membershipService).now = clock
	resolver := NewResolver(tx, f.orders, ms, f.events, m, log)
	resolver.now = clock

	orderSvc := NewOrderService(tx, f.orders, f.plans, f.gateway, resolver, CheckoutConfig{
		PartnerCode: "MOMO",
		RequestType: "payWithMethod",
		RedirectURL: "http://localhost:3000/payment/result",
		IPNURL:      "http://localhost:5000/api/momo/ipn",
	}, f.events, m, log)
	orderSvc.(*orderService).now = clock

	cs := NewCallbackService(f.orders, f.gateway, resolver, VerifyConfig{
		AccessKey: testAccessKey,
		SecretKey: testSecretKey,
	}, m, log)

	f.orderSvc = orderSvc
	f.callbackSvc = cs
	f.memberSvc = ms
	f.resolver = resolver
	f.metrics = m
	return f
}

func pendingOrder(orderID, userID string, amount int64, createdAt time.Time) domain.Order {
	return domain.Order{
		OrderID:   orderID,
		RequestID: orderID,
		UserID:    userID,
		PlanID:    standardPlan.ID,
		Period:    domain.PeriodMonthly,
		Amount:    amount,
		OrderInfo: "Buy Standard (monthly)",
		PayURL:    "https://pay.example/" + orderID,
		Status:    domain.OrderPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func notification(orderID string, amount int64, resultCode int, transID string) momo.Notification {
	return momo.Notification{
		PartnerCode:  "MOMO",
		OrderID:      orderID,
		RequestID:    orderID,
		Amount:       json.Number(strconv.FormatInt(amount, 10)),
		OrderInfo:    "Buy Standard (monthly)",
		OrderType:    "momo_wallet",
		TransID:      momo.Scalar(transID),
		ResultCode:   json.Number(strconv.Itoa(resultCode)),
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: json.Number("1721720663942"),
	}
}

func signedBody(t *testing.T, n momo.Notification) []byte {
	t.Helper()
	n.Signature = momo.Sign(momo.NotificationFields(testAccessKey, n), testSecretKey)
	return mustMarshal(t, n)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func returnQuery(n momo.Notification) url.Values {
	n.Signature = momo.Sign(momo.NotificationFields(testAccessKey, n), testSecretKey)
	return url.Values{
		"partnerCode":  {n.PartnerCode},
		"orderId":      {n.OrderID},
		"requestId":    {n.RequestID},
		"amount":       {n.Amount.String()},
		"orderInfo":    {n.OrderInfo},
		"orderType":    {n.OrderType},
		"transId":      {n.TransID.String()},
		"resultCode":   {n.ResultCode.String()},
		"message":      {n.Message},
		"payType":      {n.PayType},
		"responseTime": {n.ResponseTime.String()},
		"extraData":    {n.ExtraData},
		"signature":    {n.Signature},
	}
}
