package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"movie-membership/internal/domain"
	"movie-membership/internal/repo"
)

type MembershipStatus struct {
	Active    bool         `json:"active"`
	Plan      *domain.Plan `json:"plan"`
	ExpiresAt *time.Time   `json:"expiresAt"`
	Admin     bool         `json:"admin,omitempty"`
}

type MembershipService interface {
	Status(ctx context.Context, userID string, isAdmin bool) (*MembershipStatus, error)
	Activate(ctx context.Context, tx *sql.Tx, order *domain.Order) error
}

type membershipService struct {
	plans       repo.PlanRepo
	memberships repo.MembershipRepo
	log         *slog.Logger
	now         func() time.Time
}

func NewMembershipService(plans repo.PlanRepo, memberships repo.MembershipRepo, log *slog.Logger) MembershipService {
	return &membershipService{
		plans:       plans,
		memberships: memberships,
		log:         log,
		now:         time.Now,
	}
}

// Activate credits the order's plan to the buyer inside the caller's
// transaction, so a paid order and its membership commit together.
func (s *membershipService) Activate(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	period := time.Duration(domain.DefaultPlanDurationDays) * 24 * time.Hour
	plan, err := s.plans.FindByID(ctx, order.PlanID)
	switch {
	case err == nil:
		period = plan.Duration()
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn("plan missing for paid order, using default duration",
			slog.String("order_id", order.OrderID), slog.String("plan_id", order.PlanID))
	default:
		return err
	}

	current, err := s.memberships.FindByUserForUpdate(ctx, tx, order.UserID)
	if err != nil {
		return err
	}

	now := s.now()
	extended := current.ActiveAt(now)
	next := domain.Activate(current, order.UserID, order.PlanID, period, now)
	if err := s.memberships.Save(ctx, tx, next); err != nil {
		return err
	}

	s.log.Info("membership credited",
		slog.String("user_id", order.UserID),
		slog.String("order_id", order.OrderID),
		slog.Bool("extended", extended),
		slog.Time("expires_at", next.ExpiresAt),
	)
	return nil
}

func (s *membershipService) Status(ctx context.Context, userID string, isAdmin bool) (*MembershipStatus, error) {
	if isAdmin {
		return &MembershipStatus{Active: true, Admin: true}, nil
	}

	m, err := s.memberships.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &MembershipStatus{}, nil
	}

	st := &MembershipStatus{
		Active:    m.ActiveAt(s.now()),
		ExpiresAt: &m.ExpiresAt,
	}
	plan, err := s.plans.FindByID(ctx, m.PlanID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	st.Plan = plan
	return st, nil
}
