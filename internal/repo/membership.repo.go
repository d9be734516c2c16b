package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"movie-membership/internal/domain"
)

type MembershipRepo interface {
	FindByUser(ctx context.Context, userID string) (*domain.Membership, error)
	FindByUserForUpdate(ctx context.Context, tx *sql.Tx, userID string) (*domain.Membership, error)
	Save(ctx context.Context, tx *sql.Tx, m *domain.Membership) error
}

type membershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) MembershipRepo {
	return &membershipRepo{db: db}
}

// FindByUser returns nil, nil when the user never had a membership.
func (r *membershipRepo) FindByUser(ctx context.Context, userID string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, plan_id, status, started_at, expires_at, created_at, updated_at
         FROM memberships WHERE user_id = $1`, userID)
	return scanMembership(row)
}

// FindByUserForUpdate serializes activations for one user until tx ends.
// The advisory lock covers users with no row yet, where FOR UPDATE alone
// would lock nothing.
func (r *membershipRepo) FindByUserForUpdate(ctx context.Context, tx *sql.Tx, userID string) (*domain.Membership, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
		return nil, fmt.Errorf("lock membership %s: %w", userID, err)
	}
	row := tx.QueryRowContext(ctx,
		`SELECT user_id, plan_id, status, started_at, expires_at, created_at, updated_at
         FROM memberships WHERE user_id = $1 FOR UPDATE`, userID)
	return scanMembership(row)
}

func (r *membershipRepo) Save(ctx context.Context, tx *sql.Tx, m *domain.Membership) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO memberships (user_id, plan_id, status, started_at, expires_at, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         ON CONFLICT (user_id) DO UPDATE SET
             plan_id = EXCLUDED.plan_id,
             status = EXCLUDED.status,
             started_at = EXCLUDED.started_at,
             expires_at = EXCLUDED.expires_at,
             updated_at = EXCLUDED.updated_at`,
		m.UserID, m.PlanID, string(m.Status), m.StartedAt, m.ExpiresAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save membership %s: %w", m.UserID, err)
	}
	return nil
}

func scanMembership(row scanner) (*domain.Membership, error) {
	var (
		m      domain.Membership
		status string
	)
	err := row.Scan(&m.UserID, &m.PlanID, &status, &m.StartedAt, &m.ExpiresAt, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select membership: %w", err)
	}
	m.Status = domain.MembershipStatus(status)
	return &m, nil
}
