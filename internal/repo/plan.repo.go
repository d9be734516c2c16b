package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"movie-membership/internal/domain"
)

const planColumns = `id, code, name, description, price_monthly, price_yearly, duration_days, is_active, created_at, updated_at`

type PlanRepo interface {
	ListActive(ctx context.Context) ([]domain.Plan, error)
	FindActiveByCode(ctx context.Context, code string) (*domain.Plan, error)
	FindByID(ctx context.Context, id string) (*domain.Plan, error)
	Upsert(ctx context.Context, plan *domain.Plan) error
}

type planRepo struct {
	db *sql.DB
}

func NewPlanRepo(db *sql.DB) PlanRepo {
	return &planRepo{db: db}
}

func (r *planRepo) ListActive(ctx context.Context) ([]domain.Plan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE is_active ORDER BY price_monthly`)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	plans := make([]domain.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return plans, nil
}

func (r *planRepo) FindActiveByCode(ctx context.Context, code string) (*domain.Plan, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	row := r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE code = $1 AND is_active`, code)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan %q", domain.ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("select plan: %w", err)
	}
	return p, nil
}

// FindByID treats an id that is not a UUID as unknown rather than letting
// the cast fail in the database.
func (r *planRepo) FindByID(ctx context.Context, id string) (*domain.Plan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: plan %s", domain.ErrNotFound, id)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select plan: %w", err)
	}
	return p, nil
}

// Upsert keys on code; the id of an existing plan is kept.
func (r *planRepo) Upsert(ctx context.Context, plan *domain.Plan) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO plans (id, code, name, description, price_monthly, price_yearly, duration_days, is_active)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         ON CONFLICT (code) DO UPDATE SET
             name = EXCLUDED.name,
             description = EXCLUDED.description,
             price_monthly = EXCLUDED.price_monthly,
             price_yearly = EXCLUDED.price_yearly,
             duration_days = EXCLUDED.duration_days,
             is_active = EXCLUDED.is_active,
             updated_at = now()
         RETURNING id`,
		plan.ID, strings.ToLower(plan.Code), plan.Name, plan.Description,
		plan.PriceMonthly, plan.PriceYearly, plan.DurationDays, plan.IsActive,
	).Scan(&plan.ID)
	if err != nil {
		return fmt.Errorf("upsert plan %s: %w", plan.Code, err)
	}
	return nil
}

func scanPlan(row scanner) (*domain.Plan, error) {
	var p domain.Plan
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.Description,
		&p.PriceMonthly,
		&p.PriceYearly,
		&p.DurationDays,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
