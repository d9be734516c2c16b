package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"movie-membership/internal/domain"
)

const uniqueViolation = "23505"

const orderColumns = `order_id, request_id, user_id, plan_id, period, amount, order_info, pay_url, trans_id, status, raw_create_res, raw_ipn, raw_query, created_at, updated_at`

type OrderRepo interface {
	CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error)
	FindByOrderIDForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Order, error)
	UpdateResolution(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (order_id, request_id, user_id, plan_id, period, amount, order_info, pay_url, status, raw_create_res, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.OrderID, order.RequestID, order.UserID, order.PlanID, string(order.Period), order.Amount,
		order.OrderInfo, order.PayURL, string(order.Status), nullJSON(order.RawCreateRes), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: order %s already exists", domain.ErrConflict, order.OrderID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepo) FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	return scanOrder(row, orderID)
}

// FindByOrderIDForUpdate holds the row lock until tx ends, so concurrent
// callbacks for one order serialize here.
func (r *orderRepo) FindByOrderIDForUpdate(ctx context.Context, tx *sql.Tx, orderID string) (*domain.Order, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1 FOR UPDATE`, orderID)
	return scanOrder(row, orderID)
}

// UpdateResolution only writes over a pending row.
func (r *orderRepo) UpdateResolution(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders
         SET status = $2, trans_id = $3, raw_ipn = COALESCE($4, raw_ipn), raw_query = COALESCE($5, raw_query), updated_at = $6
         WHERE order_id = $1 AND status = 'pending'`,
		order.OrderID, string(order.Status), order.TransID, nullJSON(order.RawIPN), nullJSON(order.RawQuery), order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.OrderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.OrderID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyResolved, order.OrderID)
	}
	return nil
}

func (r *orderRepo) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
         WHERE status = 'pending' AND created_at < $1
         ORDER BY created_at
         LIMIT $2`,
		time.Now().Add(-olderThan), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner, orderID string) (*domain.Order, error) {
	o, err := scanOrderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

func scanOrderRow(row scanner) (*domain.Order, error) {
	var (
		o                        domain.Order
		period, status           string
		rawCreate, rawIPN, rawQy []byte
	)
	err := row.Scan(
		&o.OrderID,
		&o.RequestID,
		&o.UserID,
		&o.PlanID,
		&period,
		&o.Amount,
		&o.OrderInfo,
		&o.PayURL,
		&o.TransID,
		&status,
		&rawCreate,
		&rawIPN,
		&rawQy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Period = domain.Period(period)
	o.Status = domain.OrderStatus(status)
	o.RawCreateRes = json.RawMessage(rawCreate)
	o.RawIPN = json.RawMessage(rawIPN)
	o.RawQuery = json.RawMessage(rawQy)
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return orders, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
