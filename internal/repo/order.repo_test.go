package repo

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"movie-membership/internal/domain"
)

var orderColumnNames = []string{
	"order_id", "request_id", "user_id", "plan_id", "period", "amount", "order_info", "pay_url",
	"trans_id", "status", "raw_create_res", "raw_ipn", "raw_query", "created_at", "updated_at",
}

const insertOrderSQL = `INSERT INTO orders (order_id, request_id, user_id, plan_id, period, amount, order_info, pay_url, status, raw_create_res, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const updateResolutionSQL = `UPDATE orders
         SET status = $2, trans_id = $3, raw_ipn = COALESCE($4, raw_ipn), raw_query = COALESCE($5, raw_query), updated_at = $6
         WHERE order_id = $1 AND status = 'pending'`

func newPendingOrder(now time.Time) *domain.Order {
	return &domain.Order{
		OrderID:      "MOMO1700000000000",
		RequestID:    "MOMO1700000000000",
		UserID:       "U1",
		PlanID:       "P1",
		Period:       domain.PeriodMonthly,
		Amount:       50000,
		OrderInfo:    "Buy Standard (monthly)",
		PayURL:       "https://pay.example/x",
		Status:       domain.OrderPending,
		RawCreateRes: []byte(`{"resultCode":0}`),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

func TestOrderRepoCreate_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepo(db)
	now := time.Now()
	o := newPendingOrder(now)

	tx := beginTx(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta(insertOrderSQL)).
		WithArgs(o.OrderID, o.RequestID, o.UserID, o.PlanID, "monthly", o.Amount, o.OrderInfo, o.PayURL,
			"pending", `{"resultCode":0}`, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateOrder(context.Background(), tx, o))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoCreate_DuplicateIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepo(db)
	o := newPendingOrder(time.Now())

	tx := beginTx(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta(insertOrderSQL)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err = repo.CreateOrder(context.Background(), tx, o)
	require.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoFindByOrderID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`)).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(
			"O1", "O1", "U1", "P1", "monthly", int64(50000), "Buy", "https://pay.example/x",
			"T1", "paid", []byte(`{"resultCode":0}`), []byte(`{"resultCode":0,"transId":"T1"}`), nil, now, now,
		))

	o, err := repo.FindByOrderID(context.Background(), "O1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderPaid, o.Status)
	require.Equal(t, domain.PeriodMonthly, o.Period)
	require.Equal(t, "T1", o.TransID)
	require.JSONEq(t, `{"resultCode":0,"transId":"T1"}`, string(o.RawIPN))
	require.Empty(t, o.RawQuery)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoFindByOrderID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByOrderID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoUpdateResolution(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepo(db)
	now := time.Now()
	o := newPendingOrder(now)
	o.Resolve(0, "T1")
	o.RawIPN = []byte(`{"transId":"T1"}`)

	tx := beginTx(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta(updateResolutionSQL)).
		WithArgs(o.OrderID, "paid", "T1", `{"transId":"T1"}`, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateResolution(context.Background(), tx, o))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoUpdateResolution_NotPendingAnymore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepo(db)
	o := newPendingOrder(time.Now())
	o.Fail()

	tx := beginTx(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta(updateResolutionSQL)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateResolution(context.Background(), tx, o)
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoFindStalePending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOrderRepo(db)
	old := time.Now().Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + orderColumns + ` FROM orders
         WHERE status = 'pending' AND created_at < $1
         ORDER BY created_at
         LIMIT $2`)).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow("O1", "O1", "U1", "P1", "monthly", int64(50000), "Buy", "", "", "pending", nil, nil, nil, old, old).
			AddRow("O2", "O2", "U2", "P1", "yearly", int64(90000), "Buy", "", "", "pending", nil, nil, nil, old, old))

	orders, err := repo.FindStalePending(context.Background(), 15*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "O2", orders[1].OrderID)
	require.Equal(t, domain.PeriodYearly, orders[1].Period)
	require.NoError(t, mock.ExpectationsWereMet())
}
