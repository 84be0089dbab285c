package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

// Queries use "?" bindvars and are rebound for the driver in use.
const (
	aggregateQuery = `
WITH positive_points AS (
	SELECT COALESCE(SUM(points), 0) AS total
	FROM points_transactions
	WHERE user_id = ? AND is_positive = TRUE
),
negative_points AS (
	SELECT COALESCE(SUM(points), 0) AS total
	FROM points_transactions
	WHERE user_id = ? AND is_positive = FALSE
),
transaction_count AS (
	SELECT COUNT(*) AS n
	FROM points_transactions
	WHERE user_id = ?
)
SELECT
	(SELECT total FROM positive_points) AS positive_points,
	(SELECT total FROM negative_points) AS negative_points,
	(SELECT n FROM transaction_count) AS transaction_count,
	(SELECT total FROM positive_points) - (SELECT total FROM negative_points) AS total_points`

	delegatedQuery = `SELECT get_user_points_balance(?)`

	transactionColumns = `id, user_id, points, is_positive, category, created_at`

	insertTransactionQuery = `
INSERT INTO points_transactions (id, user_id, points, is_positive, category, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
)

var orderingColumns = map[string]string{
	"created_at": "created_at",
	"points":     "points",
}

type (
	aggregateRow struct {
		Positive decimal.Decimal `db:"positive_points"`
		Negative decimal.Decimal `db:"negative_points"`
		Count    int64           `db:"transaction_count"`
		Total    decimal.Decimal `db:"total_points"`
	}

	transactionRow struct {
		ID         string      `db:"id"`
		UserID     string      `db:"user_id"`
		Points     int64       `db:"points"`
		IsPositive bool        `db:"is_positive"`
		Category   null.String `db:"category"`
		CreatedAt  time.Time   `db:"created_at"`
	}
)

type ledgerRepository struct {
	exec core.DBExecutor
}

var _ points.Ledger = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(exec core.DBExecutor) *ledgerRepository {
	return &ledgerRepository{exec: exec}
}

func (repo ledgerRepository) boil(tx points.Transaction) transactionRow {
	return transactionRow{
		ID:         tx.ID,
		UserID:     tx.OwnerID,
		Points:     tx.Points,
		IsPositive: tx.IsPositive,
		Category:   null.NewString(tx.Category, tx.Category != ""),
		CreatedAt:  tx.CreatedAt.UTC(),
	}
}

func (repo ledgerRepository) unboil(row transactionRow) points.Transaction {
	return points.Transaction{
		ID:         row.ID,
		OwnerID:    row.UserID,
		Points:     row.Points,
		IsPositive: row.IsPositive,
		Category:   row.Category.String,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func (repo ledgerRepository) unboilSlice(rows []transactionRow) []points.Transaction {
	txs := make([]points.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, repo.unboil(row))
	}
	return txs
}

func (repo ledgerRepository) AggregateBalance(ctx context.Context, ownerID string) (points.Aggregate, error) {
	exec := repo.exec
	var row aggregateRow
	if err := sqlx.GetContext(ctx, exec, &row, exec.Rebind(aggregateQuery), ownerID, ownerID, ownerID); err != nil {
		return points.Aggregate{}, errors.Wrap(err, "querying aggregate balance")
	}
	return points.Aggregate{
		Positive: row.Positive,
		Negative: row.Negative,
		Count:    row.Count,
		Total:    row.Total,
	}, nil
}

func (repo ledgerRepository) DelegatedBalance(ctx context.Context, ownerID string) (null.Int64, error) {
	exec := repo.exec
	var total null.Int64
	if err := sqlx.GetContext(ctx, exec, &total, exec.Rebind(delegatedQuery), ownerID); err != nil {
		return null.Int64{}, errors.Wrap(err, "calling get_user_points_balance")
	}
	return total, nil
}

func (repo ledgerRepository) TransactionsByOwner(ctx context.Context, ownerID string) ([]points.Transaction, error) {
	return repo.QueryTransactions(ctx, points.QueryFilter{OwnerID: ownerID}, nil)
}

func (repo ledgerRepository) CreateTransaction(ctx context.Context, tx points.Transaction) (points.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	row := repo.boil(tx)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(insertTransactionQuery),
		row.ID, row.UserID, row.Points, row.IsPositive, row.Category, row.CreatedAt)
	if err != nil {
		return points.Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	return repo.unboil(row), nil
}

func (repo ledgerRepository) QueryTransactions(ctx context.Context, filter points.QueryFilter, ordering []core.DBOrdering) ([]points.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OwnerID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	q := "SELECT " + transactionColumns + " FROM points_transactions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if orderBy := buildOrderBy(ordering); orderBy != "" {
		q += " ORDER BY " + orderBy
	}

	exec := repo.exec
	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, exec, &rows, exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting transactions")
	}
	return repo.unboilSlice(rows), nil
}

func (repo ledgerRepository) QueryOwnerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, repo.exec, &ids, "SELECT DISTINCT user_id FROM points_transactions ORDER BY user_id")
	if err != nil {
		return nil, errors.Wrap(err, "selecting owners")
	}
	return ids, nil
}

// buildOrderBy turns orderings into an ORDER BY clause, skipping unknown fields.
func buildOrderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := orderingColumns[ord.Field]
		if !ok {
			continue
		}
		ord.Field = col
		clauses = append(clauses, ord.String())
	}
	return strings.Join(clauses, ", ")
}
