package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

type ledgerRepository struct {
	db *DB
}

var _ points.Ledger = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) points.Ledger {
	return &ledgerRepository{db: db}
}

// byOwner returns the transactions of ownerID. Callers hold the lock.
func (repo *ledgerRepository) byOwner(ownerID string) []points.Transaction {
	txs := make([]points.Transaction, 0)
	for _, tx := range repo.db.ledger {
		if tx.OwnerID == ownerID {
			txs = append(txs, tx)
		}
	}
	return txs
}

func (repo *ledgerRepository) AggregateBalance(_ context.Context, ownerID string) (points.Aggregate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultAggregate); err != nil {
		return points.Aggregate{}, err
	}
	var agg points.Aggregate
	for _, tx := range repo.byOwner(ownerID) {
		if tx.IsPositive {
			agg.Positive = agg.Positive.Add(decimal.NewFromInt(tx.Points))
		} else {
			agg.Negative = agg.Negative.Add(decimal.NewFromInt(tx.Points))
		}
		agg.Count++
	}
	agg.Total = agg.Positive.Sub(agg.Negative)
	return agg, nil
}

func (repo *ledgerRepository) DelegatedBalance(_ context.Context, ownerID string) (null.Int64, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultDelegated); err != nil {
		return null.Int64{}, err
	}
	if repo.db.nullDelegated {
		return null.Int64{}, nil
	}
	var total int64
	for _, tx := range repo.byOwner(ownerID) {
		total += tx.Signed()
	}
	return null.Int64From(total), nil
}

func (repo *ledgerRepository) TransactionsByOwner(_ context.Context, ownerID string) ([]points.Transaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultFetch); err != nil {
		return nil, err
	}
	return repo.byOwner(ownerID), nil
}

func (repo *ledgerRepository) CreateTransaction(_ context.Context, tx points.Transaction) (points.Transaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultCreate); err != nil {
		return points.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	repo.db.ledger = append(repo.db.ledger, tx)
	return tx, nil
}

func (repo *ledgerRepository) QueryTransactions(_ context.Context, filter points.QueryFilter, ordering []core.DBOrdering) ([]points.Transaction, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultFetch); err != nil {
		return nil, err
	}
	txs := make([]points.Transaction, 0)
	for _, tx := range repo.db.ledger {
		if filter.OwnerID != "" && tx.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Category != "" && tx.Category != filter.Category {
			continue
		}
		txs = append(txs, tx)
	}

	sort.SliceStable(txs, func(i, j int) bool {
		for _, ord := range ordering {
			var less, greater bool
			switch ord.Field {
			case "created_at":
				less, greater = txs[i].CreatedAt.Before(txs[j].CreatedAt), txs[i].CreatedAt.After(txs[j].CreatedAt)
			case "points":
				less, greater = txs[i].Points < txs[j].Points, txs[i].Points > txs[j].Points
			default:
				continue
			}
			if !ord.Ascending {
				less, greater = greater, less
			}
			if less || greater {
				return less
			}
		}
		return false
	})
	return txs, nil
}

func (repo *ledgerRepository) QueryOwnerIDs(_ context.Context) ([]string, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.call(FaultOwners); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, tx := range repo.db.ledger {
		if !seen[tx.OwnerID] {
			seen[tx.OwnerID] = true
			ids = append(ids, tx.OwnerID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
