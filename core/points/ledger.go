package points

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nujoom/school/core"
)

var (
	// OrderingFields are the fields the ledger can be ordered by.
	OrderingFields = map[string]bool{"created_at": true, "points": true}

	defaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
)

// Record appends a transaction to the ledger then reconciles the balance of its owner, refreshing cached views.
func (svc *Service) Record(ctx context.Context, nt NewTransaction, locale string) (Transaction, SyncResult, error) {
	nt.OwnerID = core.CleanString(nt.OwnerID)
	nt.Category = core.CleanString(nt.Category, true)
	if err := svc.validate.Struct(nt); err != nil {
		return Transaction{}, SyncResult{}, err
	}

	tx, err := svc.ledger.CreateTransaction(ctx, Transaction{
		ID:         uuid.New().String(),
		OwnerID:    nt.OwnerID,
		Points:     nt.Points,
		IsPositive: nt.IsPositive,
		Category:   nt.Category,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Transaction{}, SyncResult{}, errors.Wrap(err, "recording transaction")
	}
	svc.logger.Info("points transaction recorded", map[string]interface{}{
		"owner_id":    tx.OwnerID,
		"points":      tx.Signed(),
		"category":    tx.Category,
		"transaction": tx.ID,
	})
	return tx, svc.Sync(ctx, tx.OwnerID, true, locale), nil
}

// History returns the ledger entries of ownerID, newest first unless ordering says otherwise.
func (svc *Service) History(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]Transaction, error) {
	ownerID, err := checkOwner(ownerID)
	if err != nil {
		return nil, err
	}
	for _, ord := range ordering {
		if !OrderingFields[ord.Field] {
			err := errors.Errorf("cannot order by %q", ord.Field)
			return nil, core.NewValidationError(err, core.FieldError{Field: "ordering", Error: err.Error()})
		}
	}
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	return svc.ledger.QueryTransactions(ctx, QueryFilter{OwnerID: ownerID}, ordering)
}
