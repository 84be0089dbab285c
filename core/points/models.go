package points

import "time"

// Method tells how a balance was obtained.
type Method string

const (
	MethodSummaryCache Method = "summary-cache"
	MethodDirectSQL    Method = "direct-sql"
	MethodRPC          Method = "rpc"
	MethodManual       Method = "manual"
)

type (
	// Transaction is an immutable ledger entry. Points is always a magnitude, IsPositive carries the sign.
	Transaction struct {
		ID         string    `json:"id"`
		OwnerID    string    `json:"userId"`
		Points     int64     `json:"points"`
		IsPositive bool      `json:"isPositive"`
		Category   string    `json:"category"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	NewTransaction struct {
		OwnerID    string `json:"userId" validate:"required"`
		Points     int64  `json:"points" validate:"gte=0"`
		IsPositive bool   `json:"isPositive"`
		Category   string `json:"category" validate:"required,max=50,slug"`
	}

	// Summary is the denormalized balance of an owner, derived from the ledger.
	Summary struct {
		OwnerID   string    `json:"userId"`
		Points    int64     `json:"points"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Balance struct {
		Points           int64
		PositivePoints   *int64
		NegativePoints   *int64
		TransactionCount *int
		Method           Method
	}

	ReconcileResult struct {
		OwnerID           string `json:"userId"`
		Points            int64  `json:"points"`
		Method            Method `json:"method"`
		PositivePoints    *int64 `json:"positivePoints,omitempty"`
		NegativePoints    *int64 `json:"negativePoints,omitempty"`
		TransactionCount  *int   `json:"transactionCount,omitempty"`
		UpdateSuccess     bool   `json:"updateSuccess"`
		PreviouslyExisted bool   `json:"previouslyExisted"`
	}

	QueryFilter struct {
		OwnerID  string
		Category string
	}
)

// Signed returns the signed value of the transaction.
func (tx Transaction) Signed() int64 {
	if tx.IsPositive {
		return tx.Points
	}
	return -tx.Points
}

func int64Ptr(i int64) *int64 { return &i }
func intPtr(i int) *int       { return &i }
