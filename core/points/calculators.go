package points

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

type (
	// Aggregate is the ledger summed up in a single query.
	Aggregate struct {
		Positive decimal.Decimal
		Negative decimal.Decimal
		Count    int64
		Total    decimal.Decimal
	}

	AggregateSource interface {
		AggregateBalance(ctx context.Context, ownerID string) (Aggregate, error)
	}

	// DelegatedSource exposes the balance function maintained by the ledger store itself.
	DelegatedSource interface {
		DelegatedBalance(ctx context.Context, ownerID string) (null.Int64, error)
	}

	TransactionSource interface {
		TransactionsByOwner(ctx context.Context, ownerID string) ([]Transaction, error)
	}

	// Calculator computes the balance of an owner one way.
	// Attempt returns a nil Balance and a nil error when it has no answer.
	Calculator interface {
		Method() Method
		Attempt(ctx context.Context, ownerID string) (*Balance, error)
	}
)

// LedgerFetchError is returned when the ledger itself cannot be read. No calculator can recover from it.
type LedgerFetchError struct {
	OwnerID string
	Err     error
}

func (e *LedgerFetchError) Error() string {
	return "fetching transactions of " + e.OwnerID + ": " + e.Err.Error()
}

func (e *LedgerFetchError) Unwrap() error { return e.Err }

// DefaultCalculators returns the calculators in priority order: aggregate query, delegated function, manual fold.
func DefaultCalculators(ledger Ledger) []Calculator {
	return []Calculator{
		NewAggregateCalculator(ledger),
		NewDelegatedCalculator(ledger),
		NewManualCalculator(ledger),
	}
}

// CalculatorsByMethod picks calculators by their method tag, keeping the requested order.
func CalculatorsByMethod(ledger Ledger, methods []string) ([]Calculator, error) {
	available := make(map[Method]Calculator)
	for _, calc := range DefaultCalculators(ledger) {
		available[calc.Method()] = calc
	}
	calcs := make([]Calculator, 0, len(methods))
	for _, m := range methods {
		calc, ok := available[Method(m)]
		if !ok {
			return nil, errors.Errorf("unknown calculator %q", m)
		}
		calcs = append(calcs, calc)
	}
	if len(calcs) == 0 {
		return nil, ErrNoCalculator
	}
	return calcs, nil
}

type aggregateCalculator struct {
	src AggregateSource
}

func NewAggregateCalculator(src AggregateSource) Calculator {
	return aggregateCalculator{src: src}
}

func (aggregateCalculator) Method() Method { return MethodDirectSQL }

func (calc aggregateCalculator) Attempt(ctx context.Context, ownerID string) (*Balance, error) {
	agg, err := calc.src.AggregateBalance(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !agg.Total.IsInteger() || !agg.Positive.IsInteger() || !agg.Negative.IsInteger() {
		return nil, errors.Errorf("malformed aggregate: total=%s positive=%s negative=%s", agg.Total, agg.Positive, agg.Negative)
	}
	if !agg.Total.Equal(agg.Positive.Sub(agg.Negative)) {
		return nil, errors.Errorf("aggregate total %s does not match %s - %s", agg.Total, agg.Positive, agg.Negative)
	}
	return &Balance{
		Points:           agg.Total.IntPart(),
		PositivePoints:   int64Ptr(agg.Positive.IntPart()),
		NegativePoints:   int64Ptr(agg.Negative.IntPart()),
		TransactionCount: intPtr(int(agg.Count)),
		Method:           MethodDirectSQL,
	}, nil
}

type delegatedCalculator struct {
	src DelegatedSource
}

func NewDelegatedCalculator(src DelegatedSource) Calculator {
	return delegatedCalculator{src: src}
}

func (delegatedCalculator) Method() Method { return MethodRPC }

func (calc delegatedCalculator) Attempt(ctx context.Context, ownerID string) (*Balance, error) {
	total, err := calc.src.DelegatedBalance(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !total.Valid {
		return nil, nil
	}
	return &Balance{Points: total.Int64, Method: MethodRPC}, nil
}

type manualCalculator struct {
	src TransactionSource
}

func NewManualCalculator(src TransactionSource) Calculator {
	return manualCalculator{src: src}
}

func (manualCalculator) Method() Method { return MethodManual }

func (calc manualCalculator) Attempt(ctx context.Context, ownerID string) (*Balance, error) {
	txs, err := calc.src.TransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, &LedgerFetchError{OwnerID: ownerID, Err: err}
	}
	var positive, negative int64
	for _, tx := range txs {
		if tx.IsPositive {
			positive += tx.Points
		} else {
			negative += tx.Points
		}
	}
	return &Balance{
		Points:           positive - negative,
		PositivePoints:   int64Ptr(positive),
		NegativePoints:   int64Ptr(negative),
		TransactionCount: intPtr(len(txs)),
		Method:           MethodManual,
	}, nil
}
