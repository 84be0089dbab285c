package points

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/nujoom/school/core"
)

// OwnerRequiredText is the error text exposed to programmatic callers when the owner is missing.
const OwnerRequiredText = "User ID is required"

var (
	// errors
	ErrOwnerRequired   = errors.New("user ID is required")
	ErrSummaryNotFound = errors.New("balance summary not found")
	ErrNoCalculator    = errors.New("no balance calculator produced a result")

	invalidateTimeout = 5 * time.Second
)

type (
	Ledger interface {
		AggregateSource
		DelegatedSource
		TransactionSource

		CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error)
		QueryTransactions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Transaction, error)
		QueryOwnerIDs(ctx context.Context) ([]string, error)
	}

	SummaryStore interface {
		GetSummary(ctx context.Context, ownerID string) (Summary, error)
		SummaryExists(ctx context.Context, ownerID string) (bool, error)
		// UpsertSummary inserts or replaces the summary in one atomic statement.
		UpsertSummary(ctx context.Context, summary Summary) error
		QuerySummaries(ctx context.Context) ([]Summary, error)
	}

	// SummaryWriter is the alternative write path used when SummaryStore.UpsertSummary fails.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, ownerID string, points int64) error
	}

	// Invalidator refreshes a cached view, identified by its path.
	Invalidator interface {
		Invalidate(ctx context.Context, path string) error
	}

	Deps struct {
		Ledger      Ledger
		Summaries   SummaryStore
		Writer      SummaryWriter // optional
		Invalidator Invalidator   // optional
		Calculators []Calculator  // defaults to DefaultCalculators(Ledger)
		Messages    *core.Catalog
		Validate    *validator.Validate
		Logger      core.Logger
	}

	Service struct {
		ledger      Ledger
		summaries   SummaryStore
		writer      SummaryWriter
		invalidator Invalidator
		calcs       []Calculator
		messages    *core.Catalog
		validate    *validator.Validate
		logger      core.Logger
	}
)

func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Ledger, "Ledger"),
		vala.IsNotNil(deps.Summaries, "Summaries"),
		vala.IsNotNil(deps.Messages, "Messages"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Logger, "Logger"),
	).CheckAndPanic()

	calcs := deps.Calculators
	if len(calcs) == 0 {
		calcs = DefaultCalculators(deps.Ledger)
	}
	return &Service{
		ledger:      deps.Ledger,
		summaries:   deps.Summaries,
		writer:      deps.Writer,
		invalidator: deps.Invalidator,
		calcs:       calcs,
		messages:    deps.Messages,
		validate:    deps.Validate,
		logger:      deps.Logger,
	}
}

func checkOwner(ownerID string) (string, error) {
	ownerID = core.CleanString(ownerID)
	if ownerID == "" {
		return "", core.NewValidationError(ErrOwnerRequired, core.FieldError{Field: "userId", Error: OwnerRequiredText})
	}
	return ownerID, nil
}

// Reconcile recomputes the balance of ownerID from the ledger and stores it in the summary.
//
// Unless forceRefresh is set, a strictly positive summary is trusted and returned as is.
// Zero and negative summaries are always recomputed.
func (svc *Service) Reconcile(ctx context.Context, ownerID string, forceRefresh bool) (ReconcileResult, error) {
	ownerID, err := checkOwner(ownerID)
	if err != nil {
		return ReconcileResult{}, err
	}
	fields := map[string]interface{}{"owner_id": ownerID, "force": forceRefresh}

	var existed, existenceKnown bool
	if !forceRefresh {
		summary, err := svc.summaries.GetSummary(ctx, ownerID)
		switch {
		case err == nil:
			existed, existenceKnown = true, true
			if summary.Points > 0 {
				svc.logger.Debug("points balance served from summary", fields)
				return ReconcileResult{
					OwnerID:           ownerID,
					Points:            summary.Points,
					Method:            MethodSummaryCache,
					UpdateSuccess:     true,
					PreviouslyExisted: true,
				}, nil
			}
		case errors.Is(err, ErrSummaryNotFound):
			existenceKnown = true
		default:
			svc.logger.Warn("reading balance summary", err, fields)
		}
	}

	balance, err := svc.compute(ctx, ownerID)
	if err != nil {
		return ReconcileResult{}, err
	}

	if !existenceKnown {
		if existed, err = svc.summaries.SummaryExists(ctx, ownerID); err != nil {
			svc.logger.Warn("checking balance summary", err, fields)
		}
	}

	res := ReconcileResult{
		OwnerID:           ownerID,
		Points:            balance.Points,
		Method:            balance.Method,
		PositivePoints:    balance.PositivePoints,
		NegativePoints:    balance.NegativePoints,
		TransactionCount:  balance.TransactionCount,
		UpdateSuccess:     svc.persist(ctx, ownerID, balance.Points),
		PreviouslyExisted: existed,
	}

	if forceRefresh {
		svc.invalidate(ctx, ownerID)
	}

	svc.logger.Info("points balance reconciled", map[string]interface{}{
		"owner_id":           ownerID,
		"force":              forceRefresh,
		"method":             string(res.Method),
		"points":             res.Points,
		"update_success":     res.UpdateSuccess,
		"previously_existed": res.PreviouslyExisted,
	})
	return res, nil
}

// compute runs the calculators in order and returns the first balance obtained.
func (svc *Service) compute(ctx context.Context, ownerID string) (Balance, error) {
	for _, calc := range svc.calcs {
		balance, err := calc.Attempt(ctx, ownerID)
		if err != nil {
			var fetchErr *LedgerFetchError
			if errors.As(err, &fetchErr) {
				svc.logger.Error("fetching points transactions", err, map[string]interface{}{"owner_id": ownerID})
				return Balance{}, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Balance{}, errors.Wrap(ctxErr, "computing points balance")
			}
			svc.logger.Warn("balance calculator failed", err, map[string]interface{}{
				"owner_id": ownerID,
				"method":   string(calc.Method()),
			})
			continue
		}
		if balance == nil {
			svc.logger.Debug("balance calculator had no result", map[string]interface{}{
				"owner_id": ownerID,
				"method":   string(calc.Method()),
			})
			continue
		}
		balance.Method = calc.Method()
		return *balance, nil
	}
	return Balance{}, ErrNoCalculator
}

// persist stores the balance, falling back once to the raw write path. It reports whether the summary is up to date.
func (svc *Service) persist(ctx context.Context, ownerID string, points int64) bool {
	fields := map[string]interface{}{"owner_id": ownerID, "points": points}

	err := svc.summaries.UpsertSummary(ctx, Summary{OwnerID: ownerID, Points: points, UpdatedAt: time.Now().UTC()})
	if err == nil {
		return true
	}
	if svc.writer == nil {
		svc.logger.Error("upserting balance summary", err, fields)
		return false
	}

	svc.logger.Warn("upserting balance summary, trying raw write", err, fields)
	if err = svc.writer.WriteSummary(ctx, ownerID, points); err != nil {
		svc.logger.Error("writing balance summary", err, fields)
		return false
	}
	return true
}

// ViewsFor returns the paths of the cached views displaying the balance of ownerID.
func ViewsFor(ownerID string) []string {
	return []string{
		"/teacher/recharge",
		"/teacher/dashboard",
		"/student/dashboard",
		"/profile/" + ownerID,
		"/",
	}
}

// invalidate refreshes every view concurrently. Failures are logged and never reported to the caller.
func (svc *Service) invalidate(ctx context.Context, ownerID string) {
	if svc.invalidator == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, path := range ViewsFor(ownerID) {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := svc.invalidator.Invalidate(ctx, path); err != nil {
				svc.logger.Warn("invalidating cached view", err, map[string]interface{}{"owner_id": ownerID, "path": path})
			}
		}(path)
	}
	wg.Wait()
}
