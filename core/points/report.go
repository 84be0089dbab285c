package points

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/nujoom/school/core"
)

type (
	Drift struct {
		OwnerID string
		Before  int64
		After   int64
		Method  Method
	}

	Failure struct {
		OwnerID string
		Error   string
	}

	// Report sums up a ReconcileAll run.
	Report struct {
		StartedAt  time.Time
		Force      bool
		Owners     int
		Reconciled int
		Created    int // summaries that did not exist before
		Cached     int // trusted summaries, not recomputed
		Drifts     []Drift
		Failures   []Failure
	}
)

// ReconcileAll reconciles every owner known to the ledger or to the summary table, one after the other.
// Failures of single owners are collected in the report. Only a failure to list the owners, or a canceled
// context, stops the run.
func (svc *Service) ReconcileAll(ctx context.Context, forceRefresh bool) (Report, error) {
	report := Report{StartedAt: time.Now().UTC(), Force: forceRefresh}

	ownerIDs, err := svc.ledger.QueryOwnerIDs(ctx)
	if err != nil {
		return report, errors.Wrap(err, "querying ledger owners")
	}
	summaries, err := svc.summaries.QuerySummaries(ctx)
	if err != nil {
		return report, errors.Wrap(err, "querying balance summaries")
	}

	before := make(map[string]int64, len(summaries))
	for _, s := range summaries {
		before[s.OwnerID] = s.Points
	}
	owners := make(map[string]struct{}, len(ownerIDs)+len(summaries))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	for id := range before {
		owners[id] = struct{}{}
	}
	ids := make([]string, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	report.Owners = len(ids)

	for _, id := range ids {
		if err = ctx.Err(); err != nil {
			return report, errors.Wrap(err, "reconciling balances")
		}
		res, err := svc.Reconcile(ctx, id, forceRefresh)
		if err != nil {
			report.Failures = append(report.Failures, Failure{OwnerID: id, Error: err.Error()})
			continue
		}
		report.Reconciled++
		prev, existed := before[id]
		switch {
		case res.Method == MethodSummaryCache:
			report.Cached++
		case !existed:
			report.Created++
		case prev != res.Points:
			report.Drifts = append(report.Drifts, Drift{OwnerID: id, Before: prev, After: res.Points, Method: res.Method})
		}
	}

	svc.logger.Info("points balances reconciled", map[string]interface{}{
		"owners":     report.Owners,
		"reconciled": report.Reconciled,
		"drifts":     len(report.Drifts),
		"failures":   len(report.Failures),
	})
	return report, nil
}

// NewReportMessage builds the email sent to admins after a ReconcileAll run.
func NewReportMessage(report Report, to []mail.Address) *core.EmailMessage {
	return &core.EmailMessage{
		To:           to,
		Subject:      "Points reconciliation report",
		TemplateName: "reconcile_report",
		TemplateData: report,
	}
}
