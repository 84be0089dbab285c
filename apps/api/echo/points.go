package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

type (
	FixPointsResponse struct {
		UserID           string        `json:"userId"`
		Method           points.Method `json:"method"`
		TotalPoints      int64         `json:"totalPoints"`
		PositivePoints   *int64        `json:"positivePoints,omitempty"`
		NegativePoints   *int64        `json:"negativePoints,omitempty"`
		TransactionCount *int          `json:"transactionCount,omitempty"`
		Success          bool          `json:"success"`
	}

	SyncRequest struct {
		UserID       string `json:"userId"`
		ForceRefresh bool   `json:"forceRefresh"`
	}

	RecordResponse struct {
		Transaction points.Transaction `json:"transaction"`
		Sync        points.SyncResult  `json:"sync"`
	}
)

type pointsApi struct {
	svc     *points.Service
	logger  core.Logger
	locales localeMatcher
}

func registerPointsAPI(g *echo.Group, svc *points.Service, logger core.Logger, locales localeMatcher) {
	api := pointsApi{
		svc:     svc,
		logger:  logger,
		locales: locales,
	}

	g.GET("/fix-points", api.fixPoints)

	pg := g.Group("/points")
	pg.POST("/sync", api.sync)
	pg.POST("/transactions", api.record)
	pg.GET("/transactions", api.history)
}

// Handlers

func (api *pointsApi) fixPoints(ctx echo.Context) error {
	userID := ctx.QueryParam("userId")
	force := ctx.QueryParam("force") == "true"

	res, err := api.svc.Reconcile(ctx.Request().Context(), userID, force)
	if err != nil {
		var fetchErr *points.LedgerFetchError
		switch {
		case errors.Is(err, points.ErrOwnerRequired):
			return echo.NewHTTPError(http.StatusBadRequest, points.OwnerRequiredText)
		case errors.As(err, &fetchErr):
			return errFetchTransactions
		default:
			api.logger.Error("recalculating points", err, map[string]interface{}{"owner_id": userID})
			return errRecalculatePoints
		}
	}

	return ctx.JSON(http.StatusOK, FixPointsResponse{
		UserID:           res.OwnerID,
		Method:           res.Method,
		TotalPoints:      res.Points,
		PositivePoints:   res.PositivePoints,
		NegativePoints:   res.NegativePoints,
		TransactionCount: res.TransactionCount,
		Success:          true,
	})
}

func (api *pointsApi) sync(ctx echo.Context) error {
	var data SyncRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SyncRequest")
	}

	res := api.svc.Sync(ctx.Request().Context(), data.UserID, data.ForceRefresh, api.locales.Locale(ctx))
	return ctx.JSON(syncStatus(res), res)
}

func syncStatus(res points.SyncResult) int {
	switch res.Failure {
	case points.FailureNone:
		return http.StatusOK
	case points.FailureValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (api *pointsApi) record(ctx echo.Context) error {
	var data points.NewTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTransaction")
	}

	tx, res, err := api.svc.Record(ctx.Request().Context(), data, api.locales.Locale(ctx))
	if err != nil {
		return errors.Wrap(err, "recording transaction")
	}
	return ctx.JSON(http.StatusCreated, RecordResponse{Transaction: tx, Sync: res})
}

func (api *pointsApi) history(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	txs, err := api.svc.History(ctx.Request().Context(), ctx.QueryParam("userId"), ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	return ctx.JSON(http.StatusOK, txs)
}
