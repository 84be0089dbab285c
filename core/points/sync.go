package points

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// message keys
const (
	MsgOwnerRequired = "owner_required"
	MsgLedgerFailed  = "ledger_failed"
	MsgSynced        = "synced"
	MsgUnexpected    = "unexpected"
)

// Messages are the localized texts of the push action.
var Messages = map[string]map[string]string{
	"ar": {
		MsgOwnerRequired: "معرف المستخدم مطلوب",
		MsgLedgerFailed:  "خطأ في جلب سجل المعاملات",
		MsgSynced:        "تم تحديث رصيد النقاط بنجاح ({0} نقطة)",
		MsgUnexpected:    "حدث خطأ غير متوقع أثناء تحديث رصيد النقاط",
	},
	"en": {
		MsgOwnerRequired: "User ID is required",
		MsgLedgerFailed:  "Could not fetch the transaction history",
		MsgSynced:        "Points balance updated successfully ({0} points)",
		MsgUnexpected:    "An unexpected error occurred while updating the points balance",
	},
}

// FailureKind classifies a failed sync.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureValidation
	FailureLedger
	FailureUnexpected
)

type (
	SyncData struct {
		Points            int64  `json:"points"`
		Method            Method `json:"method"`
		UpdateSuccess     bool   `json:"updateSuccess"`
		PreviouslyExisted bool   `json:"previouslyExisted"`
	}

	// SyncResult is the outcome of the push action. Message is always set.
	SyncResult struct {
		Success bool        `json:"success"`
		Data    *SyncData   `json:"data,omitempty"`
		Message string      `json:"message"`
		Error   string      `json:"error,omitempty"`
		Failure FailureKind `json:"-"`
	}
)

// Sync reconciles the balance of ownerID and reports the outcome as a SyncResult in locale ("" for the default).
// It never fails: every error, panics included, ends up in the result.
func (svc *Service) Sync(ctx context.Context, ownerID string, forceRefresh bool, locale string) (res SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic: %v", r)
			svc.logger.Error("syncing points balance", err, map[string]interface{}{"owner_id": ownerID})
			res = SyncResult{
				Message: svc.messages.T(locale, MsgUnexpected),
				Error:   err.Error(),
				Failure: FailureUnexpected,
			}
		}
	}()

	result, err := svc.Reconcile(ctx, ownerID, forceRefresh)
	if err != nil {
		return svc.syncFailure(err, ownerID, locale)
	}
	return SyncResult{
		Success: true,
		Data: &SyncData{
			Points:            result.Points,
			Method:            result.Method,
			UpdateSuccess:     result.UpdateSuccess,
			PreviouslyExisted: result.PreviouslyExisted,
		},
		Message: svc.messages.T(locale, MsgSynced, strconv.FormatInt(result.Points, 10)),
	}
}

func (svc *Service) syncFailure(err error, ownerID, locale string) SyncResult {
	var fetchErr *LedgerFetchError
	switch {
	case errors.Is(err, ErrOwnerRequired):
		return SyncResult{
			Message: svc.messages.T(locale, MsgOwnerRequired),
			Error:   OwnerRequiredText,
			Failure: FailureValidation,
		}
	case errors.As(err, &fetchErr):
		return SyncResult{
			Message: svc.messages.T(locale, MsgLedgerFailed),
			Error:   fetchErr.Err.Error(),
			Failure: FailureLedger,
		}
	default:
		svc.logger.Error("syncing points balance", err, map[string]interface{}{"owner_id": ownerID})
		return SyncResult{
			Message: svc.messages.T(locale, MsgUnexpected),
			Error:   fmt.Sprint(err),
			Failure: FailureUnexpected,
		}
	}
}
