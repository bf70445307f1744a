package service

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/storage"
)

// codeOf maps domain errors to Connect codes.
func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, calculator.ErrInvalidExpenseState),
		errors.Is(err, billing.ErrInvalidInput):
		return connect.CodeInvalidArgument
	case errors.Is(err, billing.ErrNoNewExpenses),
		errors.Is(err, billing.ErrNoMatchingExpenses),
		errors.Is(err, billing.ErrNoUnpaidInvoices),
		errors.Is(err, storage.ErrInvoicePaid),
		errors.Is(err, storage.ErrExpenseInvoiced):
		return connect.CodeFailedPrecondition
	case errors.Is(err, storage.ErrDuplicateName):
		return connect.CodeAlreadyExists
	case errors.Is(err, billing.ErrNoRenderer):
		return connect.CodeUnimplemented
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

// connectError wraps err with its Connect code, leaving existing Connect
// errors untouched.
func connectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(codeOf(err), err)
}

// httpStatus maps domain errors for the plain HTTP download routes.
func httpStatus(err error) int {
	switch codeOf(err) {
	case connect.CodeNotFound:
		return http.StatusNotFound
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeFailedPrecondition, connect.CodeAlreadyExists:
		return http.StatusConflict
	case connect.CodeUnimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
