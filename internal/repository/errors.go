package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	drepo "ChartDash/internal/domain/repository"
	apphttp "ChartDash/pkg/http"
)

// ClassifyError maps an HTTP client failure to a RequestError kind.
// Context cancellation is passed through so callers never retry it.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var statusErr *apphttp.StatusError
	if errors.As(err, &statusErr) {
		kind := drepo.ErrServer
		if statusErr.Status == http.StatusBadRequest || statusErr.Status == http.StatusUnprocessableEntity {
			kind = drepo.ErrValidation
		}
		return &drepo.RequestError{
			Kind:    kind,
			Op:      op,
			Status:  statusErr.Status,
			Message: statusErr.Message(),
			Err:     err,
		}
	}

	var transportErr *apphttp.TransportError
	if errors.As(err, &transportErr) {
		return drepo.NewRequestError(drepo.ErrNetwork, op, err)
	}

	// A 2xx body that does not decode is the server's fault.
	return drepo.NewRequestError(drepo.ErrServer, op, err)
}

// Outcome is the metrics label of an upstream call result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, drepo.ErrValidation):
		return "validation"
	case errors.Is(err, drepo.ErrNetwork):
		return "network"
	case errors.Is(err, drepo.ErrDataUnavailable):
		return "no_data"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "server"
	}
}
