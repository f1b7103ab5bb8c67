package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/hurdletime/internal/adapters/export"
	"github.com/okian/hurdletime/internal/adapters/repository"
	service "github.com/okian/hurdletime/internal/app"
	"github.com/okian/hurdletime/internal/domain/connection"
	"github.com/okian/hurdletime/internal/domain/race"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}

// classify maps a domain error to an HTTP status and a machine readable code.
func classify(err error) (int, string) {
	var (
		pe *race.PreconditionError
		fe *connection.FailedError
	)
	switch {
	case errors.As(err, &pe):
		return http.StatusConflict, string(pe.Reason)
	case errors.As(err, &fe):
		switch fe.Cause {
		case connection.CauseTimeout:
			return http.StatusGatewayTimeout, string(fe.Cause)
		case connection.CauseBusy:
			return http.StatusConflict, string(fe.Cause)
		}
		return http.StatusBadGateway, string(fe.Cause)
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidAthlete),
		errors.Is(err, repository.ErrInvalidSession),
		errors.Is(err, repository.ErrDuplicateSession),
		errors.Is(err, export.ErrInvalidDocument):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrUnsupported):
		return http.StatusNotImplemented, "unsupported"
	case errors.Is(err, service.ErrStopped):
		return http.StatusServiceUnavailable, "stopped"
	}
	return http.StatusInternalServerError, "internal"
}
