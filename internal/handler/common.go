package handler // handler defines the HTTP handlers of the operator API

import (
	"errors"   // errors matches sentinels through wrapping
	"net/http" // http defines status code constants
	"strconv"  // strconv parses path ids
	"time"     // time defines the request timeout

	"github.com/labstack/echo/v4" // echo framework provides context and JSON helpers

	"github.com/iliyamo/theater-qr-provisioning/internal/provision"  // provision classifies errors by kind
	"github.com/iliyamo/theater-qr-provisioning/internal/repository" // repository sentinels map to statuses
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 { // ids start at 1
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// badParam responds 400 with the parameter error.
func badParam(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

// statusFor maps a provisioning error to an HTTP status.
func statusFor(err error) int {
	var seatErr *provision.SeatOperationError
	if errors.As(err, &seatErr) {
		// the failed seat alone decides; siblings are intact
		return statusFor(seatErr.Err)
	}
	switch {
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNameNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrSeatInactive), errors.Is(err, repository.ErrDuplicateSeat),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, provision.ErrNotScreenCode):
		return http.StatusBadRequest
	}
	switch provision.KindOf(err) { // everything else goes by kind
	case provision.KindInvalidSeatFormat, provision.KindRangeOrder, provision.KindOversizedBatch,
		provision.KindValidation:
		return http.StatusBadRequest
	case provision.KindNotFound:
		return http.StatusNotFound
	case provision.KindDuplicateNameConflict, provision.KindNoEligibleNames, provision.KindSubmissionInFlight:
		return http.StatusConflict
	case provision.KindBrandingLoadFailure, provision.KindIncompleteBatch:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorBody is the JSON error envelope.  Internal failures hide the cause.
func errorBody(err error) echo.Map {
	status := statusFor(err)
	kind := provision.KindOf(err)
	if status == http.StatusInternalServerError { // details stay in the log
		return echo.Map{"error": "internal error", "kind": provision.KindInternal}
	}
	body := echo.Map{"error": err.Error(), "kind": kind}
	var verr *provision.ValidationError
	if errors.As(err, &verr) { // field-level detail for forms
		body["fields"] = verr.Fields
	}
	return body
}

// fail writes the error envelope with its mapped status.
func fail(c echo.Context, err error) error {
	return c.JSON(statusFor(err), errorBody(err))
}
