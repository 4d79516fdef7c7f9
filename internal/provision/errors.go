package provision

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/theater-qr-provisioning/internal/qrimage"
	"github.com/iliyamo/theater-qr-provisioning/internal/repository"
	"github.com/iliyamo/theater-qr-provisioning/internal/seat"
)

// Kind names an error class reported to operators.
type Kind string

const (
	KindInvalidSeatFormat           Kind = "InvalidSeatFormat"
	KindRangeOrder                  Kind = "RangeOrderError"
	KindOversizedBatch              Kind = "OversizedBatch"
	KindNoEligibleNames             Kind = "NoEligibleNames"
	KindBrandingLoadFailure         Kind = "BrandingLoadFailure"
	KindDuplicateNameConflict       Kind = "DuplicateNameConflict"
	KindPartialSeatOperationFailure Kind = "PartialSeatOperationFailure"
	KindIncompleteBatch             Kind = "IncompleteBatch"
	KindSubmissionInFlight          Kind = "SubmissionInFlight"
	KindValidation                  Kind = "ValidationError"
	KindNotFound                    Kind = "NotFound"
	KindInternal                    Kind = "Internal"
)

var (
	ErrOversizedBatch     = errors.New("seat selection exceeds the batch limit")
	ErrNoEligibleNames    = errors.New("no QR names left to provision for this theater; add or free one in QR name management first")
	ErrSubmissionInFlight = errors.New("a provisioning submission is already running for this session")
	ErrIncompleteBatch    = errors.New("some seat codes could not be produced; nothing was saved")
	ErrValidation         = errors.New("validation failed")
	ErrSeatOperation      = errors.New("seat operation failed")
	ErrNotScreenCode      = errors.New("seats can only be managed on screen codes")
)

// ValidationError carries field-scoped messages.  Causes keeps the
// underlying sentinels (ErrOversizedBatch, ErrNoEligibleNames,
// repository.ErrDuplicateName, seat errors) for errors.Is.
type ValidationError struct {
	Fields map[string]string
	Causes []error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() []error { return e.Causes }

func (e *ValidationError) add(field, msg string, cause error) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
	if cause != nil {
		e.Causes = append(e.Causes, cause)
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// SeatOperationError reports a failed add/update/delete of one seat.  Its
// siblings are never touched by the failure.
type SeatOperationError struct {
	Op     string
	CodeID uint64
	Seat   string
	Err    error
}

func (e *SeatOperationError) Error() string {
	return fmt.Sprintf("%s seat %s on code %d: %v", e.Op, e.Seat, e.CodeID, e.Err)
}

func (e *SeatOperationError) Is(target error) bool { return target == ErrSeatOperation }

func (e *SeatOperationError) Unwrap() error { return e.Err }

// BatchError lists the seats whose codes could not be rendered or stored.
type BatchError struct {
	FailedSeats []string
	Err         error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%v (failed seats: %s): %v", ErrIncompleteBatch, strings.Join(e.FailedSeats, ","), e.Err)
}

func (e *BatchError) Is(target error) bool { return target == ErrIncompleteBatch }

func (e *BatchError) Unwrap() error { return e.Err }

// KindOf classifies err.  Seat operation failures report their own kind
// rather than the cause's so callers can tell the sibling seats are intact.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSeatOperation):
		return KindPartialSeatOperationFailure
	case errors.Is(err, ErrSubmissionInFlight):
		return KindSubmissionInFlight
	case errors.Is(err, ErrIncompleteBatch):
		return KindIncompleteBatch
	case errors.Is(err, ErrOversizedBatch):
		return KindOversizedBatch
	case errors.Is(err, ErrNoEligibleNames):
		return KindNoEligibleNames
	case errors.Is(err, repository.ErrDuplicateName):
		return KindDuplicateNameConflict
	case errors.Is(err, seat.ErrInvalidSeatFormat):
		return KindInvalidSeatFormat
	case errors.Is(err, seat.ErrRangeOrder):
		return KindRangeOrder
	case errors.Is(err, qrimage.ErrBrandingLoad):
		return KindBrandingLoadFailure
	case errors.Is(err, ErrValidation), errors.Is(err, qrimage.ErrSizeTooSmall):
		return KindValidation
	case errors.Is(err, repository.ErrCodeNotFound), errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrTheaterNotFound):
		return KindNotFound
	}
	return KindInternal
}
