// Package repository holds the MySQL data access for theaters, QR names,
// provisioned codes and operator accounts.  The sentinel errors below let
// handlers and the provisioning service tell failure scenarios apart
// without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a
// theater outside its scope.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot proceed because of
// conflicting state.  Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

var (
	ErrTheaterNotFound = errors.New("theater not found")
	ErrNameNotFound    = errors.New("qr name not found")
	ErrCodeNotFound    = errors.New("provisioned code not found")
	ErrSeatNotFound    = errors.New("seat not found")
	ErrSeatInactive    = errors.New("seat is inactive")
	ErrEmailExists     = errors.New("email already exists")

	// ErrDuplicateName means the theater already has a code (or registry
	// entry) under that QR name.
	ErrDuplicateName = errors.New("qr name already provisioned for this theater")
	// ErrDuplicateSeat means the code already carries that seat.
	ErrDuplicateSeat = errors.New("seat already exists on this code")
)

const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// mapDuplicate replaces a unique key violation with target and passes
// every other error through.
func mapDuplicate(err, target error) error {
	if isDuplicate(err) {
		return target
	}
	return err
}
