// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a looked up record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateValue is returned when a QR code insert or update violates
// the unique index on qr_value.
var ErrDuplicateValue = errors.New("qr code value already exists")

// ErrEmailExists is returned when a user insert or update violates the
// unique index on email.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when a conditional write lost a race, such as
// a QR code whose owner changed between the read and the write.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062 // ER_DUP_ENTRY
	mysqlNoReferencedRow = 1452 // ER_NO_REFERENCED_ROW_2
)

func isDuplicateEntry(err error) bool { return mysqlErrorNumber(err) == mysqlDuplicateEntry }

func isMissingReference(err error) bool { return mysqlErrorNumber(err) == mysqlNoReferencedRow }

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
