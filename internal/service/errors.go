package service

import (
	"errors"
	"fmt"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/repository"
)

// Failures that originate in the storage layer or the role gate are
// re-exported so callers only need this package to classify errors.
var (
	ErrNotFound        = repository.ErrNotFound
	ErrDuplicateValue  = repository.ErrDuplicateValue
	ErrEmailExists     = repository.ErrEmailExists
	ErrConflict        = repository.ErrConflict
	ErrForbidden       = authz.ErrForbidden
	ErrUnauthenticated = authz.ErrUnauthenticated
)

var (
	ErrInvalidFormat   = errors.New("invalid qr code format: must be a 16-digit number")
	ErrInvalidLocation = errors.New("invalid location: numeric latitude in [-90,90] and longitude in [-180,180] are required")
	ErrInvalidCount    = errors.New("a valid count must be provided")
	ErrInvalidTarget   = errors.New("a user selection must be made")
	ErrNoEligibleUsers = errors.New("no valid users found for the given selection")
	ErrInvalidInput    = errors.New("invalid input")

	ErrAssignedToOther    = fmt.Errorf("%w: this qr code is already assigned to another user", ErrConflict)
	ErrAssignedToSelf     = fmt.Errorf("%w: this qr code is already assigned to you", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
)

// Kind is the stable classification of a failure returned to clients.
type Kind string

const (
	KindInvalidFormat   Kind = "InvalidFormat"
	KindInvalidLocation Kind = "InvalidLocation"
	KindInvalidCount    Kind = "InvalidCount"
	KindInvalidTarget   Kind = "InvalidTarget"
	KindInvalidInput    Kind = "InvalidInput"
	KindDuplicateValue  Kind = "DuplicateValue"
	KindEmailExists     Kind = "EmailExists"
	KindNotFound        Kind = "NotFound"
	KindNoEligibleUsers Kind = "NoEligibleUsers"
	KindForbidden       Kind = "Forbidden"
	KindUnauthenticated Kind = "Unauthenticated"
	KindConflict        Kind = "Conflict"
	KindInternal        Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidFormat, KindInvalidFormat},
	{ErrInvalidLocation, KindInvalidLocation},
	{ErrInvalidCount, KindInvalidCount},
	{ErrInvalidTarget, KindInvalidTarget},
	{ErrInvalidInput, KindInvalidInput},
	{ErrDuplicateValue, KindDuplicateValue},
	{ErrEmailExists, KindEmailExists},
	{ErrNoEligibleUsers, KindNoEligibleUsers},
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrConflict, KindConflict},
}

// KindOf classifies err.  Unknown errors are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
