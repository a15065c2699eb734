package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := map[Kind]error{
		KindInvalidFormat:   ErrInvalidFormat,
		KindInvalidLocation: ErrInvalidLocation,
		KindInvalidCount:    ErrInvalidCount,
		KindInvalidTarget:   ErrInvalidTarget,
		KindInvalidInput:    ErrInvalidInput,
		KindDuplicateValue:  fmt.Errorf("insert: %w", ErrDuplicateValue),
		KindEmailExists:     ErrEmailExists,
		KindNotFound:        ErrNotFound,
		KindNoEligibleUsers: ErrNoEligibleUsers,
		KindForbidden:       ErrForbidden,
		KindUnauthenticated: ErrInvalidCredentials,
		KindConflict:        ErrAssignedToOther,
		KindInternal:        errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, KindOf(err), err.Error())
	}
	assert.NotEqual(t, ErrAssignedToOther.Error(), ErrAssignedToSelf.Error())
}
