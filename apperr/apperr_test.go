package apperr

import (
	"errors"
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
)

func TestIsMatchesOnKindAlone(t *testing.T) {
	err := New(KindNotFound, "image %q not found", "alpine")
	assert.Assert(t, errors.Is(err, NotFound))
	assert.Assert(t, !errors.Is(err, Conflict))
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := fmt.Errorf("read failed")
	err := Wrap(KindInternal, cause, "loading job")
	assert.Assert(t, errors.Is(err, Internal))
	assert.Equal(t, errors.Unwrap(err), cause)
}

func TestKindOfDefaultsToInternalForForeignErrors(t *testing.T) {
	assert.Equal(t, KindOf(fmt.Errorf("boom")), KindInternal)
	assert.Equal(t, KindOf(New(KindConflict, "exists")), KindConflict)
}

func TestKindStringNames(t *testing.T) {
	cases := map[Kind]string{
		KindInvalid:              "invalid",
		KindNotFound:             "not_found",
		KindConflict:             "conflict",
		KindPreconditionRequired: "precondition_required",
		KindPreconditionFailed:   "precondition_failed",
		KindInternal:             "internal",
	}
	for k, want := range cases {
		assert.Equal(t, k.String(), want)
	}
}
