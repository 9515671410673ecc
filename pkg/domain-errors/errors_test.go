package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("plain error maps to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("wrapped domain error keeps outer code", func(t *testing.T) {
		inner := New(CodeNotFound, "session not found")
		outer := Wrap(inner, CodePrecondition, "owning session unavailable")
		assert.Equal(t, CodePrecondition, CodeOf(outer))
		assert.True(t, HasCode(fmt.Errorf("ctx: %w", outer), CodePrecondition))
	})

	t.Run("wrap preserves errors.Is on cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, CodeExternalService, "blob put failed")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "blob put failed", MessageOf(err))
	})

	t.Run("nil has no code", func(t *testing.T) {
		assert.False(t, HasCode(nil, CodeInternal))
	})
}
