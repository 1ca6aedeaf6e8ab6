package dErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeNotFound, "ledger record not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches code through wrapping", func(t *testing.T) {
		inner := New(CodeLimitExceeded, "cap reached")
		outer := Wrap(inner, CodeInternal, "save contribution")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeLimitExceeded))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("orchestration: %w", New(CodeTimeout, "settlement outcome unknown"))
		assert.True(t, HasCode(err, CodeTimeout))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil cause returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause remains reachable via errors.Is", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "settlement gateway")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.Contains(t, err.Error(), "settlement gateway")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "duplicate contribution")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("no code")))
}
