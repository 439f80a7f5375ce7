package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("Production", func(t *testing.T) {
		l, err := New("info", false)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("Pretty", func(t *testing.T) {
		l, err := New("debug", true)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("UnknownLevelFallsBack", func(t *testing.T) {
		l, err := New("shout", false)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})
}
