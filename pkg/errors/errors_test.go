package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAs_UnwrapsWrappedAppError(t *testing.T) {
	err := fmt.Errorf("ingest: %w", ErrNotChannelMember)

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, appErr.Code)
	assert.True(t, Is(err, CodeForbidden))
}

func TestCodeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
	assert.False(t, Is(nil, CodeInternal))
}

func TestValidationCarriesFields(t *testing.T) {
	appErr, ok := As(ErrMessageTooLong)
	require.True(t, ok)
	assert.Equal(t, CodeValidationFailed, appErr.Code)
	assert.Contains(t, appErr.Fields, "content")
}

func TestWrap_ErrorIncludesCause(t *testing.T) {
	err := Internal("persist message", fmt.Errorf("disk full"))
	assert.Equal(t, "persist message: disk full", err.Error())
}
