package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Code(t *testing.T) {
	assert.Equal(t, CodeUnprocessable, Validation("bad").Code())
	assert.Equal(t, CodeNotFound, NotFound("missing").Code())
	assert.Equal(t, CodeConflict, Expired("late").Code())
	assert.Equal(t, CodeConflict, Conflict("twice").Code())
	assert.Equal(t, CodeForbidden, Forbidden("nope").Code())
	assert.Equal(t, CodeServerError, (&AppError{Kind: "other"}).Code())
}

func TestIsKind_Wrapped(t *testing.T) {
	err := fmt.Errorf("verify: %w", Expired("访客码 %s 已过期", "ABC123"))

	assert.True(t, IsKind(err, KindExpired))
	assert.False(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(fmt.Errorf("plain"), KindExpired))

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "访客码 ABC123 已过期", appErr.Message)
}
