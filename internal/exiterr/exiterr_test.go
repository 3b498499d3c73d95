package exiterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitError(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("context: %w", Wrap(ExitRejected, base))

	var ee ExitError
	assert.True(t, errors.As(err, &ee))
	assert.Equal(t, ExitRejected, ee.Code)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "2: boom", ee.Error())
	assert.Equal(t, "1", ExitError{Code: ExitErrored}.Error())
}
