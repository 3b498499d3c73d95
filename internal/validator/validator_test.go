package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Email string `form:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
	Level int    `mapstructure:"level" validate:"gte=0"`
}

func TestValidateFieldNames(t *testing.T) {
	v := Create()

	err := v.Validate(&form{Level: -1})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"email", "token", "level"}, fields)
}

func TestVar(t *testing.T) {
	v := Create()

	for _, email := range []string{"someone@example.com", "a.b+c@sub.example.org"} {
		assert.NoError(t, v.Var(email, "required,email"), email)
	}
	for _, email := range []string{"", "not-an-email", "someone@", "@example.com"} {
		assert.Error(t, v.Var(email, "required,email"), email)
	}
}
