package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Name     string `json:"name" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Slug     string `json:"slug" validate:"omitempty,slug"`
	Color    string `json:"color" validate:"hexcolor_or_empty"`
	Opens    string `json:"opens" validate:"clock"`
}

func TestValidate_OK(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&signup{
		Name:     "Budi",
		Email:    "budi@example.com",
		Password: "rahasia123",
		Slug:     "warung-budi",
		Color:    "#c0392b",
		Opens:    "09:30",
	})
	assert.NoError(t, err)
}

func TestValidate_FieldErrorsUseJSONNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&signup{Email: "not-an-email", Password: "short", Slug: "Bad Slug", Color: "red", Opens: "25:00"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))

	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "This field is required", fields["name"])
	assert.Equal(t, "Invalid email format", fields["email"])
	assert.Equal(t, "Must be at least 8 characters", fields["password"])
	assert.Contains(t, fields, "slug")
	assert.Contains(t, fields, "color")
	assert.Contains(t, fields, "opens")
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("ab"))
	assert.True(t, ValidSlug("warung-budi-2"))
	assert.False(t, ValidSlug("a"))
	assert.False(t, ValidSlug("-lead"))
	assert.False(t, ValidSlug("trail-"))
	assert.False(t, ValidSlug("Upper"))
	assert.False(t, ValidSlug("with_underscore"))
}
