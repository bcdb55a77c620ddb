package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Name    string `json:"name" validate:"required,max=5"`
	Email   string `json:"email" validate:"required,email"`
	Website string `json:"website" validate:"omitempty,http_url"`
	Count   int    `validate:"min=1"`
}

func TestStruct(t *testing.T) {
	err := Struct(form{Name: "toolong", Email: "nope", Website: "ftp://x", Count: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at most 5 characters", verr.Fields["name"])
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "must be an absolute http(s) URL", verr.Fields["website"])
	assert.Equal(t, "must be at least 1", verr.Fields["count"])

	assert.NoError(t, Struct(form{Name: "ok", Email: "a@b.co", Count: 1}))
}

func TestErrorHelpers(t *testing.T) {
	var e Error
	assert.Nil(t, e.OrNil())
	e.Add("slug", "first")
	e.Add("slug", "second")
	assert.Equal(t, "first", e.Fields["slug"])
	assert.EqualError(t, e.OrNil(), "invalid input: slug: first")

	assert.NoError(t, Var("email", "a@b.co", "email"))
	err := Var("email", "x", "email")
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
}
