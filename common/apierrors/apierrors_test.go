package apierrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound.New("gone")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(PermissionDenied.New("no")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict.New("wrong state")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, HTTPStatus(TooLarge.New("big")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Unavailable.New("not built")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("bad input")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestHTTPStatus_WrappedError(t *testing.T) {
	err := fmt.Errorf("failed to load listing: %w", NotFound.New("listing"))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestValidationError_Builder(t *testing.T) {
	v := NewValidation()
	assert.NoError(t, v.Err())

	v.Add("name", "required").AddNonField("broken")
	err := v.Err()
	require.Error(t, err)

	got, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{"required"}, got.Fields["name"])
	assert.Equal(t, []string{"broken"}, got.Fields[NonFieldErrors])
}

func TestAsValidation_Wrapped(t *testing.T) {
	err := fmt.Errorf("processing failed: %w", FieldValidation("icon", "bad png"))
	v, ok := AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "icon")
}
