package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindDuplicate, http.StatusConflict},
		{KindLimit, http.StatusBadRequest},
		{KindMissingParent, http.StatusBadRequest},
		{KindMissingGrandparent, http.StatusBadRequest},
		{KindWeakPassword, http.StatusBadRequest},
		{KindForbidden, http.StatusForbidden},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("write failed: %w", Limit("Reference already has two parents"))
	assert.Equal(t, KindLimit, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestToHTTPErrorHidesInternals(t *testing.T) {
	status, body := ToHTTPError(Internal(errors.New("bolt: connection reset")))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal error", body.Message)
	assert.Equal(t, KindInternal, body.Code)

	status, body = ToHTTPError(errors.New("raw"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, KindInternal, body.Code)
}

func TestToHTTPErrorDomain(t *testing.T) {
	err := Validation("Validation failed").WithDetails(map[string]any{"issues": []string{"person.email"}})
	status, body := ToHTTPError(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, KindValidation, body.Code)
	assert.Equal(t, "Validation failed", body.Message)
	assert.Contains(t, body.Details, "issues")
}

func TestWithInternalKeepsKind(t *testing.T) {
	cause := errors.New("constraint")
	err := Duplicate("Email already exists for another person").WithInternal(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindDuplicate, err.Kind)
	assert.Contains(t, err.Error(), "constraint")
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(KindMissingParent, "No %s parent recorded for the %s side", "MALE", "paternal")
	assert.Equal(t, KindMissingParent, err.Kind)
	assert.Equal(t, "No MALE parent recorded for the paternal side", err.Message)
	assert.Nil(t, err.Internal)
}
