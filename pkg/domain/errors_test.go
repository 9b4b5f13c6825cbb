package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewError(CodeKeyNotFound, ErrKeyNotFound, ""))

	var de *DomainError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, CodeKeyNotFound, de.Code)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, "key not found", de.Error())
}

func TestDomainErrorMessageOverrides(t *testing.T) {
	de := NewError(CodePolicyDenied, ErrPolicyDenied, "too long")
	assert.Equal(t, "too long", de.Error())
}

func TestOperationValid(t *testing.T) {
	assert.True(t, OperationEncode.Valid())
	assert.True(t, OperationDecode.Valid())
	assert.False(t, Operation("rot13").Valid())
}
