package pds

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTempHandle(t *testing.T) {
	assert.Equal(t, "user4x2a9b-tmp.id.poltr.ch", tempHandle("user4x2a9b.id.poltr.ch"))
	assert.Equal(t, "alice-tmp.example.com", tempHandle("alice.example.com"))
	assert.Equal(t, "bare-tmp", tempHandle("bare"))
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))

	err := mapError(errors.New(`XRPC ERROR 400: InvalidRequest: Email already taken`))
	assert.ErrorIs(t, err, ErrEmailTaken)

	err = mapError(errors.New(`XRPC ERROR 400: InvalidRequest: Handle already taken`))
	assert.ErrorIs(t, err, ErrHandleTaken)

	err = mapError(errors.New(`XRPC ERROR 400: ExpiredToken: Token has expired`))
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.True(t, IsRefreshable(err))

	err = mapError(errors.New(`XRPC ERROR 500: InternalServerError: boom`))
	assert.ErrorIs(t, err, ErrPDS)
	assert.False(t, IsRefreshable(err))
}
