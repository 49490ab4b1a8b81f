package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedCredentials(t *testing.T) {
	credentials, err := NewCachedCredentials("operator", "secret")
	require.Nil(t, err)
	assert.True(t, credentials.CheckAuthentication("operator", "secret"))
	assert.False(t, credentials.CheckAuthentication("operator", "wrong"))
	assert.False(t, credentials.CheckAuthentication("other", "secret"))
	assert.False(t, credentials.CheckAuthentication("", ""))
}

func TestNewCachedCredentials_missing(t *testing.T) {
	_, err := NewCachedCredentials("", "secret")
	assert.NotNil(t, err)
	_, err = NewCachedCredentials("operator", "")
	assert.NotNil(t, err)
}
