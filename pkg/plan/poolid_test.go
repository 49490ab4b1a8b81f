package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePoolID_roundTrip(t *testing.T) {
	hexID, bech32ID, err := NormalizePoolID(strings.ToUpper(poolHex))
	require.Nil(t, err)
	assert.Equal(t, poolHex, hexID)
	assert.True(t, strings.HasPrefix(bech32ID, "pool1"))

	decodedHex, decodedBech32, err := NormalizePoolID(bech32ID)
	require.Nil(t, err)
	assert.Equal(t, poolHex, decodedHex)
	assert.Equal(t, bech32ID, decodedBech32)
}

func TestNormalizePoolID_invalid(t *testing.T) {
	for _, poolID := range []string{"", "not-an-id", "pool1invalidchecksum", "0f0"} {
		_, _, err := NormalizePoolID(poolID)
		assert.ErrorIs(t, err, InvalidError, poolID)
	}
}
