package blockfrost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	assert.Equal(t, uint64(45208), count(45208))
	assert.Equal(t, uint64(362), count(int32(362)))
	assert.Equal(t, uint64(0), count(-1))
	assert.Equal(t, uint64(0), count(int64(-71066008)))
}

func TestParseLovelace(t *testing.T) {
	assert.Equal(t, uint64(1049876311), parseLovelace("1049876311"))
	assert.Equal(t, uint64(18446744073709551615), parseLovelace("18446744073709551615"))
	assert.Equal(t, uint64(42), parseLovelace(" 42\n"))
	assert.Equal(t, uint64(0), parseLovelace(""))
	assert.Equal(t, uint64(0), parseLovelace("-5"))
	assert.Equal(t, uint64(0), parseLovelace("1.5"))
	assert.Equal(t, uint64(0), parseLovelace("18446744073709551616"))
}
