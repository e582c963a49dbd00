package base58

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFromString_SystemProgram(t *testing.T) {
	addr, err := DecodeFromString("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, [32]byte{}, addr)
	assert.Equal(t, "11111111111111111111111111111111", Encode(addr[:]))
}

func TestDecodeFromString_WrongLength(t *testing.T) {
	_, err := DecodeFromString("3yZe7d")
	assert.Error(t, err)

	assert.Panics(t, func() { MustDecodeFromString("not-base58-0OIl") })
}
