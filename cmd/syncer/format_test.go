package main

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", formatAmount(uint256.NewInt(1_500_000), 6))
	assert.Equal(t, "1000", formatAmount(uint256.NewInt(1000), 0))
	assert.Equal(t, "0", formatAmount(nil, 18))
}

func TestParseAmount(t *testing.T) {
	raw, err := parseAmount("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), raw.Uint64())

	raw, err = parseAmount("2", 18)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", raw.ToBig().String())

	_, err = parseAmount("0.0000001", 6)
	assert.Error(t, err)
	_, err = parseAmount("-1", 6)
	assert.Error(t, err)
	_, err = parseAmount("abc", 6)
	assert.Error(t, err)
}
