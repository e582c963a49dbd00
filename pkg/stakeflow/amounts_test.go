package stakeflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseUiAmount(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     uint64
		err      error
	}{
		{"1", 9, 1_000_000_000, nil},
		{"1.5", 9, 1_500_000_000, nil},
		{" 0.000000001 ", 9, 1, nil},
		{"1.23456789012", 9, 1_234_567_890, nil},
		{"0.0000000009", 9, 0, nil},
		{"42", 0, 42, nil},
		{"18446744073709551615", 0, 18446744073709551615, nil},
		{"18446744073709551616", 0, 0, ErrAmountTooLarge},
		{"18446744073.709551616", 9, 0, ErrAmountTooLarge},
		{"", 9, 0, ErrEmptyAmount},
		{"   ", 9, 0, ErrEmptyAmount},
		{"1e9", 9, 0, ErrInvalidAmountFormat},
		{"-1", 9, 0, ErrInvalidAmountFormat},
		{"+1", 9, 0, ErrInvalidAmountFormat},
		{".5", 9, 0, ErrInvalidAmountFormat},
		{"5.", 9, 0, ErrInvalidAmountFormat},
		{"1.2.3", 9, 0, ErrInvalidAmountFormat},
		{"abc", 9, 0, ErrInvalidAmountFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUiAmount(tt.in, tt.decimals)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToUiAmount(t *testing.T) {
	assert.Equal(t, "0", ToUiAmount(0, 9))
	assert.Equal(t, "1", ToUiAmount(1_000_000_000, 9))
	assert.Equal(t, "1.5", ToUiAmount(1_500_000_000, 9))
	assert.Equal(t, "0.000000001", ToUiAmount(1, 9))
	assert.Equal(t, "1268", ToUiAmount(1268, 0))
	assert.Equal(t, "18446744073.709551615", ToUiAmount(^uint64(0), 9))
}

func TestBpsToPercent(t *testing.T) {
	assert.Equal(t, "0.00%", BpsToPercent(0))
	assert.Equal(t, "5.00%", BpsToPercent(500))
	assert.Equal(t, "10.00%", BpsToPercent(1000))
	assert.Equal(t, "0.01%", BpsToPercent(1))
	assert.Equal(t, "100.00%", BpsToPercent(10000))
}

func TestUiAmountRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		decimals := rapid.Uint8Range(0, 9).Draw(t, "decimals")
		raw := rapid.Uint64().Draw(t, "raw")

		parsed, err := ParseUiAmount(ToUiAmount(raw, decimals), decimals)
		if err != nil {
			t.Fatalf("parsing %q: %v", ToUiAmount(raw, decimals), err)
		}
		if parsed != raw {
			t.Fatalf("round trip of %d with %d decimals gave %d", raw, decimals, parsed)
		}
	})
}
