package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanToAtomic(t *testing.T) {
	tests := []struct {
		name     string
		human    string
		decimals int32
		want     string
		wantErr  bool
	}{
		{name: "whole amount", human: "40", decimals: 6, want: "40000000"},
		{name: "fractional amount", human: "1.5", decimals: 6, want: "1500000"},
		{name: "full precision", human: "0.000001", decimals: 6, want: "1"},
		{name: "eighteen decimals", human: "2.5", decimals: 18, want: "2500000000000000000"},
		{name: "zero", human: "0", decimals: 6, want: "0"},
		{name: "surrounding whitespace", human: " 40 ", decimals: 6, want: "40000000"},
		{name: "too many decimal places", human: "0.0000001", decimals: 6, wantErr: true},
		{name: "not a number", human: "forty", decimals: 6, wantErr: true},
		{name: "empty", human: "", decimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HumanToAtomic(tt.human, tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAtomicToHuman(t *testing.T) {
	got, err := AtomicToHuman("40000000", 6)
	require.NoError(t, err)
	assert.Equal(t, "40", got)

	got, err = AtomicToHuman("1500000", 6)
	require.NoError(t, err)
	assert.Equal(t, "1.5", got)

	_, err = AtomicToHuman("1.5", 6)
	assert.Error(t, err, "atomic amounts must be integers")
}

func TestHumanAtomicRoundTrip(t *testing.T) {
	atomic, err := HumanToAtomic("123.456789", 6)
	require.NoError(t, err)

	human, err := AtomicToHuman(atomic, 6)
	require.NoError(t, err)
	assert.Equal(t, "123.456789", human)
}

func TestCompareAtomic(t *testing.T) {
	cmp, err := CompareAtomic("70000000", "100000000")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = CompareAtomic("100000000", "100000000")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	// Values beyond int64 must still compare exactly.
	cmp, err = CompareAtomic("100000000000000000000000001", "100000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	_, err = CompareAtomic("abc", "1")
	assert.Error(t, err)
}

func TestSubtractAtomic(t *testing.T) {
	diff, err := SubtractAtomic("100000000", "40000000")
	require.NoError(t, err)
	assert.Equal(t, "60000000", diff)

	diff, err = SubtractAtomic("40000000", "100000000")
	require.NoError(t, err)
	assert.Equal(t, "-60000000", diff)
}
