package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandKey(t *testing.T) {
	shifts, err := ExpandKey("key", 7)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 4, 24, 10, 4, 24, 10}, shifts)
}

func TestExpandKeyShorterThanKey(t *testing.T) {
	shifts, err := ExpandKey("abcdef", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, shifts)
}

func TestExpandKeyZeroLength(t *testing.T) {
	shifts, err := ExpandKey("key", 0)
	require.NoError(t, err)
	assert.Empty(t, shifts)
}

func TestExpandKeyEmpty(t *testing.T) {
	_, err := ExpandKey("", 5)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ExpandKey(" 9 ", 5)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestExpandWithoutShifts(t *testing.T) {
	_, err := expand(nil, 3)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = expand([]int{}, 0)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNormalizeKey(t *testing.T) {
	got, err := NormalizeKey("Lemon Tree")
	require.NoError(t, err)
	assert.Equal(t, "lemontree", got)
}

func TestAlphabetIndex(t *testing.T) {
	for i, r := range Alphabet {
		idx, ok := IndexOf(r)
		require.True(t, ok)
		assert.Equal(t, i, idx)
		assert.Equal(t, r, LetterOf(i))
	}

	for _, r := range []rune{' ', 'A', 'Z', '0', 'é', '`', '{'} {
		_, ok := IndexOf(r)
		assert.False(t, ok, "rune %q", r)
	}

	assert.Panics(t, func() { LetterOf(AlphabetSize) })
	assert.Panics(t, func() { LetterOf(-1) })
}
