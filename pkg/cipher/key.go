package cipher

import "strings"

// NormalizeKey case-folds key and drops everything that is not an alphabet
// letter. An empty result is reported as ErrInvalidKey.
func NormalizeKey(key string) (string, error) {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		r = fold(r)
		if _, ok := IndexOf(r); ok {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", ErrInvalidKey
	}
	return b.String(), nil
}

// ExpandKey returns the shift for each of length message positions by cycling
// through the key letters. Positions are absolute, so a space in the message
// still consumes a key letter.
func ExpandKey(key string, length int) ([]int, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	return expand(shiftsOf(normalized), length)
}

func shiftsOf(normalized string) []int {
	shifts := make([]int, len(normalized))
	for i := 0; i < len(normalized); i++ {
		shifts[i], _ = IndexOf(rune(normalized[i]))
	}
	return shifts
}

// expand cycles shifts over length positions. An empty shift list is a
// missing key and reported as ErrInvalidKey.
func expand(shifts []int, length int) ([]int, error) {
	if len(shifts) == 0 {
		return nil, ErrInvalidKey
	}
	if length <= 0 {
		return []int{}, nil
	}
	out := make([]int, length)
	for p := range out {
		out[p] = shifts[p%len(shifts)]
	}
	return out, nil
}
