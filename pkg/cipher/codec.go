package cipher

import "strings"

// Direction selects the combining step of a transform.
type Direction int

const (
	// Forward adds the key shift.
	Forward Direction = iota
	// Inverse subtracts the key shift.
	Inverse
)

func (d Direction) String() string {
	if d == Inverse {
		return "decode"
	}
	return "encode"
}

// Codec holds a validated key and may be shared across goroutines. Build it
// with New.
type Codec struct {
	key    string
	shifts []int
}

// New validates key and returns a Codec bound to it.
func New(key string) (Codec, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return Codec{}, err
	}
	return Codec{key: normalized, shifts: shiftsOf(normalized)}, nil
}

// Key returns the normalized key.
func (c Codec) Key() string {
	return c.key
}

// Encode shifts every letter of message forward by the matching key letter.
func (c Codec) Encode(message string) string {
	return c.Transform(message, Forward)
}

// Decode reverses Encode.
func (c Codec) Decode(ciphertext string) string {
	return c.Transform(ciphertext, Inverse)
}

// Transform applies the key to input in the given direction. The zero Codec
// has no key; using it panics with ErrInvalidKey.
func (c Codec) Transform(input string, dir Direction) string {
	runes := []rune(input)
	shifts, err := expand(c.shifts, len(runes))
	if err != nil {
		panic(err)
	}

	var b strings.Builder
	b.Grow(len(runes))
	for i, r := range runes {
		m, ok := IndexOf(fold(r))
		if !ok {
			// spaces and unsupported characters both render as a space
			b.WriteByte(' ')
			continue
		}
		s := shifts[i]
		if dir == Inverse {
			b.WriteRune(LetterOf((m - s + AlphabetSize) % AlphabetSize))
		} else {
			b.WriteRune(LetterOf((m + s) % AlphabetSize))
		}
	}
	return b.String()
}

// Encode is a convenience wrapper around New and Codec.Encode.
func Encode(message, key string) (string, error) {
	c, err := New(key)
	if err != nil {
		return "", err
	}
	return c.Encode(message), nil
}

// Decode is a convenience wrapper around New and Codec.Decode.
func Decode(ciphertext, key string) (string, error) {
	c, err := New(key)
	if err != nil {
		return "", err
	}
	return c.Decode(ciphertext), nil
}
