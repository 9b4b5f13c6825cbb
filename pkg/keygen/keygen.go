// Package keygen produces random keys for the cipher package.
package keygen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/polisai/polis-cipher/pkg/cipher"
)

// ErrInvalidLength is returned when a key of fewer than one letter is requested.
var ErrInvalidLength = errors.New("key length must be at least 1")

// DefaultLength is used when callers do not ask for a specific length.
const DefaultLength = 16

// Generator produces random keys.
type Generator interface {
	Generate(length int) (string, error)
}

// Random draws letters uniformly from Source. A nil Source means crypto/rand.
type Random struct {
	Source io.Reader
}

// Generate returns length letters drawn uniformly from cipher.Alphabet.
func (g Random) Generate(length int) (string, error) {
	if length < 1 {
		return "", ErrInvalidLength
	}

	src := g.Source
	if src == nil {
		src = rand.Reader
	}

	key := make([]byte, length)
	buf := make([]byte, 1)
	for i := 0; i < length; {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		// bytes at or above rejectAbove would bias the low letters
		if buf[0] >= rejectAbove {
			continue
		}
		key[i] = byte(cipher.LetterOf(int(buf[0]) % cipher.AlphabetSize))
		i++
	}
	return string(key), nil
}

// rejectAbove is the largest multiple of the alphabet size that fits in a byte.
const rejectAbove = 256 / cipher.AlphabetSize * cipher.AlphabetSize

// GenerateKey returns a random key of length letters using crypto/rand.
func GenerateKey(length int) (string, error) {
	return Random{}.Generate(length)
}
