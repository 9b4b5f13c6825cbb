package cipher

// Alphabet is the ordered set of letters the codec operates on.
const Alphabet = "abcdefghijklmnopqrstuvwxyz"

// AlphabetSize is the modulus used for every shift.
const AlphabetSize = len(Alphabet)

// IndexOf returns the position of r in Alphabet. Only lowercase letters are
// recognised; callers must case-fold first.
func IndexOf(r rune) (int, bool) {
	if r < 'a' || r > 'z' {
		return 0, false
	}
	return int(r - 'a'), true
}

// LetterOf returns the letter at position i. i must already be reduced
// modulo AlphabetSize.
func LetterOf(i int) rune {
	if i < 0 || i >= AlphabetSize {
		panic("cipher: letter index out of range")
	}
	return rune(Alphabet[i])
}

// fold lowers ASCII capitals and leaves every other rune alone.
func fold(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
