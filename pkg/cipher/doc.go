// Package cipher implements a Vigenère-style polyalphabetic substitution codec
// over the 26 lowercase ASCII letters.
//
// Input is case-folded before processing. Spaces pass through unchanged and any
// other unsupported character is rendered as a space, so the output always has
// exactly one character per input character. The key is repeated cyclically
// over absolute message positions: a space consumes a key letter even though its
// shift is discarded.
//
// The scheme offers no cryptographic security.
package cipher
