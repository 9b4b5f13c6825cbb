package cipher

import "errors"

// ErrInvalidKey is returned when a key holds no alphabet letters.
var ErrInvalidKey = errors.New("invalid key: must contain at least one letter a-z")
