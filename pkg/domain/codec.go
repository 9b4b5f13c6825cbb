package domain

import "time"

// Operation names a codec direction.
type Operation string

const (
	// OperationEncode shifts plaintext forward by the key.
	OperationEncode Operation = "encode"
	// OperationDecode reverses OperationEncode.
	OperationDecode Operation = "decode"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	return op == OperationEncode || op == OperationDecode
}

// CodecRequest is the body of an encode or decode call. Exactly one of Key and
// KeyID must be set.
type CodecRequest struct {
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
	KeyID   string `json:"key_id,omitempty"`
}

// CodecResult is returned for a successful encode or decode call.
type CodecResult struct {
	Operation Operation `json:"operation"`
	Output    string    `json:"output"`
	KeyID     string    `json:"key_id,omitempty"`
	RequestID string    `json:"request_id"`
}

// StoredKey is a named key held by a key store. Value is always normalized.
type StoredKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyRequest asks the service to generate and store a key.
type KeyRequest struct {
	Name   string `json:"name"`
	Length int    `json:"length,omitempty"`
}

// KeyResponse returns a generated key once, at creation time.
type KeyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}
