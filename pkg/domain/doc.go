// Package domain defines the types shared by the codec service layers.
//
// This package has no dependencies outside the Go standard library. Transport,
// storage and policy packages depend on it, never the other way round:
//
//	server, storage, policy → domain (CORRECT)
//	domain → server (FORBIDDEN)
package domain
