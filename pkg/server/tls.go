package server

import (
	"crypto/tls"
	"fmt"

	"github.com/polisai/polis-cipher/pkg/config"
)

// secureCipherSuites lists the TLS 1.2 suites offered, strongest first.
// TLS 1.3 suites are not configurable.
var secureCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
}

// buildTLSConfig loads the key pair and applies secure defaults.
func buildTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}

	minVersion := uint16(tls.VersionTLS12)
	if cfg.MinVersion == "1.3" {
		minVersion = tls.VersionTLS13
	}

	return &tls.Config{
		Certificates:  []tls.Certificate{cert},
		MinVersion:    minVersion,
		CipherSuites:  secureCipherSuites,
		Renegotiation: tls.RenegotiateNever,
	}, nil
}
