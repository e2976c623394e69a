// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adapter

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Verify is the TLS server certificate verification policy of a send.
//
// The zero value verifies against the system certificate pool. Set
// Insecure to skip verification entirely, or CAFile to verify against a
// PEM bundle instead of the system pool. CAFile may also name a
// directory, in which case every file in it is read.
type Verify struct {
	Insecure bool
	CAFile   string
}

// VerifyNone disables TLS verification. Every send using it logs a
// warning and marks its response with InsecureTLS.
var VerifyNone = Verify{Insecure: true}

// VerifyCA verifies against the PEM bundle at path.
func VerifyCA(path string) Verify {
	return Verify{CAFile: path}
}

// IsSystem reports whether v is the system default policy.
func (v Verify) IsSystem() bool {
	return v == Verify{}
}

// Cert is a client certificate for mutual TLS. KeyFile may be empty if
// CertFile holds both the certificate and its private key.
type Cert struct {
	CertFile string
	KeyFile  string
}

type tlsKey struct {
	verify Verify
	cert   Cert
}

// tlsConfigs caches TLS configurations so that CA bundles and key
// pairs are loaded once per adapter.
type tlsConfigs struct {
	mu sync.Mutex
	m  map[tlsKey]*tls.Config
}

func (c *tlsConfigs) get(v Verify, cert Cert) (*tls.Config, error) {
	k := tlsKey{v, cert}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg, ok := c.m[k]; ok {
		return cfg, nil
	}
	cfg, err := newTLSConfig(v, cert)
	if err != nil {
		return nil, err
	}
	if c.m == nil {
		c.m = make(map[tlsKey]*tls.Config)
	}
	c.m[k] = cfg
	return cfg, nil
}

func newTLSConfig(v Verify, cert Cert) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: v.Insecure,
	}

	if !v.Insecure && v.CAFile != "" {
		pool, err := loadCAs(v.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if cert.CertFile != "" {
		keyFile := cert.KeyFile
		if keyFile == "" {
			keyFile = cert.CertFile
		}
		pair, err := tls.LoadX509KeyPair(cert.CertFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	return cfg, nil
}

func loadCAs(path string) (*x509.CertPool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not find a suitable TLS CA certificate bundle: %w", err)
	}
	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		files = files[:0]
		for _, entry := range entries {
			if !entry.IsDir() {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}

	pool := x509.NewCertPool()
	ok := false
	for _, f := range files {
		pem, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		ok = pool.AppendCertsFromPEM(pem) || ok
	}
	if !ok {
		return nil, errors.New("no certificates found in CA bundle " + path)
	}
	return pool, nil
}
