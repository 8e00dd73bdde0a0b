// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tlscore

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

// CertSource names where a certificate or key PEM comes from: either a
// filesystem path, or an in-memory PEM blob supplied directly by
// configuration or an external contributor (e.g. an ACME manager).
type CertSource struct {
	Path string
	PEM  []byte
}

func (s CertSource) String() string {
	if s.Path != "" {
		return s.Path
	}
	return fmt.Sprintf("inline:%x", sha256.Sum256(s.PEM))
}

func (s CertSource) read() ([]byte, error) {
	if s.Path != "" {
		return os.ReadFile(s.Path)
	}
	if len(s.PEM) == 0 {
		return nil, errors.New("empty certificate source")
	}
	return s.PEM, nil
}

// CertSpec is the tuple (cert-source, key-source) the Certificate Registry
// keys on. Two specs with equal sources yield the same CertifiedKey.
type CertSpec struct {
	Cert CertSource
	Key  CertSource
}

// specKey is the registry's map key: sources compared by content, not by
// struct identity, the way the original keys a loaded cert by the hash of
// its source bytes.
func (s CertSpec) specKey() (string, error) {
	certBytes, err := s.Cert.read()
	if err != nil {
		return "", fmt.Errorf("reading certificate %s: %w", s.Cert, err)
	}
	keyBytes, err := s.Key.read()
	if err != nil {
		return "", fmt.Errorf("reading key %s: %w", s.Key, err)
	}
	h := sha256.New()
	h.Write(certBytes)
	h.Write([]byte{0})
	h.Write(keyBytes)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// CertifiedKey is an immutable (certificate chain, private key) handle as
// produced by the Certificate Registry. It wraps a tls.Certificate with
// the metadata the Handshake Orchestrator and Request Gate need without
// re-parsing the leaf on every use.
type CertifiedKey struct {
	tls.Certificate

	// Names is every hostname (or IP) this certificate is valid for: the
	// CommonName first (if any), then SANs.
	Names []string

	// Hash is the hex sha256 of the chain's DER bytes; it is the
	// registry's reverse-lookup id for logging, analogous to the
	// original's registry-assigned stable string.
	Hash string

	// OCSPStaple is not set by loading or by certificate selection.
	// Selection (certSelector.selectFrom in assembler.go) puts a staple on
	// the embedded tls.Certificate's OCSPStaple of a clone; the registry's
	// own copy of a key never has one attached, since stapling is
	// per-connection-selection, not per-load.
	OCSPStaple []byte
}

// loadCertifiedKey parses a cert+key PEM pair into a CertifiedKey. It does
// not staple OCSP; that happens lazily during certificate selection
// (4.5) against the external OCSP component.
func loadCertifiedKey(spec CertSpec) (*CertifiedKey, error) {
	certPEM, err := spec.Cert.read()
	if err != nil {
		return nil, configError("certificate source unreadable", err)
	}
	keyPEM, err := spec.Key.read()
	if err != nil {
		return nil, configError("key source unreadable", err)
	}

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, configError("malformed certificate or key, or key/cert mismatch", err)
	}

	ck := &CertifiedKey{Certificate: tlsCert}
	if err := fillCertifiedKeyFromLeaf(ck); err != nil {
		return nil, configError("parsing certificate leaf", err)
	}
	return ck, nil
}

// fillCertifiedKeyFromLeaf extracts names and a stable hash from the
// leaf certificate, the way caddytls's fillCertFromLeaf does.
func fillCertifiedKeyFromLeaf(ck *CertifiedKey) error {
	if len(ck.Certificate.Certificate) == 0 {
		return errors.New("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(ck.Certificate.Certificate[0])
	if err != nil {
		return err
	}

	if leaf.Subject.CommonName != "" {
		ck.Names = []string{strings.ToLower(leaf.Subject.CommonName)}
	}
	for _, name := range leaf.DNSNames {
		if !strings.EqualFold(name, leaf.Subject.CommonName) {
			ck.Names = append(ck.Names, strings.ToLower(name))
		}
	}
	for _, ip := range leaf.IPAddresses {
		ck.Names = append(ck.Names, ip.String())
	}

	h := sha256.New()
	for _, der := range ck.Certificate.Certificate {
		h.Write(der)
	}
	ck.Hash = fmt.Sprintf("%x", h.Sum(nil))
	return nil
}

// clone returns a shallow copy of ck suitable for carrying a per-connection
// OCSP staple without mutating the registry's shared copy. certSelector
// returns the clone's certificate straight to crypto/tls; that path does
// not set ConnState.Key or ConnState.KeyCloned.
func (ck *CertifiedKey) clone() *CertifiedKey {
	c := *ck
	c.Certificate.OCSPStaple = append([]byte(nil), ck.Certificate.OCSPStaple...)
	return &c
}

// oneShotCertifiedKey builds a connection-local CertifiedKey directly from
// a PEM pair, bypassing the registry entirely. Used by the ACME
// TLS-ALPN-01 challenge path (4.6) for a certificate that is never reused
// beyond one handshake and therefore never belongs in the shared registry
// (Open Question 2, see DESIGN.md).
func oneShotCertifiedKey(certPEM, keyPEM []byte) (*CertifiedKey, error) {
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, handshakeError("malformed challenge certificate", err)
	}
	ck := &CertifiedKey{Certificate: tlsCert}
	if err := fillCertifiedKeyFromLeaf(ck); err != nil {
		return nil, handshakeError("parsing challenge certificate leaf", err)
	}
	return ck, nil
}
