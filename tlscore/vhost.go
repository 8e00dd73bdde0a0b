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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ClientAuthMode is a three-valued client-auth policy. It deliberately
// does not reuse tls.ClientAuthType directly in the exported API so a
// host's directive parser has a small, closed vocabulary to map
// TLSClientAuthentication's three values onto.
type ClientAuthMode int

const (
	ClientAuthNone ClientAuthMode = iota
	ClientAuthOptional
	ClientAuthRequired
)

func (m ClientAuthMode) tlsType() tls.ClientAuthType {
	switch m {
	case ClientAuthOptional:
		return tls.VerifyClientCertIfGiven
	case ClientAuthRequired:
		return tls.RequireAndVerifyClientCert
	default:
		return tls.NoClientCert
	}
}

// CertContributor is an external collaborator (e.g. an ACME certificate
// manager) asked, once per vhost at post-config, to append additional
// CertSpecs for that vhost. Contributors run in unspecified order and
// their specs are concatenated after the user-configured ones.
type CertContributor interface {
	ContributeCertSpecs(vhostName string) ([]CertSpec, error)
}

// FallbackCertSource supplies a temporary, self-signed-style certificate
// spec used solely so a vhost with no real certificate can still start
// and answer every request with 503.
type FallbackCertSource interface {
	FallbackCertSpecs(vhostName string) ([]CertSpec, error)
}

// VhostConfig is the per-virtual-server configuration: populated by
// directive parsing (ApplyDirective, see directive.go), completed by
// ApplyDefaults + Build in post-config, and read-only thereafter.
type VhostConfig struct {
	Name    string
	Enabled bool

	CertSpecs []CertSpec

	PreferredCiphers []uint16
	SuppressedCiphers []uint16

	ProtocolMin uint16 // 0 = library default

	HonorClientOrder bool
	StrictSNI        bool

	ClientAuth   ClientAuthMode
	ClientCAFile string

	BaseServer bool

	// Filled in by Build:
	ServiceUnavailable bool
	CertifiedKeys      []*CertifiedKey
	TLSConfig          *tls.Config

	defaultsApplied bool
}

// NewVhostConfig returns a VhostConfig with the library defaults already
// applied, named for the given vhost.
func NewVhostConfig(name string) *VhostConfig {
	v := &VhostConfig{Name: name}
	v.ApplyDefaults()
	return v
}

// ApplyDefaults fills only the unset fields with library defaults — the
// ALPN default and honor-client-order default mirror caddytls's
// SetDefaultTLSParams, which likewise only touches zero-valued fields. It
// is idempotent: applying it twice is the same as applying it once.
func (v *VhostConfig) ApplyDefaults() {
	if v.defaultsApplied {
		return
	}
	// Default ALPN is supplied at Build time (step 8); there is nothing
	// to default here beyond the zero values already being correct
	// defaults: ProtocolMin == 0 means "library default", no preferred/
	// suppressed ciphers means "use the library order untouched",
	// HonorClientOrder == false means "ignore client order" (see Build
	// step 7), ClientAuth == ClientAuthNone needs no CA.
	v.defaultsApplied = true
}

// buildClientCAPool loads and parses the configured client CA file into an
// x509.CertPool, the way caddytls's buildStandardTLSConfig does for
// each of c.ClientCerts, generalized to Config's single TLSClientCA path.
func buildClientCAPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, fmt.Errorf("client authentication enabled but no CA configured")
	}
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading client CA %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates parsed from client CA %s", path)
	}
	return pool, nil
}
