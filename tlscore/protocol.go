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
	"fmt"
	"sort"

	"github.com/klauspost/cpuid/v2"
)

// Profile enumerates the TLS versions and cipher suites the underlying
// library (crypto/tls) supports, in its own preference order, along with
// name <-> ID lookups for both. It is built once at post-config and never
// mutated afterward; every vhost config is assembled against the same
// Profile.
type Profile struct {
	versions     []uint16 // ascending, library-supported
	versionNames map[uint16]string
	ciphers      []uint16 // library-default preference order
	cipherNames  map[uint16]string
}

// supportedVersions lists every TLS version crypto/tls is willing to
// negotiate, oldest first. crypto/tls has refused SSLv3 and below for a
// long time, so this is the full usable range.
var supportedVersions = []uint16{
	tls.VersionTLS10,
	tls.VersionTLS11,
	tls.VersionTLS12,
	tls.VersionTLS13,
}

var versionNameTable = map[uint16]string{
	tls.VersionTLS10: "TLSv1.0",
	tls.VersionTLS11: "TLSv1.1",
	tls.VersionTLS12: "TLSv1.2",
	tls.VersionTLS13: "TLSv1.3",
}

// cipherNameTable mirrors caddytls's SupportedCiphersMap: OpenSSL-style
// names for every cipher suite this core is willing to let a vhost prefer
// or suppress. TLS 1.3 suites are not listed here since crypto/tls chooses
// among them automatically and they cannot be individually suppressed.
var cipherNameTable = map[uint16]string{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384: "ECDHE-ECDSA-AES256-GCM-SHA384",
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:   "ECDHE-RSA-AES256-GCM-SHA384",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256: "ECDHE-ECDSA-AES128-GCM-SHA256",
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:   "ECDHE-RSA-AES128-GCM-SHA256",
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305:  "ECDHE-ECDSA-CHACHA20-POLY1305",
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305:    "ECDHE-RSA-CHACHA20-POLY1305",
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA:      "ECDHE-RSA-AES256-CBC-SHA",
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA:      "ECDHE-RSA-AES128-CBC-SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA:    "ECDHE-ECDSA-AES256-CBC-SHA",
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA:    "ECDHE-ECDSA-AES128-CBC-SHA",
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384:         "RSA-AES256-GCM-SHA384",
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256:         "RSA-AES128-GCM-SHA256",
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:            "RSA-AES256-CBC-SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:            "RSA-AES128-CBC-SHA",
}

// defaultCipherOrderAESNI and defaultCipherOrderNonAESNI are the
// library-default preference orders used when a vhost has no
// TLSCiphersPrefer directive. With AES-NI: AES-GCM first, then
// ChaCha20-Poly1305, then the older CBC suites, matching caddytls's
// defaultCiphers/defaultCiphersNonAESNI split by hardware AES-NI support.
var defaultCipherOrderAESNI = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA,
}

var defaultCipherOrderNonAESNI = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA,
}

// preferredCipherOrder picks the AES-NI or ChaCha20-first ordering
// depending on hardware support, exactly as caddytls's
// getPreferredDefaultCiphers does, upgraded to the cpuid/v2 API.
//
// See https://github.com/caddyserver/caddy/issues/1674
func preferredCipherOrder() []uint16 {
	if cpuid.CPU.Supports(cpuid.AESNI) {
		return defaultCipherOrderAESNI
	}
	return defaultCipherOrderNonAESNI
}

// NewProfile builds the process-wide Protocol Profile. It is meant to be
// called exactly once, during post-config.
func NewProfile() *Profile {
	versions := append([]uint16(nil), supportedVersions...)
	versionNames := make(map[uint16]string, len(versionNameTable))
	for id, name := range versionNameTable {
		versionNames[id] = name
	}

	ciphers := preferredCipherOrder()
	cipherNames := make(map[uint16]string, len(cipherNameTable))
	for id, name := range cipherNameTable {
		cipherNames[id] = name
	}

	return &Profile{
		versions:     versions,
		versionNames: versionNames,
		ciphers:      ciphers,
		cipherNames:  cipherNames,
	}
}

// Versions returns the supported TLS versions, ascending.
func (p *Profile) Versions() []uint16 { return append([]uint16(nil), p.versions...) }

// Ciphers returns the supported cipher-suite IDs in library-default order.
func (p *Profile) Ciphers() []uint16 { return append([]uint16(nil), p.ciphers...) }

// VersionName returns the display name for a supported version ID.
func (p *Profile) VersionName(id uint16) (string, bool) {
	name, ok := p.versionNames[id]
	return name, ok
}

// CipherName returns the display name for a supported cipher ID. TLS 1.3
// suites, which are not in the prefer/suppress table, are named by their
// crypto/tls names.
func (p *Profile) CipherName(id uint16) (string, bool) {
	name, ok := p.cipherNames[id]
	if !ok {
		switch id {
		case tls.TLS_AES_128_GCM_SHA256, tls.TLS_AES_256_GCM_SHA384, tls.TLS_CHACHA20_POLY1305_SHA256:
			return tls.CipherSuiteName(id), true
		}
	}
	return name, ok
}

// CipherIDByName is the inverse of CipherName, used when a directive names
// a cipher by its OpenSSL-style string.
func (p *Profile) CipherIDByName(name string) (uint16, bool) {
	for id, n := range p.cipherNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// IsKnownCipher reports whether id is one of the suites in the profile's
// prefer/suppress name table, whether or not any vhost configures it. TLS
// 1.3 suites are not in that table and report false.
func (p *Profile) IsKnownCipher(id uint16) bool {
	_, ok := p.cipherNames[id]
	return ok
}

// VersionsAtLeast returns the supported versions >= min, in ascending
// (library-preference) order. A min of 0 returns every supported version.
func (p *Profile) VersionsAtLeast(min uint16) []uint16 {
	var out []uint16
	for _, v := range p.versions {
		if min == 0 || v >= min {
			out = append(out, v)
		}
	}
	return out
}

// containsCipher reports whether id appears in set.
func containsCipher(set []uint16, id uint16) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}

// FilterSuppressed returns allowed = supported \ suppressed, preserving
// the order of supported.
func FilterSuppressed(supported, suppressed []uint16) []uint16 {
	if len(suppressed) == 0 {
		return append([]uint16(nil), supported...)
	}
	out := make([]uint16, 0, len(supported))
	for _, id := range supported {
		if !containsCipher(suppressed, id) {
			out = append(out, id)
		}
	}
	return out
}

// ReorderPreferred reorders allowed so that any cipher present in preferred
// appears first, in preferred's configured order, followed by the
// remaining allowed ciphers in their existing (library-default) relative
// order. It also returns the subset of preferred that is entirely unknown
// to the library (neither in allowed nor in the library's supported set at
// all), for the caller to warn about as ineffective.
func (p *Profile) ReorderPreferred(allowed, preferred []uint16) (ordered []uint16, ineffective []uint16) {
	if len(preferred) == 0 {
		return append([]uint16(nil), allowed...), nil
	}

	used := make(map[uint16]bool, len(preferred))
	for _, id := range preferred {
		if containsCipher(allowed, id) && !used[id] {
			ordered = append(ordered, id)
			used[id] = true
		} else if !p.IsKnownCipher(id) {
			ineffective = append(ineffective, id)
		}
	}
	for _, id := range allowed {
		if !used[id] {
			ordered = append(ordered, id)
		}
	}
	return ordered, ineffective
}

// sortedCipherNames is a small helper for deterministic log output; not
// used on any hot path.
func sortedCipherNames(p *Profile, ids []uint16) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := p.CipherName(id); ok {
			names = append(names, n)
		} else {
			names = append(names, fmt.Sprintf("0x%04x", id))
		}
	}
	sort.Strings(names)
	return names
}
