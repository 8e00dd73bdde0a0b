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

	"go.uber.org/zap"
)

// SessionCache is an external session-resumption cache. The core treats it
// as a black box it merely attaches to a built *tls.Config; the cache's own
// cross-process locking is that component's concern, not this one's.
type SessionCache interface {
	Attach(cfg *tls.Config)
}

// Assembler turns a directive-populated VhostConfig into an immutable base
// *tls.Config.
type Assembler struct {
	Profile      *Profile
	Registry     *Registry
	Contributors []CertContributor
	Fallback     FallbackCertSource
	Sessions     SessionCache
	OCSP         OCSPSource
	Log          *zap.Logger
}

// NewAssembler wires together the collaborators the Assembler needs. log
// may be nil (a no-op logger is substituted).
func NewAssembler(profile *Profile, registry *Registry, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		Profile:  profile,
		Registry: registry,
		Log:      log.Named("tlscore.assembler"),
	}
}

// Build assembles v's base TLS config in place. It is called once per
// enabled vhost during post-config; any step's error aborts post-config,
// since a vhost with a half-built TLS config must never be started.
func (a *Assembler) Build(v *VhostConfig) error {
	log := a.Log.With(zap.String("vhost", v.Name))

	// Step 1: resolve certificate specs, asking contributors, then
	// falling back, then failing (unless this is the base server).
	specs := append([]CertSpec(nil), v.CertSpecs...)
	for _, c := range a.Contributors {
		contributed, err := c.ContributeCertSpecs(v.Name)
		if err != nil {
			return configError("certificate contributor failed", err)
		}
		specs = append(specs, contributed...)
	}

	if len(specs) == 0 {
		if a.Fallback == nil {
			if !v.BaseServer {
				return configError(fmt.Sprintf("vhost %q has no certificate and no fallback available", v.Name), nil)
			}
		} else {
			fallbackSpecs, err := a.Fallback.FallbackCertSpecs(v.Name)
			if err != nil {
				return configError("fallback certificate lookup failed", err)
			}
			if len(fallbackSpecs) == 0 {
				if !v.BaseServer {
					return configError(fmt.Sprintf("vhost %q has no certificate and no fallback available", v.Name), nil)
				}
			} else {
				specs = fallbackSpecs
				v.ServiceUnavailable = true
				log.Warn("no real certificate configured; serving 503 from a fallback certificate")
			}
		}
	}

	// Step 2: load keys via the registry.
	v.CertifiedKeys = v.CertifiedKeys[:0]
	for _, spec := range specs {
		ck, err := a.Registry.GetOrLoad(spec)
		if err != nil {
			return configError(fmt.Sprintf("loading certificate for vhost %q", v.Name), err)
		}
		v.CertifiedKeys = append(v.CertifiedKeys, ck)
	}

	// Step 3: start a builder whose client-auth mode is baked in.
	cfg := &tls.Config{
		ClientAuth: v.ClientAuth.tlsType(),
	}
	if v.ClientAuth != ClientAuthNone {
		pool, err := buildClientCAPool(v.ClientCAFile)
		if err != nil {
			return configError("client authentication configuration", err)
		}
		cfg.ClientCAs = pool
	}

	// Step 4: install the certificate-selection callback (4.5).
	selector := &certSelector{vhost: v, ocsp: a.OCSP, log: log}
	cfg.GetCertificate = selector.selectCertificate

	// Step 5: apply minimum version.
	if v.ProtocolMin != 0 {
		atLeast := a.Profile.VersionsAtLeast(v.ProtocolMin)
		if len(atLeast) == 0 {
			return configError(fmt.Sprintf("tls_protocol_min %#x is above every supported version", v.ProtocolMin), nil)
		}
		cfg.MinVersion = atLeast[0]
		cfg.MaxVersion = atLeast[len(atLeast)-1]
		if atLeast[0] != v.ProtocolMin {
			log.Warn("configured minimum TLS version is unsupported; silently upgraded",
				zap.Uint16("configured", v.ProtocolMin), zap.Uint16("effective", atLeast[0]))
		}
	}

	// Step 6: apply cipher order.
	supported := a.Profile.Ciphers()
	allowed := FilterSuppressed(supported, v.SuppressedCiphers)
	ordered, ineffective := a.Profile.ReorderPreferred(allowed, v.PreferredCiphers)
	cfg.CipherSuites = ordered
	for _, id := range ineffective {
		log.Warn("preferred cipher is unknown to the library; ignored", zap.Uint16("cipher", id))
	}

	// Step 7: the library's knob is "ignore client order", the inverse
	// of HonorClientOrder.
	cfg.PreferServerCipherSuites = !v.HonorClientOrder

	// Step 8: default ALPN; Phase 2 narrows a per-connection clone later.
	cfg.NextProtos = []string{"http/1.1"}

	// Step 9: attach the external session cache.
	if a.Sessions != nil {
		a.Sessions.Attach(cfg)
	}

	// Step 10: store the built config.
	v.TLSConfig = cfg
	return nil
}

// certSelector picks the certificate presented during a handshake. It is
// installed as a vhost's static tls.Config.GetCertificate, and is also
// invoked directly (selectFrom) by the Handshake Orchestrator once a
// connection's local-keys override is known, since that override can only
// be determined per-connection, inside GetConfigForClient.
type certSelector struct {
	vhost *VhostConfig
	ocsp  OCSPSource
	log   *zap.Logger
}

func (s *certSelector) selectCertificate(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	return s.selectFrom(s.vhost.CertifiedKeys, chi)
}

// selectFrom picks a certificate from an explicit key list: an empty list
// fails the handshake; otherwise the library picks the best match for the
// client hello's signature schemes / key types, and an OCSP staple is
// attached to a clone if the external OCSP cache has one for it.
func (s *certSelector) selectFrom(keys []*CertifiedKey, chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if len(keys) == 0 {
		return nil, handshakeError("no certificate available for this vhost", nil)
	}

	chosen := bestMatch(keys, chi)
	if chosen == nil {
		return nil, handshakeError("no certificate compatible with the client hello", nil)
	}

	if staple, ok := s.lookupOCSPStaple(chosen); ok {
		cloned := chosen.clone()
		cloned.Certificate.OCSPStaple = staple
		return &cloned.Certificate, nil
	}

	return &chosen.Certificate, nil
}

// lookupOCSPStaple consults the external OCSP component, if one is
// configured; a nil OCSPSource simply means stapling is skipped.
func (s *certSelector) lookupOCSPStaple(ck *CertifiedKey) ([]byte, bool) {
	if s.ocsp == nil {
		return nil, false
	}
	return s.ocsp.CachedStaple(ck)
}

// bestMatch asks crypto/tls whether each candidate is usable for this
// client hello (protocol version, signature schemes, key type, curve
// preferences, cipher suites) via ClientHelloInfo.SupportsCertificate,
// returning the first one that passes — first match wins within the
// library's constraints.
func bestMatch(keys []*CertifiedKey, chi *tls.ClientHelloInfo) *CertifiedKey {
	for _, ck := range keys {
		if err := chi.SupportsCertificate(&ck.Certificate); err == nil {
			return ck
		}
	}
	return nil
}
