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
	"net"
	"sync"

	"go.uber.org/zap"
)

// VhostLookup is the host's virtual-host iterator with a name-match
// predicate.
type VhostLookup interface {
	Match(hostname string) (*VhostConfig, bool)
}

// Orchestrator drives per-connection TLS negotiation: resolving the vhost
// from SNI, negotiating ALPN, selecting a certificate, and recording
// post-handshake state. crypto/tls already exposes SNI and ALPN on
// *tls.ClientHelloInfo before a *tls.Config must be committed, so there is
// no need for a separate probe handshake to inspect the client hello first
// — GetConfigForClient below does vhost resolution, ALPN negotiation and
// certificate selection all in one pass, recording the client hello's
// fields on ConnState as it goes.
type Orchestrator struct {
	Vhosts     VhostLookup
	Protocols  ProtocolRegistry
	Challenge  ChallengeAnswerer
	InitialTLS *VhostConfig // not read by onClientHelloSeen, which falls back to the connection's initial vhost

	Log *zap.Logger

	conns sync.Map // net.Conn -> *ConnState
}

// NewOrchestrator wires the Handshake Orchestrator's collaborators.
func NewOrchestrator(vhosts VhostLookup, protocols ProtocolRegistry, challenge ChallengeAnswerer, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		Vhosts:    vhosts,
		Protocols: protocols,
		Challenge: challenge,
		Log:       log.Named("tlscore.handshake"),
	}
}

// Accept binds a new ConnState to conn, seeded with the base server it
// was accepted on, and moves it straight to PRE_HANDSHAKE.
func (o *Orchestrator) Accept(conn net.Conn, base *VhostConfig) *ConnState {
	cc := NewConnState(base)
	cc.State = StatePreHandshake
	o.conns.Store(conn, cc)
	return cc
}

// Lookup returns the ConnState bound to conn, if any.
func (o *Orchestrator) Lookup(conn net.Conn) (*ConnState, bool) {
	v, ok := o.conns.Load(conn)
	if !ok {
		return nil, false
	}
	return v.(*ConnState), true
}

// Release frees connection-owned resources and forgets conn, on every
// exit path including abort.
func (o *Orchestrator) Release(conn net.Conn, registry *Registry) {
	v, ok := o.conns.LoadAndDelete(conn)
	if !ok {
		return
	}
	v.(*ConnState).Release(registry)
}

// GetConfigForClient is installed as the base server's
// tls.Config.GetConfigForClient and is the entry point described above.
func (o *Orchestrator) GetConfigForClient(chi *tls.ClientHelloInfo) (*tls.Config, error) {
	cc, ok := o.Lookup(chi.Conn)
	if !ok {
		return nil, handshakeError("no connection state bound to this handshake", nil)
	}
	return o.onClientHelloSeen(cc, chi)
}

// onClientHelloSeen resolves the vhost, negotiates ALPN and selects a
// certificate for a single client hello.
func (o *Orchestrator) onClientHelloSeen(cc *ConnState, chi *tls.ClientHelloInfo) (*tls.Config, error) {
	cc.ClientHelloSeen = true
	cc.SNIHostname = chi.ServerName
	cc.ALPN = append([]string(nil), chi.SupportedProtos...)

	initial := cc.Server

	// Resolve vhost. The host's vhost iterator matches hostnames against
	// every configured server's names, including the base server's own
	// name, so a hit here covers both "an explicit vhost matches" and
	// "the base server's own name matches".
	matched := false
	if cc.SNIHostname != "" {
		if v, ok := o.Vhosts.Match(cc.SNIHostname); ok {
			if err := cc.reassignServer(v); err != nil {
				return nil, handshakeError("vhost already resolved for this connection", err)
			}
			matched = true
		} else if initial.StrictSNI {
			return nil, handshakeError("no vhost matches SNI "+cc.SNIHostname, nil)
		}
		// else: strict SNI disabled and nothing matched; keep initial.
	}

	selected := cc.Server

	// Recompute service_unavailable now that the vhost is known.
	if matched {
		cc.ServiceUnavailable = selected.ServiceUnavailable
	} else {
		cc.ServiceUnavailable = false
	}

	// Clone the selected vhost's base config, falling back to the
	// initial vhost's if the selected one has none.
	base := selected.TLSConfig
	if base == nil {
		base = initial.TLSConfig
	}
	if base == nil {
		return nil, handshakeError("no TLS config available for vhost "+selected.Name, nil)
	}
	cfg := base.Clone()

	// Negotiate ALPN with the host's protocol switch.
	if err := negotiateALPN(cc, selected, o.Protocols, o.Challenge); err != nil {
		return nil, err
	}
	if cc.ApplicationProtocol != "" {
		cfg.NextProtos = []string{cc.ApplicationProtocol}
	}

	// If this connection has a local-keys override (set by negotiateALPN
	// above for a challenge protocol), the cloned config's GetCertificate
	// must consult it instead of the vhost's static certified keys.
	if len(cc.LocalKeys) > 0 {
		selector := &certSelector{vhost: selected, log: o.Log}
		localKeys := cc.LocalKeys
		cfg.GetCertificate = func(h *tls.ClientHelloInfo) (*tls.Certificate, error) {
			return selector.selectFrom(localKeys, h)
		}
	}

	if err := cc.advance(StateHandshake); err != nil {
		return nil, handshakeError("state transition", err)
	}

	return cfg, nil
}

// PostHandshake is called once the I/O layer reports handshake completion.
// It records the negotiated protocol/cipher and peer certificate chain,
// and fails the connection if client authentication was required but no
// peer certificates were presented.
func (o *Orchestrator) PostHandshake(cc *ConnState, state tls.ConnectionState, profile *Profile) error {
	cc.TLSProtocolID = state.Version
	cc.TLSCipherID = state.CipherSuite
	cc.PeerCerts = state.PeerCertificates

	if cc.Server.ClientAuth == ClientAuthRequired && len(cc.PeerCerts) == 0 {
		err := handshakeError("client authentication required but no certificate presented", nil)
		cc.Abort(err)
		return err
	}

	if err := cc.advance(StateTraffic); err != nil {
		return handshakeError("state transition", err)
	}
	return nil
}
