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
	"github.com/mholt/acmez/v3"
	"golang.org/x/net/http2"
)

// Well-known application protocol names. ProtocolH2 and ProtocolACMETLS1
// are sourced from the libraries that own them (http2.NextProtoTLS,
// acmez.ACMETLS1Protocol) rather than hand-typed, so a version bump in
// either keeps this core correct for free.
const (
	ProtocolHTTP11   = "http/1.1"
	ProtocolH2       = http2.NextProtoTLS
	ProtocolACMETLS1 = acmez.ACMETLS1Protocol
)

// ProtocolRegistry is the host's protocol-switching machinery: it knows
// which protocols are available for a given vhost and can select one from
// the client's ALPN list, then wire up whatever processor that protocol
// needs (e.g. an HTTP/2 frame reader).
type ProtocolRegistry interface {
	// CurrentProtocol returns the protocol currently active for the
	// connection (get_protocol).
	CurrentProtocol(cc *ConnState) string

	// SelectProtocol picks a protocol from proposed for this vhost, or
	// reports false if none of the client's proposals are acceptable.
	SelectProtocol(cc *ConnState, v *VhostConfig, proposed []string) (string, bool)

	// SwitchProtocol installs whatever processor the chosen protocol
	// needs on the connection.
	SwitchProtocol(cc *ConnState, v *VhostConfig, name string) error
}

// ChallengeAnswerer is the ACME challenge responder: given the SNI name
// offered under the "acme-tls/1" protocol, it returns a one-shot
// certificate/key PEM pair if it is currently answering a challenge for
// that name.
type ChallengeAnswerer interface {
	AnswerChallenge(sni string) (certPEM, keyPEM []byte, ok bool)
}

// negotiateALPN asks the host's protocol registry to pick a protocol from
// the client's proposals and records it as the connection's application
// protocol; if it differs from the connection's current protocol, it first
// switches the host over to it. The caller narrows the cloned TLS config's
// ALPN list to the recorded protocol. If the
// chosen protocol is a challenge protocol (neither http/1.1 nor h2), ask
// the challenge answerer for a one-shot cert and install it as the
// connection's local_keys override.
func negotiateALPN(cc *ConnState, v *VhostConfig, registry ProtocolRegistry, challenge ChallengeAnswerer) error {
	if registry == nil || len(cc.ALPN) == 0 {
		return nil
	}

	chosen, ok := registry.SelectProtocol(cc, v, cc.ALPN)
	if !ok {
		return nil
	}

	current := registry.CurrentProtocol(cc)
	if chosen == current {
		cc.ApplicationProtocol = chosen
		return nil
	}

	if err := registry.SwitchProtocol(cc, v, chosen); err != nil {
		return handshakeError("protocol switch failed", err)
	}
	cc.ApplicationProtocol = chosen

	if chosen != ProtocolHTTP11 && chosen != ProtocolH2 {
		if challenge == nil {
			return nil
		}
		certPEM, keyPEM, ok := challenge.AnswerChallenge(cc.SNIHostname)
		if !ok {
			return nil
		}
		ck, err := oneShotCertifiedKey(certPEM, keyPEM)
		if err != nil {
			return err
		}
		cc.LocalKeys = []*CertifiedKey{ck}
		cc.ServiceUnavailable = true
	}

	return nil
}
