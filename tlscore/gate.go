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

// Verdict is the Request Gate's answer for one request: either Decline
// (let the request proceed, or pass it through untouched if TLS is not
// even active on the connection) or one of three HTTP statuses.
type Verdict int

const (
	Decline Verdict = 0
	Status503 Verdict = 503
	Status403 Verdict = 403
	Status421 Verdict = 421
)

// RequestCheck decides whether a request on this connection may proceed.
// hasVhosts tells it whether the host has more than one virtual host
// configured at all (needed for the "no SNI with vhosts configured" 403
// case); requested is the vhost the request's Host header resolves to.
func RequestCheck(cc *ConnState, hasVhosts bool, requested *VhostConfig) Verdict {
	if cc == nil || cc.State == StateDisabled {
		return Decline
	}
	if cc.ServiceUnavailable {
		return Status503
	}
	if cc.SNIHostname == "" && hasVhosts {
		return Status403
	}
	if requested != nil && !compatibleFor(cc, requested) {
		return Status421
	}
	return Decline
}

// compatibleFor is the basis for connection-reuse across vhosts
// (HTTP/2-style coalescing): a vhost is compatible with an already-negotiated connection if the connection's
// selected vhost is the same one, or if the connection's negotiated
// protocol version and cipher still satisfy the requested vhost's own
// minimum-version and suppressed-cipher constraints. Certificate
// differences are deliberately not checked here.
func compatibleFor(cc *ConnState, v *VhostConfig) bool {
	if v == cc.Server {
		return true
	}
	if v.ProtocolMin != 0 && cc.TLSProtocolID < v.ProtocolMin {
		return false
	}
	if containsCipher(v.SuppressedCiphers, cc.TLSCipherID) {
		return false
	}
	return true
}
