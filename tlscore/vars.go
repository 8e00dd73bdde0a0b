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

import "crypto/x509/pkix"

// ConnVars is the read-only snapshot of observable connection attributes
// available once a handshake has progressed far enough to populate them:
// SSL_PROTOCOL, SSL_CIPHER, SSL_TLS_SNI and SSL_CLIENT_*. The host's request
// gate and logging layer read this instead of reaching into ConnState
// directly, keeping the exposition surface small and stable.
type ConnVars struct {
	Protocol string // SSL_PROTOCOL
	Cipher   string // SSL_CIPHER
	SNI      string // SSL_TLS_SNI

	ClientVerified bool      // SSL_CLIENT_VERIFY == "SUCCESS"
	ClientSubject  pkix.Name // SSL_CLIENT_S_DN
	ClientIssuer   pkix.Name // SSL_CLIENT_I_DN
	ClientSerial   string    // SSL_CLIENT_M_SERIAL
}

// Vars builds a ConnVars snapshot from cc and profile. It returns the zero
// value's fields for anything not yet known (e.g. before POST_HANDSHAKE,
// Protocol and Cipher are empty strings) rather than erroring, since a host
// may read these speculatively from logging middleware at any state.
func Vars(cc *ConnState, profile *Profile) ConnVars {
	v := ConnVars{SNI: cc.SNIHostname}

	if profile != nil {
		if name, ok := profile.VersionName(cc.TLSProtocolID); ok {
			v.Protocol = name
		}
		if name, ok := profile.CipherName(cc.TLSCipherID); ok {
			v.Cipher = name
		}
	}

	if len(cc.PeerCerts) > 0 {
		leaf := cc.PeerCerts[0]
		v.ClientVerified = true
		v.ClientSubject = leaf.Subject
		v.ClientIssuer = leaf.Issuer
		v.ClientSerial = leaf.SerialNumber.String()
	}

	return v
}
