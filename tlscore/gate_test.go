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
	"testing"
)

func TestRequestCheckServiceUnavailable(t *testing.T) {
	v := NewVhostConfig("a.example")
	cc := NewConnState(v)
	cc.State = StateTraffic
	cc.ServiceUnavailable = true

	if got := RequestCheck(cc, false, v); got != Status503 {
		t.Fatalf("RequestCheck = %v, want 503", got)
	}
}

func TestRequestCheckNoSNIWithVhostsConfigured(t *testing.T) {
	v := NewVhostConfig("a.example")
	cc := NewConnState(v)
	cc.State = StateTraffic

	if got := RequestCheck(cc, true, v); got != Status403 {
		t.Fatalf("RequestCheck = %v, want 403", got)
	}
}

func TestRequestCheckDeclineWhenCompatible(t *testing.T) {
	v := NewVhostConfig("a.example")
	cc := NewConnState(v)
	cc.State = StateTraffic
	cc.SNIHostname = "a.example"

	if got := RequestCheck(cc, false, v); got != Decline {
		t.Fatalf("RequestCheck = %v, want Decline", got)
	}
}

func TestCompatibleForSameVhost(t *testing.T) {
	v := NewVhostConfig("a.example")
	cc := NewConnState(v)

	if !compatibleFor(cc, v) {
		t.Fatal("a vhost must always be compatible with itself")
	}
}

func TestCompatibleForProtocolMinRejectsLowerConnection(t *testing.T) {
	cc := NewConnState(NewVhostConfig("a.example"))
	cc.TLSProtocolID = tls.VersionTLS12

	d := NewVhostConfig("d.example")
	d.ProtocolMin = tls.VersionTLS13

	if compatibleFor(cc, d) {
		t.Fatal("a connection negotiated below d's minimum version must be incompatible")
	}
}

func TestCompatibleForSuppressedCipherRejects(t *testing.T) {
	cc := NewConnState(NewVhostConfig("a.example"))
	cc.TLSCipherID = tls.TLS_RSA_WITH_AES_128_CBC_SHA

	d := NewVhostConfig("d.example")
	d.SuppressedCiphers = []uint16{tls.TLS_RSA_WITH_AES_128_CBC_SHA}

	if compatibleFor(cc, d) {
		t.Fatal("a connection using a cipher d suppresses must be incompatible")
	}
}

func TestCompatibleForIgnoresCertificateDifferences(t *testing.T) {
	cc := NewConnState(NewVhostConfig("a.example"))
	cc.TLSProtocolID = tls.VersionTLS13
	cc.TLSCipherID = tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

	d := NewVhostConfig("d.example")
	// d's certificates are totally unrelated to the connection's, but
	// that must not be a reason to reject.
	d.CertSpecs = []CertSpec{{Cert: CertSource{Path: "/does/not/matter.pem"}}}

	if !compatibleFor(cc, d) {
		t.Fatal("certificate differences alone must not make a vhost incompatible")
	}
}

func TestRequestCheckMisdirected(t *testing.T) {
	cc := NewConnState(NewVhostConfig("a.example"))
	cc.State = StateTraffic
	cc.SNIHostname = "a.example"
	cc.TLSProtocolID = tls.VersionTLS12

	d := NewVhostConfig("d.example")
	d.ProtocolMin = tls.VersionTLS13

	if got := RequestCheck(cc, false, d); got != Status421 {
		t.Fatalf("RequestCheck = %v, want 421", got)
	}
}
