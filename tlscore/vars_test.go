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
	"testing"
)

func TestVarsBeforeHandshakeIsEmpty(t *testing.T) {
	cc := NewConnState(NewVhostConfig("a.example"))
	cc.SNIHostname = "a.example"

	v := Vars(cc, NewProfile())
	if v.SNI != "a.example" {
		t.Fatalf("SNI = %q, want a.example", v.SNI)
	}
	if v.Protocol != "" || v.Cipher != "" {
		t.Fatalf("expected empty Protocol/Cipher before post-handshake, got %q/%q", v.Protocol, v.Cipher)
	}
	if v.ClientVerified {
		t.Fatal("expected ClientVerified to be false with no peer certs")
	}
}

func TestVarsAfterHandshakeReportsNegotiatedParams(t *testing.T) {
	cc := NewConnState(NewVhostConfig("a.example"))
	cc.TLSProtocolID = tls.VersionTLS13
	cc.TLSCipherID = tls.TLS_AES_128_GCM_SHA256

	profile := NewProfile()
	v := Vars(cc, profile)
	if v.Protocol != "TLSv1.3" {
		t.Fatalf("Protocol = %q, want TLSv1.3", v.Protocol)
	}
	if v.Cipher == "" {
		t.Fatal("expected a non-empty Cipher name for a known TLS 1.3 suite")
	}
}

func TestVarsReportsClientCertificate(t *testing.T) {
	certPEM, keyPEM := generateTestCert(t, "client.example")
	ck, err := oneShotCertifiedKey(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("oneShotCertifiedKey: %v", err)
	}
	leaf, err := x509.ParseCertificate(ck.Certificate.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}

	cc := NewConnState(NewVhostConfig("a.example"))
	cc.PeerCerts = []*x509.Certificate{leaf}

	v := Vars(cc, NewProfile())
	if !v.ClientVerified {
		t.Fatal("expected ClientVerified to be true with a peer certificate present")
	}
	if v.ClientSubject.CommonName != "client.example" {
		t.Fatalf("ClientSubject.CommonName = %q, want client.example", v.ClientSubject.CommonName)
	}
}
