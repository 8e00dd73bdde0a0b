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

import "testing"

func TestLoadCertifiedKeyExtractsNames(t *testing.T) {
	certPEM, keyPEM := generateTestCert(t, "names.example")
	spec := CertSpec{Cert: CertSource{PEM: certPEM}, Key: CertSource{PEM: keyPEM}}

	ck, err := loadCertifiedKey(spec)
	if err != nil {
		t.Fatalf("loadCertifiedKey: %v", err)
	}
	if len(ck.Names) == 0 || ck.Names[0] != "names.example" {
		t.Fatalf("Names = %v, want [names.example ...]", ck.Names)
	}
	if ck.Hash == "" {
		t.Fatal("expected a non-empty Hash")
	}
}

func TestSpecKeyStableForEqualSources(t *testing.T) {
	certPEM, keyPEM := generateTestCert(t, "stable.example")
	s1 := CertSpec{Cert: CertSource{PEM: certPEM}, Key: CertSource{PEM: keyPEM}}
	s2 := CertSpec{Cert: CertSource{PEM: certPEM}, Key: CertSource{PEM: keyPEM}}

	k1, err := s1.specKey()
	if err != nil {
		t.Fatalf("specKey: %v", err)
	}
	k2, err := s2.specKey()
	if err != nil {
		t.Fatalf("specKey: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("specKey differed for equal sources: %q vs %q", k1, k2)
	}
}

func TestCertifiedKeyCloneIsIndependent(t *testing.T) {
	certPEM, keyPEM := generateTestCert(t, "clone.example")
	ck, err := oneShotCertifiedKey(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("oneShotCertifiedKey: %v", err)
	}

	clone := ck.clone()
	clone.Certificate.OCSPStaple = []byte("staple-bytes")

	if len(ck.Certificate.OCSPStaple) != 0 {
		t.Fatal("mutating a clone's OCSP staple must not affect the original key")
	}
}
