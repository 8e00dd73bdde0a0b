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

func TestMemoryOCSPCacheMiss(t *testing.T) {
	certPEM, keyPEM := generateTestCert(t, "ocsp-miss.example")
	ck, err := oneShotCertifiedKey(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("oneShotCertifiedKey: %v", err)
	}

	cache := NewMemoryOCSPCache()
	if _, ok := cache.CachedStaple(ck); ok {
		t.Fatal("an empty cache must report a miss")
	}
}

func TestMemoryOCSPCachePutRejectsUnparsableResponse(t *testing.T) {
	certPEM, keyPEM := generateTestCert(t, "ocsp-bad.example")
	ck, err := oneShotCertifiedKey(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("oneShotCertifiedKey: %v", err)
	}

	c := &memoryOCSPCache{byKey: make(map[string]staple)}
	if err := c.Put(ck, []byte("not a valid OCSP response")); err == nil {
		t.Fatal("expected Put to reject an unparsable OCSP response")
	}
}
