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

func TestConnStateMonotonicAdvance(t *testing.T) {
	base := NewVhostConfig("base")
	cc := NewConnState(base)

	if cc.State != StateInit {
		t.Fatalf("new ConnState should start in INIT, got %s", cc.State)
	}

	if err := cc.advance(StatePreHandshake); err != nil {
		t.Fatalf("advance INIT -> PRE_HANDSHAKE: %v", err)
	}
	if err := cc.advance(StateHandshake); err != nil {
		t.Fatalf("advance PRE_HANDSHAKE -> HANDSHAKE: %v", err)
	}
	if err := cc.advance(StatePreHandshake); err == nil {
		t.Fatal("expected an error retreating HANDSHAKE -> PRE_HANDSHAKE")
	}
}

func TestConnStateInitToDisabledIsThePermittedRetreat(t *testing.T) {
	base := NewVhostConfig("base")
	cc := NewConnState(base)

	if err := cc.advance(StateDisabled); err != nil {
		t.Fatalf("INIT -> DISABLED must be permitted: %v", err)
	}
}

func TestConnStateServerReassignedAtMostOnce(t *testing.T) {
	base := NewVhostConfig("base")
	other := NewVhostConfig("other")
	cc := NewConnState(base)

	if err := cc.reassignServer(other); err != nil {
		t.Fatalf("first reassignment should succeed: %v", err)
	}
	if cc.Server != other {
		t.Fatalf("Server = %v, want %v", cc.Server, other)
	}

	third := NewVhostConfig("third")
	if err := cc.reassignServer(third); err == nil {
		t.Fatal("a second reassignment must fail")
	}
}

func TestConnStateReleaseFreesClonedKeyExactlyOnce(t *testing.T) {
	certPEM, keyPEM := generateTestCert(t, "release.example")
	ck, err := oneShotCertifiedKey(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("oneShotCertifiedKey: %v", err)
	}

	base := NewVhostConfig("base")
	cc := NewConnState(base)
	cc.Key = ck.clone()
	cc.KeyCloned = true

	cc.Release(nil)
	if cc.KeyCloned || cc.Key != nil {
		t.Fatal("Release must clear a connection-owned cloned key")
	}

	// Safe to call twice.
	cc.Release(nil)
}
