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
	"crypto/x509"
	"fmt"

	"github.com/google/uuid"
)

// ConnState is the per-connection mutable record tracking one TLS
// connection's handshake progress and negotiated parameters. It is bound
// to a single worker/goroutine at a time and is never shared.
type ConnState struct {
	// TraceID correlates log lines across the lifetime of one
	// connection. It has no protocol meaning; it exists purely for log
	// correlation.
	TraceID string

	// Server is the currently selected vhost. It starts as the base
	// server the connection was accepted on and may be reassigned
	// exactly once, after SNI is seen and before the handshake
	// completes.
	Server *VhostConfig

	initialServer  *VhostConfig
	serverChanged  bool

	State State

	ClientHelloSeen bool
	SNIHostname     string
	ALPN            []string

	// ApplicationProtocol equals the host's default until ALPN
	// negotiation overrides it.
	ApplicationProtocol string

	// LocalKeys is a per-connection certificate override used by
	// challenge protocols (e.g. ACME TLS-ALPN-01). When non-empty it
	// overrides Server.CertifiedKeys for this connection only.
	LocalKeys []*CertifiedKey

	Key       *CertifiedKey
	KeyCloned bool

	ServiceUnavailable bool

	PeerCerts []*x509.Certificate

	TLSProtocolID uint16
	TLSCipherID   uint16

	LastError *Error

	aborted bool
}

// State is the connection lifecycle state machine.
type State int

const (
	StateInit State = iota
	StateDisabled
	StatePreHandshake
	StateHandshake
	StateTraffic
	StateNotified
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDisabled:
		return "DISABLED"
	case StatePreHandshake:
		return "PRE_HANDSHAKE"
	case StateHandshake:
		return "HANDSHAKE"
	case StateTraffic:
		return "TRAFFIC"
	case StateNotified:
		return "NOTIFIED"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// stateRank gives every state a monotonic rank so advance() can enforce
// the invariant that state never decreases except the one permitted
// retreat INIT -> DISABLED.
var stateRank = map[State]int{
	StateInit:         0,
	StateDisabled:     1,
	StatePreHandshake: 2,
	StateHandshake:    3,
	StateTraffic:      4,
	StateNotified:     5,
	StateDone:         6,
}

// NewConnState creates a connection record bound to base, the vhost that
// accepted the connection, with state INIT.
func NewConnState(base *VhostConfig) *ConnState {
	return &ConnState{
		TraceID:             uuid.NewString(),
		Server:              base,
		initialServer:       base,
		State:               StateInit,
		ApplicationProtocol: "http/1.1",
	}
}

// advance moves the connection to next, enforcing the monotonic-state
// invariant. INIT -> DISABLED is the one permitted retreat.
func (c *ConnState) advance(next State) error {
	if c.State == StateInit && next == StateDisabled {
		c.State = next
		return nil
	}
	if stateRank[next] < stateRank[c.State] {
		return fmt.Errorf("tlscore: illegal state transition %s -> %s", c.State, next)
	}
	c.State = next
	return nil
}

// reassignServer implements the "reassigned at most once" invariant for
// ConnState.Server: it may only happen once, and only before the state
// transitions to HANDSHAKE (callers invoke this while resolving the vhost
// from SNI, before that transition happens).
func (c *ConnState) reassignServer(v *VhostConfig) error {
	if c.serverChanged {
		return fmt.Errorf("tlscore: connection server already reassigned once")
	}
	if v != c.initialServer {
		c.Server = v
		c.serverChanged = true
	}
	return nil
}

// Disable forces the connection to DISABLED if it is still INIT, for a
// host that decides not to enable TLS on this connection after all.
func (c *ConnState) Disable() {
	if c.State == StateInit {
		c.State = StateDisabled
	}
}

// Abort marks the connection aborted and forces it to DISABLED; cleanup
// then runs on all exit paths.
func (c *ConnState) Abort(err *Error) {
	c.aborted = true
	c.LastError = err
	c.State = StateDisabled
}

// Aborted reports whether Abort was called.
func (c *ConnState) Aborted() bool { return c.aborted }

// Release frees any connection-owned resources. It must be safe to call
// more than once and on every exit path, including after an abort.
func (c *ConnState) Release(registry *Registry) {
	// KeyCloned ⇒ Key != nil and this connection, not the registry, owns
	// the CertifiedKey; the clone carries no other resources beyond
	// memory, so releasing it is just dropping the reference.
	if c.KeyCloned {
		c.Key = nil
		c.KeyCloned = false
	}
	c.LocalKeys = nil
}
