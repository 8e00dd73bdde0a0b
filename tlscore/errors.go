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

import "fmt"

// ErrorCode classifies an Error the way the host's status layer needs to
// react to it: abort post-config, abort the connection, or decline a
// single request.
type ErrorCode int

const (
	// ErrConfig marks a fatal post-config error; the server must not start.
	ErrConfig ErrorCode = iota
	// ErrHandshake marks a per-connection handshake failure; the
	// connection is aborted and transitions to StateDisabled.
	ErrHandshake
	// ErrRequest marks a per-request condition mapped to an HTTP status
	// by the Request Gate; it never aborts the connection.
	ErrRequest
)

func (c ErrorCode) String() string {
	switch c {
	case ErrConfig:
		return "config"
	case ErrHandshake:
		return "handshake"
	case ErrRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Error is the translated form of a low-level failure: a stable code plus
// a human-readable descriptor, the way the Apache original's tls_core_error
// stashes a rustls status code and descriptor on the connection for later
// exposition. It wraps the underlying cause so callers can still errors.Is
// / errors.As through it.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tlscore: %s: %s: %v", e.Code, e.Desc, e.Err)
	}
	return fmt.Sprintf("tlscore: %s: %s", e.Code, e.Desc)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, desc string, cause error) *Error {
	return &Error{Code: code, Desc: desc, Err: cause}
}

func configError(desc string, cause error) *Error {
	return newError(ErrConfig, desc, cause)
}

func handshakeError(desc string, cause error) *Error {
	return newError(ErrHandshake, desc, cause)
}
