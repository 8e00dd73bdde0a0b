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
	"errors"
	"testing"
)

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := configError("bad thing", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
	if err.Code != ErrConfig {
		t.Fatalf("Code = %v, want ErrConfig", err.Code)
	}
}

func TestErrorStringIncludesCodeAndDesc(t *testing.T) {
	err := handshakeError("peer reset", nil)
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty error string")
	}
	if got := err.Code.String(); got != "handshake" {
		t.Fatalf("Code.String() = %q, want handshake", got)
	}
}

func TestErrorCodeStringUnknown(t *testing.T) {
	var c ErrorCode = 99
	if got := c.String(); got != "unknown" {
		t.Fatalf("String() = %q, want unknown", got)
	}
}
