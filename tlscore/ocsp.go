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
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// OCSPSource is the external OCSP-stapling component. The core only asks
// it for a cached, already-fetched response; fetching and refreshing
// staples is that component's job, the same division caddytls draws
// between stapleOCSP (fetch) and the handshake path (attach).
type OCSPSource interface {
	// CachedStaple returns a DER-encoded OCSP response for ck, if one is
	// cached and not yet expired.
	CachedStaple(ck *CertifiedKey) ([]byte, bool)
}

// staple is the parsed form kept alongside the raw DER bytes so callers
// can check freshness without re-parsing on every handshake.
type staple struct {
	der       []byte
	nextUpdate time.Time
}

// memoryOCSPCache is a minimal in-process OCSPSource: a plain map guarded
// by a mutex, keyed by certificate hash. It is the default used when a
// host does not supply its own OCSP component, grounded in the shape of
// caddytls's stapleOCSP (parse with ocsp.ParseResponse, read NextUpdate)
// but with fetching left to the caller of Put — this type only caches.
type memoryOCSPCache struct {
	mu    sync.RWMutex
	byKey map[string]staple
}

// NewMemoryOCSPCache returns an OCSPSource backed by an in-process map.
func NewMemoryOCSPCache() OCSPSource {
	return &memoryOCSPCache{byKey: make(map[string]staple)}
}

// Put records a freshly obtained raw OCSP response for ck, parsing it to
// learn the response's NextUpdate so CachedStaple can expire it.
func (c *memoryOCSPCache) Put(ck *CertifiedKey, der []byte) error {
	resp, err := ocsp.ParseResponse(der, nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.byKey[ck.Hash] = staple{der: der, nextUpdate: resp.NextUpdate}
	c.mu.Unlock()
	return nil
}

func (c *memoryOCSPCache) CachedStaple(ck *CertifiedKey) ([]byte, bool) {
	c.mu.RLock()
	s, ok := c.byKey[ck.Hash]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.nextUpdate.IsZero() && time.Now().After(s.nextUpdate) {
		return nil, false
	}
	return s.der, true
}
