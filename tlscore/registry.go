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

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Registry is the process-wide, deduplicating store of CertifiedKeys:
// two specs with equal sources always resolve to the same handle, loaded
// at most once. It is filled during post-config; reads take only the read
// lock, and the singleflight group collapses the startup loading burst
// (and any later concurrent GetOrLoad from on-demand paths) into one load
// per spec.
type Registry struct {
	log *zap.Logger

	mu    sync.RWMutex
	byKey map[string]*CertifiedKey
	ids   map[*CertifiedKey]string

	group singleflight.Group
}

// NewRegistry creates an empty Certificate Registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:   log.Named("tlscore.registry"),
		byKey: make(map[string]*CertifiedKey),
		ids:   make(map[*CertifiedKey]string),
	}
}

// GetOrLoad resolves spec to a CertifiedKey, loading it on first use and
// returning the cached handle on every subsequent call for an equal spec.
// Concurrent first calls for the same spec block on one another and share
// a single load and a single error.
func (r *Registry) GetOrLoad(spec CertSpec) (*CertifiedKey, error) {
	key, err := spec.specKey()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	if ck, ok := r.byKey[key]; ok {
		r.mu.RUnlock()
		return ck, nil
	}
	r.mu.RUnlock()

	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		// A load for this spec may have finished between the read above
		// and this call; reuse its handle instead of loading again.
		r.mu.RLock()
		cached, ok := r.byKey[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		ck, err := loadCertifiedKey(spec)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.byKey[key] = ck
		r.ids[ck] = ck.Hash
		r.mu.Unlock()

		return ck, nil
	})
	if err != nil {
		r.log.Error("loading certificate", zap.String("cert", spec.Cert.String()), zap.Error(err))
		return nil, err
	}

	ck := v.(*CertifiedKey)
	if shared {
		r.log.Debug("joined in-flight certificate load", zap.String("hash", ck.Hash))
	}
	return ck, nil
}

// ID is the reverse lookup used for logging: the registry-assigned stable
// string for a key it owns, or false if key is not (or is no longer)
// registered.
func (r *Registry) ID(key *CertifiedKey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[key]
	return id, ok
}

// ClearOnShutdown releases every key the registry owns. Connection-owned
// clones are not tracked here and are freed by their owning connection's
// release hook instead.
func (r *Registry) ClearOnShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]*CertifiedKey)
	r.ids = make(map[*CertifiedKey]string)
}

// Len reports how many distinct certificates are currently loaded; mainly
// useful for tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
