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
	"net"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ListenAddr is one TLSListen-configured address; host and port are kept
// split out so ListenMatches can compare them independently (an empty
// host means "any address").
type ListenAddr struct {
	Host string
	Port string
}

// ListenMatches reports whether the configured listen address la applies
// to the server actually bound at sa. An empty la.Host deliberately
// matches any bound address.
func ListenMatches(la ListenAddr, sa net.Addr) bool {
	host, port, err := net.SplitHostPort(sa.String())
	if err != nil {
		return false
	}
	if la.Port != "" && la.Port != port {
		return false
	}
	if la.Host == "" {
		return true
	}
	return sameHost(la.Host, host)
}

func sameHost(a, b string) bool {
	ia, ierrA := net.LookupIP(a)
	ib, ierrB := net.LookupIP(b)
	if ierrA != nil || ierrB != nil || len(ia) == 0 || len(ib) == 0 {
		return a == b
	}
	return ia[0].Equal(ib[0])
}

// GlobalConfig is the process-wide, post-config, read-only-thereafter
// state: the base server, the set of TLS-enabled listen addresses, the
// Protocol Profile and Certificate Registry, and a logger every component
// is named off of. There is no separate "hello config" field: crypto/tls
// hands GetConfigForClient the client hello directly, so there is no
// throwaway probe session to configure ahead of time (see handshake.go's
// doc comment).
type GlobalConfig struct {
	BaseServer *VhostConfig
	Listens    []ListenAddr
	Profile    *Profile
	Registry   *Registry
	Log        *zap.Logger
}

// Bootstrap performs one-shot global initialization, wiring up the
// Registry, Profile and Assembler at startup.
type Bootstrap struct {
	Global    *GlobalConfig
	Assembler *Assembler
}

// NewBootstrap constructs the process-wide state and the Assembler that
// will build every vhost's config against it.
func NewBootstrap(baseServer *VhostConfig, listens []ListenAddr, log *zap.Logger) *Bootstrap {
	if log == nil {
		log = zap.NewNop()
	}
	profile := NewProfile()
	registry := NewRegistry(log)
	globalProfile = profile // see directive.go: cipher-name lookups need it

	return &Bootstrap{
		Global: &GlobalConfig{
			BaseServer: baseServer,
			Listens:    listens,
			Profile:    profile,
			Registry:   registry,
			Log:        log.Named("tlscore.bootstrap"),
		},
		Assembler: NewAssembler(profile, registry, log),
	}
}

// PostConfig runs the Assembler over every enabled vhost bound to one of
// the Bootstrap's listen addresses. Per-vhost errors are aggregated with
// go.uber.org/multierr so an operator sees every broken vhost in one pass;
// PostConfig still returns a non-nil error, and the server still must not
// start, if any vhost failed.
func (b *Bootstrap) PostConfig(vhosts []*VhostConfig, boundAddrs []net.Addr) error {
	var errs error

	for _, v := range vhosts {
		if !v.Enabled {
			continue
		}
		if !b.anyListenMatches(boundAddrs) && !v.BaseServer {
			continue
		}
		v.ApplyDefaults()
		if err := b.Assembler.Build(v); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		b.Global.Log.Info("vhost configured",
			zap.String("vhost", v.Name),
			zap.Bool("service_unavailable", v.ServiceUnavailable))
	}

	if errs != nil {
		b.Global.Log.Error("post-config failed", zap.Error(errs))
	}
	return errs
}

// anyListenMatches reports whether any of this Bootstrap's configured
// listen addresses applies to any of the server's actually bound
// addresses. A server with no TLSListen entries at all is never
// TLS-enabled except as a base server.
func (b *Bootstrap) anyListenMatches(boundAddrs []net.Addr) bool {
	if len(b.Global.Listens) == 0 {
		return false
	}
	for _, la := range b.Global.Listens {
		for _, sa := range boundAddrs {
			if ListenMatches(la, sa) {
				return true
			}
		}
	}
	return false
}

// Shutdown releases every Certified Key the registry owns.
func (b *Bootstrap) Shutdown() {
	b.Global.Registry.ClearOnShutdown()
}
