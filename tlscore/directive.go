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
	"fmt"
	"strings"
)

// ApplyDirective populates v from a single parsed directive, the way a
// host's directive parser (Caddyfile-style dispenser or otherwise) would
// feed in one directive at a time. Directive grammar and file I/O for the
// directive source remain the host's concern; this is the one place that
// directive vocabulary crosses into the core.
func (v *VhostConfig) ApplyDirective(name string, args []string) error {
	switch name {
	case "TLSListen":
		// recorded at the Global/Bootstrap level, not per-vhost; see
		// bootstrap.go's ListenMatches. Accepted here as a no-op so a
		// single directive-dispatch loop can route all TLS* directives
		// through ApplyDirective uniformly.
		return nil

	case "TLSCertificate":
		if len(args) == 0 || len(args) > 2 {
			return fmt.Errorf("TLSCertificate takes a certificate path and an optional key path")
		}
		spec := CertSpec{Cert: CertSource{Path: args[0]}}
		if len(args) == 2 {
			spec.Key = CertSource{Path: args[1]}
		} else {
			spec.Key = CertSource{Path: args[0]}
		}
		v.CertSpecs = append(v.CertSpecs, spec)
		return nil

	case "TLSProtocol":
		if len(args) != 1 {
			return fmt.Errorf("TLSProtocol takes exactly one version, e.g. v1.2+")
		}
		id, err := parseProtocolVersion(args[0])
		if err != nil {
			return err
		}
		v.ProtocolMin = id
		return nil

	case "TLSCiphersPrefer":
		ids, err := parseCipherList(args)
		if err != nil {
			return err
		}
		v.PreferredCiphers = ids
		return nil

	case "TLSCiphersSuppress":
		ids, err := parseCipherList(args)
		if err != nil {
			return err
		}
		v.SuppressedCiphers = ids
		return nil

	case "TLSHonorClientOrder":
		b, err := parseOnOff(args)
		if err != nil {
			return err
		}
		v.HonorClientOrder = b
		return nil

	case "TLSStrictSNI":
		b, err := parseOnOff(args)
		if err != nil {
			return err
		}
		v.StrictSNI = b
		return nil

	case "TLSClientAuthentication":
		if len(args) != 1 {
			return fmt.Errorf("TLSClientAuthentication takes exactly one of none|optional|required")
		}
		switch args[0] {
		case "none":
			v.ClientAuth = ClientAuthNone
		case "optional":
			v.ClientAuth = ClientAuthOptional
		case "required":
			v.ClientAuth = ClientAuthRequired
		default:
			return fmt.Errorf("TLSClientAuthentication: unknown mode %q", args[0])
		}
		return nil

	case "TLSClientCA":
		if len(args) != 1 {
			return fmt.Errorf("TLSClientCA takes exactly one path")
		}
		v.ClientCAFile = args[0]
		return nil

	case "TLSSessionCache":
		// the session cache itself is an external collaborator; its
		// configuration string is the host's to interpret.
		return nil

	case "TLSOptions":
		// e.g. +/-StdEnvVars, which governs the host's variable-lookup
		// exposition, not anything this core tracks.
		return nil

	default:
		return fmt.Errorf("unrecognised directive %q", name)
	}
}

func parseOnOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("expected exactly one of on|off")
	}
	switch args[0] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on|off, got %q", args[0])
	}
}

// parseProtocolVersion accepts "v1.0".."v1.3", each optionally suffixed
// with "+" (as in "TLSProtocol v1.2+"), and returns the corresponding tls
// package version ID.
func parseProtocolVersion(s string) (uint16, error) {
	s = strings.TrimSuffix(s, "+")
	switch s {
	case "v1.0":
		return 0x0301, nil
	case "v1.1":
		return 0x0302, nil
	case "v1.2":
		return 0x0303, nil
	case "v1.3":
		return 0x0304, nil
	default:
		return 0, fmt.Errorf("TLSProtocol: unrecognised version %q", s)
	}
}

func parseCipherList(args []string) ([]uint16, error) {
	var ids []uint16
	for _, a := range args {
		for _, name := range strings.Split(a, ":") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			id, ok := globalProfile.CipherIDByName(name)
			if !ok {
				return nil, fmt.Errorf("unrecognised cipher %q", name)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// globalProfile lets ApplyDirective translate OpenSSL-style cipher names
// without threading a Profile through every directive call; Bootstrap
// sets it once, before any directive is applied, and it is never mutated
// afterward.
var globalProfile *Profile
