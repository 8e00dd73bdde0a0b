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

// Package tlscore is the TLS termination core for a host web server: it
// registers and loads certified keys, assembles per-vhost TLS
// configurations, resolves the right vhost and certificate from a client
// hello, negotiates ALPN with the host's protocol switch, and gates
// requests against the negotiated connection parameters.
//
// The package does not speak TLS itself or parse configuration directives;
// both are supplied by the host. It glues crypto/tls to a multi-vhost,
// multi-process host server the way the host's connection and protocol
// registries glue bytes to requests.
package tlscore
