// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"net/url"
	"os"

	"github.com/gogama/requests/adapter"
)

// CABundleEnv lists the environment variables naming a CA bundle, in
// the order they are consulted.
var CABundleEnv = []string{"REQUESTS_CA_BUNDLE", "CURL_CA_BUNDLE"}

// environmentVerify returns the verification policy named by the
// environment, or the system default.
func environmentVerify() adapter.Verify {
	for _, name := range CABundleEnv {
		if path := os.Getenv(name); path != "" {
			return adapter.VerifyCA(path)
		}
	}
	return adapter.Verify{}
}

// selectProxy returns the proxy for u from ps, falling back to the
// environment when the Session trusts it.
func (s *Session) selectProxy(u *url.URL, ps adapter.Proxies) (*url.URL, error) {
	p, err := ps.Select(u)
	if err != nil || p != nil || !s.TrustEnv {
		return p, err
	}
	return adapter.EnvironmentProxy(u)
}
