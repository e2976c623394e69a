// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cookies

import (
	"encoding/json"
	"time"
)

type state struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Domain   string     `json:"domain,omitempty"`
	Path     string     `json:"path,omitempty"`
	Secure   bool       `json:"secure,omitempty"`
	HTTPOnly bool       `json:"httpOnly,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
}

// MarshalJSON encodes the unexpired cookies that are not marked
// Discard as a JSON array, in insertion order.
func (j *Jar) MarshalJSON() ([]byte, error) {
	all := j.All()
	out := make([]state, 0, len(all))
	for _, c := range all {
		if c.Discard {
			continue
		}
		s := state{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			exp := c.Expires.UTC()
			s.Expires = &exp
		}
		out = append(out, s)
	}
	return json.Marshal(out)
}

// UnmarshalJSON adds the cookies encoded by MarshalJSON to the jar.
// Cookies already in the jar are kept unless replaced.
func (j *Jar) UnmarshalJSON(b []byte) error {
	var in []state
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	for _, s := range in {
		c := &Cookie{
			Name:     s.Name,
			Value:    s.Value,
			Domain:   s.Domain,
			Path:     s.Path,
			Secure:   s.Secure,
			HTTPOnly: s.HTTPOnly,
		}
		if s.Expires != nil {
			c.Expires = *s.Expires
		}
		j.SetCookie(c)
	}
	return nil
}
