// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package headernorm

import (
	"github.com/ManuGH/headernorm/internal/validate"
)

// Validate checks that every default header is a legal HTTP field. New does
// not call it; callers that load defaults from outside should.
func (o Options) Validate() error {
	v := validate.New()
	for _, name := range sortedKeys(o.DefaultHeaders) {
		v.HeaderName("defaultHeaders", name)
		v.HeaderValue("defaultHeaders."+name, o.DefaultHeaders[name])
	}
	if o.NormalizeHeaderKey != nil {
		for _, name := range sortedKeys(o.DefaultHeaders) {
			v.HeaderName("normalizeHeaderKey("+name+")", o.NormalizeHeaderKey(name))
		}
	}
	return v.Err()
}
