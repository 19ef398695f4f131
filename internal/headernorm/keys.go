// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package headernorm

import "strings"

// canonicalExceptions lists header names whose registered spelling does not
// follow the dash-separated title case rule.
var canonicalExceptions = []string{
	"ALPN",
	"C-PEP",
	"C-PEP-Info",
	"CalDAV-Timezones",
	"Content-ID",
	"Content-MD5",
	"DASL",
	"DAV",
	"DNT",
	"ETag",
	"GetProfile",
	"HTTP2-Settings",
	"Last-Event-ID",
	"MIME-Version",
	"Optional-WWW-Authenticate",
	"Sec-WebSocket-Accept",
	"Sec-WebSocket-Extensions",
	"Sec-WebSocket-Key",
	"Sec-WebSocket-Protocol",
	"Sec-WebSocket-Version",
	"SLUG",
	"TCN",
	"TE",
	"TTL",
	"WWW-Authenticate",
	"X-ATT-DeviceId",
	"X-DNSPrefetch-Control",
	"X-UIDH",
}

// exceptionsByLower maps the lowercase form of every exception to its spelling.
var exceptionsByLower = func() map[string]string {
	m := make(map[string]string, len(canonicalExceptions))
	for _, name := range canonicalExceptions {
		m[strings.ToLower(name)] = name
	}
	return m
}()

// LowerKey is the default key rule: the ASCII lowercase form of key.
func LowerKey(key string) string {
	return strings.ToLower(key)
}

// CanonicalKey rewrites key to canonical casing, e.g. "content-type" becomes
// "Content-Type" and "etag" becomes "ETag".
func CanonicalKey(key string) string {
	lower := strings.ToLower(key)
	if name, ok := exceptionsByLower[lower]; ok {
		return name
	}

	parts := strings.Split(lower, "-")
	for i, p := range parts {
		if p == "" || p[0] < 'a' || p[0] > 'z' {
			continue
		}
		parts[i] = string(p[0]-('a'-'A')) + p[1:]
	}
	return strings.Join(parts, "-")
}

// keyRule resolves which key rule opts selects.
func keyRule(opts Options) func(string) string {
	switch {
	case opts.NormalizeHeaderKey != nil:
		return opts.NormalizeHeaderKey
	case opts.Canonical:
		return CanonicalKey
	default:
		return LowerKey
	}
}
