package transport

import (
	"net/http"
	"path"
	"strings"

	"github.com/goliatone/go-gateway/core"
)

const (
	HeaderHTTPMethod = "http_method"
	HeaderHTTPPath   = "http_path"
)

// HeaderMapper copies inbound HTTP headers onto the request message. Patterns
// are matched case-insensitively; "*" maps every header and a trailing "*"
// matches by prefix.
type HeaderMapper struct {
	patterns []string
}

func NewHeaderMapper(patterns []string) HeaderMapper {
	normalized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern = strings.ToLower(strings.TrimSpace(pattern)); pattern != "" {
			normalized = append(normalized, pattern)
		}
	}
	return HeaderMapper{patterns: normalized}
}

func (m HeaderMapper) Map(r *http.Request) core.Headers {
	out := core.Headers{
		HeaderHTTPMethod: r.Method,
		HeaderHTTPPath:   r.URL.Path,
	}
	for name, values := range r.Header {
		key := strings.ToLower(name)
		if len(values) == 0 || !m.matches(key) {
			continue
		}
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}

func (m HeaderMapper) matches(name string) bool {
	for _, pattern := range m.patterns {
		if pattern == "*" || pattern == name {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// matchPath reports whether requestPath falls under pattern. Segments are
// path.Match globs, "**" matches any number of segments and "/" matches only
// the root. An empty pattern matches everything.
func matchPath(pattern string, requestPath string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return true
	}
	return matchSegments(splitPath(pattern), splitPath(requestPath))
}

func matchSegments(pattern []string, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for skip := 0; skip <= len(parts); skip++ {
				if matchSegments(pattern[1:], parts[skip:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		matched, err := path.Match(pattern[0], parts[0])
		if err != nil || !matched {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}

func splitPath(raw string) []string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

type corsPolicy struct {
	origins     []string
	headers     []string
	credentials bool
}

func newCORSPolicy(cfg core.CORSConfig) corsPolicy {
	return corsPolicy{
		origins:     trimAll(cfg.AllowedOrigins),
		headers:     trimAll(cfg.AllowedHeaders),
		credentials: cfg.AllowCredentials,
	}
}

func (p corsPolicy) allowOrigin(origin string) (string, bool) {
	for _, allowed := range p.origins {
		if allowed == "*" {
			if p.credentials {
				return origin, true
			}
			return "*", true
		}
		if strings.EqualFold(allowed, origin) {
			return origin, true
		}
	}
	return "", false
}

// apply writes CORS response headers. It reports false when the origin is
// not allowed.
func (p corsPolicy) apply(w http.ResponseWriter, r *http.Request, preflight bool) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed, ok := p.allowOrigin(origin)
	if !ok {
		return false
	}
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", allowed)
	if allowed != "*" {
		header.Add("Vary", "Origin")
	}
	if p.credentials {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	if !preflight {
		return true
	}
	header.Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
	requested := r.Header.Get("Access-Control-Request-Headers")
	switch {
	case containsString(p.headers, "*") && requested != "":
		header.Set("Access-Control-Allow-Headers", requested)
	case len(p.headers) > 0 && !containsString(p.headers, "*"):
		header.Set("Access-Control-Allow-Headers", strings.Join(p.headers, ", "))
	}
	return true
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
