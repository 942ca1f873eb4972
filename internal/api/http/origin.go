package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may call the API and open the
// relay socket. "*" allows every origin.
type OriginPolicy struct {
	allowed  map[string]struct{}
	allowAll bool
}

func NewOriginPolicy(origins []string, log *slog.Logger) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			if log != nil {
				log.Warn("ignoring invalid origin in configuration", slog.String("origin", origin))
			}
			continue
		}
		p.allowed[normalized] = struct{}{}
	}
	return p
}

func (p *OriginPolicy) Allowed(origin string) bool {
	if p.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, exists := p.allowed[normalized]
	return exists
}

// CheckRequest is a websocket.Upgrader CheckOrigin func. Requests without an
// Origin header come from non-browser clients and are let through.
func (p *OriginPolicy) CheckRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return p.Allowed(origin)
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
