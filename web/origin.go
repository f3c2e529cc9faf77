package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aperoland/aperoland-chat/globals"
)

// originPolicy decides which browser origins may open a websocket. An empty allow-list accepts every request.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{})}
	configured := 0
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		configured++
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			globals.AppLogger.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		p.allowed[normalized] = struct{}{}
	}
	if configured == 0 {
		p.allowAll = true
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (p *originPolicy) checkOrigin(r *http.Request) bool {
	if p.allowAll {
		return true
	}
	origin := r.Header.Get("Origin")
	if normalized, ok := normalizeOrigin(origin); ok {
		if _, exists := p.allowed[normalized]; exists {
			return true
		}
	}
	globals.AppLogger.Info("blocked websocket connection from disallowed origin", "origin", origin)
	return false
}
