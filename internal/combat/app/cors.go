package app

import (
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may reach the authority:
// the configured origins plus hyphenated subdomains of the production host
// (preview deployments).
type originPolicy struct {
	exact          map[string]bool
	productionHost string
}

func newOriginPolicy(origins []string) *originPolicy {
	policy := &originPolicy{exact: make(map[string]bool, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		policy.exact[origin] = true
		if policy.productionHost == "" {
			if u, err := url.Parse(origin); err == nil && u.Hostname() != "" {
				policy.productionHost = u.Hostname()
			}
		}
	}
	return policy
}

func (p *originPolicy) allowed(origin string) bool {
	if origin == "" {
		return false
	}
	origin = strings.TrimRight(origin, "/")
	if p.exact[origin] {
		return true
	}
	if p.productionHost == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), "-"+p.productionHost)
}

// cors applies the origin policy and answers preflight requests.
func (p *originPolicy) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if p.allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Upgrade, Connection")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
