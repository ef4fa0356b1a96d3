// Package proxy is a reference implementation of the load-balancing reverse
// proxy that sits in front of the replica cluster: the collaborator whose
// behavior this module does not own, but whose wire contract it must honor
// (consistent-hash routing by document ID, an injected client-IP header,
// and a 429 when the rate limiter denies a request).
//
// A production deployment of this system replaces the in-process rate
// limiter here with an RPC call to a standalone limiter service; the
// interface boundary (Allow/Stats) is identical either way.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hayley-d/collaborative-coding-backend/internal/cluster"
	"github.com/hayley-d/collaborative-coding-backend/internal/ratelimiter"
)

// Proxy routes inbound document requests to the replica the consistent hash
// ring assigns to that document, after checking the requesting client
// against the rate limiter.
type Proxy struct {
	membership *cluster.Membership
	limiter    *ratelimiter.AdaptiveRateLimiter
	logger     zerolog.Logger
}

// New builds a Proxy over the given cluster membership and rate limiter.
func New(membership *cluster.Membership, limiter *ratelimiter.AdaptiveRateLimiter, logger zerolog.Logger) *Proxy {
	return &Proxy{membership: membership, limiter: limiter, logger: logger}
}

// ServeHTTP implements http.Handler: it rate-limits by client IP, resolves
// the target replica for the document named in the path, and reverse
// proxies the request there with the originating client IP attached.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := clientIPFrom(r)

	if !p.limiter.Allow(clientIP, false) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintf(w, `{"error":"rate limit exceeded"}`)
		return
	}

	docID := documentIDFromPath(r.URL.Path)
	if docID == "" {
		http.Error(w, "cannot route request: no document id in path", http.StatusBadRequest)
		return
	}

	target, ok := p.membership.Owner(docID)
	if !ok {
		http.Error(w, "no replica available", http.StatusServiceUnavailable)
		return
	}

	backend, err := url.Parse("http://" + target.Address)
	if err != nil {
		http.Error(w, "invalid replica address", http.StatusInternalServerError)
		return
	}

	r.Header.Set("X-Client-IP", clientIP)
	r.Header.Set("X-Request-ID", requestIDFrom(r))

	rp := httputil.NewSingleHostReverseProxy(backend)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Error().Err(err).Str("replica", target.ID).Msg("proxy error")
		http.Error(w, "upstream replica error", http.StatusBadGateway)
	}
	rp.ServeHTTP(w, r)
}

func clientIPFrom(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.Split(ip, ",")[0]
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}

func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return fmt.Sprintf("%p", r)
}

// documentIDFromPath extracts the document ID from a /documents/<id>... path.
func documentIDFromPath(path string) string {
	const prefix = "/documents/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(rest, "/"); idx != -1 {
		return rest[:idx]
	}
	return rest
}
