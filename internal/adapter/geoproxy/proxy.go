// Package geoproxy forwards map-tile and WFS requests to the upstream
// GeoServer, working around its missing CORS headers. The survey data path
// does not go through here; only the map display layer uses it.
package geoproxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tlaxclima/acciones-service/internal/observability"
)

// allowedPrefixes restricts which upstream paths may be reached through
// the proxy.
var allowedPrefixes = []string{
	"/geoserver/",
	"/ows",
	"/wms",
	"/wfs",
}

// Proxy is an http.Handler forwarding requests identified by the "path"
// query parameter to the upstream GeoServer.
type Proxy struct {
	upstream *url.URL
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a proxy for the given upstream base URL.
func New(upstream string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) (*Proxy, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	return &Proxy{
		upstream: u,
		timeout:  timeout,
		client:   &http.Client{},
		logger:   logger,
		metrics:  metrics,
	}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodHead:
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing path parameter")
		return
	}
	if !pathAllowed(path) {
		writeError(w, http.StatusForbidden, "path not allowed")
		return
	}

	target := *p.upstream
	target.Path = strings.TrimSuffix(target.Path, "/") + path

	// Forward every query parameter except the proxy's own.
	query := r.URL.Query()
	query.Del("path")
	target.RawQuery = query.Encode()

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upstream request")
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.metrics.ProxyRequests.WithLabelValues("timeout").Inc()
			p.logger.Warn("geoserver upstream timeout", "path", path, "timeout", p.timeout)
			writeError(w, http.StatusGatewayTimeout, "upstream timeout")
			return
		}
		p.metrics.ProxyRequests.WithLabelValues("transport").Inc()
		p.logger.Warn("geoserver upstream unreachable", "path", path, "error", err)
		writeError(w, http.StatusBadGateway, "upstream unreachable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.metrics.ProxyRequests.WithLabelValues("upstream_error").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  "upstream error",
			"status": resp.StatusCode,
		})
		return
	}

	p.metrics.ProxyRequests.WithLabelValues("ok").Inc()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func pathAllowed(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return false
	}
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
