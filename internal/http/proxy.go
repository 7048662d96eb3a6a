package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// backendProxy forwards image and API paths to the recognition backend so
// the browser never talks to it directly.
type backendProxy struct {
	proxy *httputil.ReverseProxy
}

func newBackendProxy(backendURL string, log zerolog.Logger) (*backendProxy, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", backendURL)
	}

	proxyLog := log.With().Str("component", "backend_proxy").Logger()
	return &backendProxy{
		proxy: &httputil.ReverseProxy{
			Rewrite: func(r *httputil.ProxyRequest) {
				r.SetURL(target)
				r.SetXForwarded()
			},
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				proxyLog.Warn().Err(err).Str("path", r.URL.Path).Msg("backend proxy failed")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"backend unavailable"}`))
			},
		},
	}, nil
}

// passthrough keeps the request path as is.
func (p *backendProxy) passthrough(c *gin.Context) {
	p.proxy.ServeHTTP(c.Writer, c.Request)
}

// stripped serves /backend/<path> as /<path>.
func (p *backendProxy) stripped(c *gin.Context) {
	req := c.Request.Clone(c.Request.Context())
	req.URL.Path = "/" + strings.TrimLeft(c.Param("path"), "/")
	req.URL.RawPath = ""
	p.proxy.ServeHTTP(c.Writer, req)
}

func (p *backendProxy) register(r *gin.Engine) {
	r.Any("/api/v1/*path", p.passthrough)
	r.Any("/backend/*path", p.stripped)
}
