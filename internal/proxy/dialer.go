package proxy

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

// errNoRoute signals that a request's Director found no pool for its Host
// header. dialer.RoundTrip returns it directly (the outbound request's
// URL.Host is left empty by the Director in that case) so Hook's
// ErrorHandler can tell a missing route apart from a real dial failure.
var errNoRoute = errors.New("proxy: no route for host")

// sniKey is the context key the Director uses to pass the selected pool's
// SNI name down to the dialer.
type sniKey struct{}

// dialer is the custom http.RoundTripper httputil.ReverseProxy uses to
// reach the selected backend. It dials plainly — this core never
// terminates or re-originates TLS to the upstream (spec.md §6.3) — and
// forwards the cluster-DNS SNI name as a header hint, the net/http
// equivalent of the "peer descriptor (socket_addr, tls=false, sni)" the
// original routing model describes.
type dialer struct {
	transport *http.Transport
}

func newDialer() *dialer {
	return &dialer{
		transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:     &tls.Config{},
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (d *dialer) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == "" {
		return nil, errNoRoute
	}
	if sni, ok := req.Context().Value(sniKey{}).(string); ok && sni != "" {
		req.Header.Set("X-Forwarded-Sni", sni)
	}
	return d.transport.RoundTrip(req)
}
