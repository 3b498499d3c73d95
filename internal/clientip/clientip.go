// Package clientip picks the originating client address for a request that may
// have passed through a CDN or reverse proxy.
package clientip

import "net/http"

// Headers are consulted in this order; the first non-empty value wins. The
// order encodes the deployment's proxy topology and must not be sorted.
var Headers = []string{
	"CF-Connecting-IP", // Cloudflare
	"X-Forwarded-For",  // other proxies
	"X-Real-IP",        // nginx
}

// Resolve returns the first non-empty candidate header value, falling back to
// the socket peer address. Values are returned raw, without IP validation.
func Resolve(r *http.Request) string {
	for _, h := range Headers {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return r.RemoteAddr
}
