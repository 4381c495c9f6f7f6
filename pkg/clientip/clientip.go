package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP used for rate limiting and logging.
// X-Forwarded-For is trusted only when the direct peer is a loopback or
// private address, i.e. a reverse proxy in front of the app. The rightmost
// entry is taken since that is the one the proxy appended.
func RealClientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	ip := net.ParseIP(peer)
	if ip == nil || !(ip.IsLoopback() || ip.IsPrivate()) {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer
	}
	hops := strings.Split(xff, ",")
	last := strings.TrimSpace(hops[len(hops)-1])
	if net.ParseIP(last) == nil {
		return peer
	}
	return last
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return strings.TrimSpace(host)
}
