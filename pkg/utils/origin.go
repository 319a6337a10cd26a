package utils

import "net/url"

// IsLocalOrigin reports whether a browser Origin header points at a local
// development host. The HTTP CORS middleware and the WebSocket upgrader
// apply the same policy.
func IsLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
