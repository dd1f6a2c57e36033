// Package callback validates outbound resume URLs against a precomputed
// host allow-list. This is the SSRF defense for the review resume path.
package callback

import (
	"fmt"
	"net/url"
	"strings"
)

// loopbackHostnames resolve to the local machine. When the engine base
// host is one of them, all of them are allowed with the same port.
var loopbackHostnames = []string{"localhost", "127.0.0.1", "::1"}

// AllowList is the set of host:port values a resume callback may target.
// It is derived once from the configured engine base URL at construction
// time and never changes afterwards; construct it at startup and pass it
// to whatever needs it.
type AllowList struct {
	hosts map[string]struct{}
}

// NewAllowList builds the allow-list from the engine base URL. The base
// URL must parse and use http or https.
func NewAllowList(engineBaseURL string) (*AllowList, error) {
	parsed, err := url.Parse(engineBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine base URL %q: %w", engineBaseURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("engine base URL %q: scheme must be http or https", engineBaseURL)
	}

	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("engine base URL %q has no host", engineBaseURL)
	}

	hosts := map[string]struct{}{
		hostPort(parsed): {},
	}

	if isLoopback(parsed.Hostname()) {
		port := effectivePort(parsed)
		for _, alias := range loopbackHostnames {
			hosts[bracketed(alias)+":"+port] = struct{}{}
		}
	}

	return &AllowList{hosts: hosts}, nil
}

// IsAllowed reports whether a callback URL may be called. Malformed URLs
// and non-http(s) schemes are rejected unconditionally; otherwise the
// URL's host:port must be a member of the allow-list.
func (a *AllowList) IsAllowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if parsed.Hostname() == "" {
		return false
	}

	_, ok := a.hosts[hostPort(parsed)]

	return ok
}

// Hosts returns the allowed host:port members, for logging at startup.
func (a *AllowList) Hosts() []string {
	hosts := make([]string, 0, len(a.hosts))
	for host := range a.hosts {
		hosts = append(hosts, host)
	}

	return hosts
}

// hostPort normalizes a URL to host:port, filling in the scheme default
// when the port is omitted so "http://h" and "http://h:80" compare equal.
func hostPort(u *url.URL) string {
	return bracketed(u.Hostname()) + ":" + effectivePort(u)
}

func effectivePort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}

	if u.Scheme == "https" {
		return "443"
	}

	return "80"
}

// bracketed re-wraps IPv6 literals, which url.Hostname strips.
func bracketed(hostname string) string {
	if strings.Contains(hostname, ":") {
		return "[" + hostname + "]"
	}

	return hostname
}

func isLoopback(hostname string) bool {
	for _, alias := range loopbackHostnames {
		if hostname == alias {
			return true
		}
	}

	return false
}
