package preview

import (
	"net"
	"net/url"
	"strings"
)

var localSuffixes = []string{
	".local",
	".localhost",
	".test",
	".docksal",
	".docksal.site",
	".dev.cc",
	".lndo.site",
}

// IsLocalSite reports whether siteURL looks like a development install the
// render service cannot reach: a dotless or loopback host, or a domain used
// by common local tooling.
func IsLocalSite(siteURL string) bool {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return false
	}
	host := siteURL
	if parsed, err := url.Parse(siteURL); err == nil && parsed.Host != "" {
		host = parsed.Hostname()
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	if !strings.Contains(host, ".") {
		return true
	}
	for _, suffix := range localSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
