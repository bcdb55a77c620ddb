package analytics

import (
	"net/url"
	"strings"
)

// NormalizePath strips query and fragment, collapses the trailing slash
// (except for the root) and caps the length.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if u, err := url.Parse(p); err == nil && u.Host != "" {
		p = u.Path
	}
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	if len(p) > maxPathLen {
		p = p[:maxPathLen]
	}
	return p
}

// IsAdminPath reports whether p belongs to the admin area.
func IsAdminPath(p string) bool {
	return p == "/admin" || strings.HasPrefix(p, "/admin/")
}

// IsBot reports whether a user agent looks automated. An empty user agent
// counts as a bot.
func IsBot(userAgent string) bool {
	return strings.TrimSpace(userAgent) == "" || botPattern.MatchString(userAgent)
}

// referrerHost reduces a referrer URL (or bare host) to its lowercase host
// without a www. prefix.
func referrerHost(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if !strings.Contains(ref, "://") {
		ref = "//" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
