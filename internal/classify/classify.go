// Package classify decides which URLs are tracked and which host they are
// attributed to.
package classify

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Unknown is the legacy placeholder for a page with no usable host. It is
// never a valid attribution target.
const Unknown = "unknown"

// Classifier maps URLs to attributable hosts. The zero value tracks every
// parseable URL.
type Classifier struct {
	schemes  []string
	patterns []string
	domains  []string
	regexes  []*regexp.Regexp
}

// Rules are the exclusion rules a Classifier is built from.
type Rules struct {
	// Patterns ending in ":" or "://", such as "about:" or "chrome://",
	// match the start of the URL. Others, such as "/_/chrome/newtab",
	// match anywhere in it.
	Patterns []string
	// Domains are hosts excluded together with their subdomains.
	Domains []string
	// Regex are matched against the lowercase host.
	Regex []string
}

// New compiles rules into a Classifier.
func New(rules Rules) (*Classifier, error) {
	c := &Classifier{}
	for _, p := range rules.Patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.HasSuffix(p, ":"), strings.HasSuffix(p, "://"):
			c.schemes = append(c.schemes, p)
		default:
			c.patterns = append(c.patterns, p)
		}
	}
	for _, d := range rules.Domains {
		if d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), "."); d != "" {
			c.domains = append(c.domains, d)
		}
	}
	for _, expr := range rules.Regex {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile denylist regex %q: %w", expr, err)
		}
		c.regexes = append(c.regexes, re)
	}
	return c, nil
}

// Classify returns the host that time on rawURL is attributed to, or ""
// when the URL must not be tracked.
func (c *Classifier) Classify(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	switch rawURL {
	case "", "null", "undefined":
		return ""
	}

	lower := strings.ToLower(rawURL)
	for _, p := range c.schemes {
		if strings.HasPrefix(lower, p) {
			return ""
		}
	}
	for _, p := range c.patterns {
		if strings.Contains(lower, p) {
			return ""
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || host == Unknown {
		return ""
	}

	if c.isExcluded(host) {
		return ""
	}
	return host
}

// isExcluded checks if a host is blocked by the domain or regex rules.
func (c *Classifier) isExcluded(host string) bool {
	for _, d := range c.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	for _, re := range c.regexes {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// Attributable reports whether host may be stored as an aggregate key.
func Attributable(host string) bool {
	return host != "" && host != Unknown && host != "null" && host != "undefined"
}
