package goGate

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ProtectedPrefix binds a path prefix to the role required to reach it.
type ProtectedPrefix struct {
	Prefix string
	Role   Role
}

// RouteTable is the process-wide routing policy. It is the single source of
// truth for both in-process classification and the reverse-proxy rewrite
// rules generated by [RouteTable.RewriteRules].
//
// Public entries are evaluated first. Protected entries are evaluated in
// declaration order and the first match wins, so a path covered by two
// prefixes gets the role of the one declared earlier.
//
// RouteTable is read-only after startup.
type RouteTable struct {
	PublicExact    []string
	PublicPrefixes []string
	Protected      []ProtectedPrefix
}

// Classification is the result of classifying a request path.
type Classification struct {
	Public         bool
	HasRequirement bool
	Required       Role
}

// DefaultRouteTable returns the standard site policy: marketing and auth
// pages are public, /admin requires ADMIN and /franchise requires FRANCHISE.
// ADMIN is declared before FRANCHISE.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		PublicExact: []string{
			"/",
			"/login",
			"/signup",
			"/register",
			"/forgot-password",
			"/verify-email",
			"/onboarding",
			"/unauthorized",
		},
		PublicPrefixes: []string{
			"/_next",
			"/static",
			"/assets",
			"/favicon.ico",
			"/api/auth",
			"/auth/callback",
			"/healthz",
		},
		Protected: []ProtectedPrefix{
			{Prefix: "/admin", Role: RoleAdmin},
			{Prefix: "/franchise", Role: RoleFranchise},
		},
	}
}

// LegacyRouteTable returns the policy of the session-backed admin server:
// every page under /admin needs a logged-in user, and /admin/settings also
// needs ADMIN.
func LegacyRouteTable() RouteTable {
	return RouteTable{
		PublicExact: []string{
			"/",
			LegacyLoginPath,
			LegacyLogoutPath,
			LegacyForbiddenPath,
		},
		PublicPrefixes: []string{
			"/static",
			"/healthz",
		},
		Protected: []ProtectedPrefix{
			{Prefix: "/admin/settings", Role: RoleAdmin},
		},
	}
}

// Classify decides whether p needs authentication and, if so, which role.
//
// A path that is not in canonical form (dot segments, repeated slashes) is
// never public: it is classified by its cleaned form with Public forced to
// false.
func (t RouteTable) Classify(p string) Classification {
	if p == "" {
		p = "/"
	}
	if clean := CleanPath(p); clean != p {
		c := t.classify(clean)
		c.Public = false
		return c
	}
	return t.classify(p)
}

func (t RouteTable) classify(path string) Classification {
	for _, exact := range t.PublicExact {
		if path == exact {
			return Classification{Public: true}
		}
	}
	for _, prefix := range t.PublicPrefixes {
		if hasPathPrefix(path, prefix) {
			return Classification{Public: true}
		}
	}

	for _, rule := range t.Protected {
		if hasPathPrefix(path, rule.Prefix) {
			return Classification{HasRequirement: true, Required: rule.Role}
		}
	}

	return Classification{}
}

// CleanPath returns the canonical form of p: rooted, no dot segments, no
// repeated slashes. A trailing slash is kept.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	clean := path.Clean(p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return clean
}

// hasPathPrefix matches on segment boundaries: "/admin" matches "/admin" and
// "/admin/x" but not "/admin2".
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}

// Validate rejects tables that cannot be matched deterministically.
func (t RouteTable) Validate() error {
	for _, exact := range t.PublicExact {
		if !strings.HasPrefix(exact, "/") {
			return fmt.Errorf("public path %q must start with /", exact)
		}
	}
	for _, prefix := range t.PublicPrefixes {
		if err := validatePrefix(prefix); err != nil {
			return fmt.Errorf("public prefix: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(t.Protected))
	for _, rule := range t.Protected {
		if err := validatePrefix(rule.Prefix); err != nil {
			return fmt.Errorf("protected prefix: %w", err)
		}
		if _, dup := seen[rule.Prefix]; dup {
			return fmt.Errorf("protected prefix %q declared twice", rule.Prefix)
		}
		seen[rule.Prefix] = struct{}{}
	}

	return nil
}

func validatePrefix(prefix string) error {
	if prefix == "" || prefix == "/" {
		return errors.New("prefix must name a path below /")
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("prefix %q must start with /", prefix)
	}
	if strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("prefix %q must not end with /", prefix)
	}
	return nil
}

// RewriteRule maps a protected source pattern to the verify-redirect
// endpoint, in the `:path*` syntax used by reverse-proxy rewrite configs.
type RewriteRule struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Role        Role   `json:"-"`
	Prefix      string `json:"-"`
}

// RewriteRules derives the reverse-proxy rewrite table from the protected
// prefixes, in declaration order.
func (t RouteTable) RewriteRules(verifyPath string) []RewriteRule {
	rules := make([]RewriteRule, 0, len(t.Protected))
	for _, rule := range t.Protected {
		source := rule.Prefix + "/:path*"
		query := url.Values{}
		query.Set("role", rule.Role.String())
		// The :path* placeholder is left unescaped so the proxy can expand it.
		destination := verifyPath + "?" + query.Encode() + "&next=" + source
		rules = append(rules, RewriteRule{
			Source:      source,
			Destination: destination,
			Role:        rule.Role,
			Prefix:      rule.Prefix,
		})
	}
	return rules
}
