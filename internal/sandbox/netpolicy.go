// File: internal/sandbox/netpolicy.go
package sandbox

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// PrivateTargetError reports a navigation target that resolves to private,
// loopback, or link-local address space while the policy forbids it.
type PrivateTargetError struct {
	Target string
	Reason string
}

func (e *PrivateTargetError) Error() string {
	return fmt.Sprintf("target %q blocked: %s", e.Target, e.Reason)
}

// blockedSchemes can smuggle local file access or script execution through a
// navigation command, so they are never allowed regardless of policy.
var blockedSchemes = map[string]bool{
	"file":       true,
	"javascript": true,
	"data":       true,
	"ftp":        true,
	"vbscript":   true,
}

// blockedHosts are cloud metadata endpoints that must stay unreachable even
// when the private-network policy is relaxed.
var blockedHosts = map[string]bool{
	"metadata.google.internal": true,
	"169.254.169.254":          true,
}

// privateNets covers RFC1918, loopback, link-local, CGNAT, and their IPv6
// counterparts.
var privateNets []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"127.0.0.0/8",
		"100.64.0.0/10",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid built-in CIDR %q: %v", cidr, err))
		}
		privateNets = append(privateNets, ipNet)
	}
}

// Validator screens navigation targets before the browser is allowed to
// touch them. The zero value blocks private targets; set AllowPrivate to
// permit RFC1918 and loopback destinations for local testing.
type Validator struct {
	AllowPrivate bool

	// lookupIP is swapped out in tests. Nil means net.LookupIP.
	lookupIP func(host string) ([]net.IP, error)
}

// NewValidator returns a Validator with the given private-network policy.
func NewValidator(allowPrivate bool) *Validator {
	return &Validator{AllowPrivate: allowPrivate}
}

// ValidateURL checks the scheme, host, and every resolved address of a
// navigation target. It returns a PrivateTargetError when the target is
// denied by policy, or a plain error for malformed input.
func (v *Validator) ValidateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("empty url")
	}
	if trimmed == "about:blank" {
		return nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}

	if u.User != nil {
		return &PrivateTargetError{Target: raw, Reason: "urls with embedded credentials are not allowed"}
	}

	scheme := strings.ToLower(u.Scheme)
	if blockedSchemes[scheme] {
		return &PrivateTargetError{Target: raw, Reason: fmt.Sprintf("scheme %q is not allowed", scheme)}
	}
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	if blockedHosts[host] {
		return &PrivateTargetError{Target: raw, Reason: fmt.Sprintf("host %q is a blocked metadata endpoint", host)}
	}
	if v.AllowPrivate {
		return nil
	}

	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return &PrivateTargetError{Target: raw, Reason: fmt.Sprintf("host %q uses a private name suffix", host)}
	}

	// A literal IP is checked directly; a hostname is resolved so DNS cannot
	// be used to pivot into private address space.
	if ip := net.ParseIP(host); ip != nil {
		if reason := classifyIP(ip); reason != "" {
			return &PrivateTargetError{Target: raw, Reason: reason}
		}
		return nil
	}

	if host == "localhost" {
		return &PrivateTargetError{Target: raw, Reason: "localhost is blocked by the private-network policy"}
	}

	lookup := v.lookupIP
	if lookup == nil {
		lookup = net.LookupIP
	}
	ips, err := lookup(host)
	if err != nil {
		return fmt.Errorf("resolving host %q: %w", host, err)
	}
	for _, ip := range ips {
		if reason := classifyIP(ip); reason != "" {
			return &PrivateTargetError{
				Target: raw,
				Reason: fmt.Sprintf("host %q resolves to %s (%s)", host, ip, reason),
			}
		}
	}
	return nil
}

// classifyIP returns a non-empty reason when the address falls inside
// private, loopback, or link-local space.
func classifyIP(ip net.IP) string {
	for _, ipNet := range privateNets {
		if ipNet.Contains(ip) {
			return fmt.Sprintf("address %s is within private range %s", ip, ipNet)
		}
	}
	if ip.IsUnspecified() {
		return fmt.Sprintf("address %s is unspecified", ip)
	}
	return ""
}
