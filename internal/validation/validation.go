// Package validation checks URLs taken from configuration and feed data
// before they are fetched.
package validation

import (
	"net"
	"net/url"
	"strings"
)

// Reasons returned with a failed check.
const (
	MsgRequired  = "url is required"
	MsgScheme    = "url must use http:// or https:// scheme"
	MsgHost      = "url must have a valid host"
	MsgUnresolve = "cannot resolve hostname"
	MsgPrivate   = "url points to a private or reserved IP address"
)

// metadataIPs are cloud metadata endpoints outside the private ranges.
var metadataIPs = []net.IP{
	net.ParseIP("169.254.169.254"), // AWS, GCP
	net.ParseIP("168.63.129.16"),   // Azure
}

// ValidateURL checks that a URL is absolute and uses http or https.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, MsgRequired
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "invalid url format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, MsgScheme
	}
	if u.Host == "" {
		return false, MsgHost
	}

	return true, ""
}

// IsPrivateIP checks if an IP address is in a private or reserved range.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	for _, m := range metadataIPs {
		if ip.Equal(m) {
			return true
		}
	}
	return false
}

// IsPrivateHost checks if a hostname resolves to a private IP address.
// Returns true if the host is private or cannot be resolved.
func IsPrivateHost(host string) (bool, error) {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return IsPrivateIP(ip), nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return true, err
	}
	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return true, nil
		}
	}
	return false, nil
}

// ValidateRemoteURL checks that a URL taken from feed data is safe to
// download: http(s) only, and not resolving to a private, loopback or cloud
// metadata address.
func ValidateRemoteURL(urlStr string) (bool, string) {
	if valid, msg := ValidateURL(urlStr); !valid {
		return false, msg
	}

	u, _ := url.Parse(urlStr)
	private, err := IsPrivateHost(u.Host)
	if err != nil {
		return false, MsgUnresolve
	}
	if private {
		return false, MsgPrivate
	}
	return true, ""
}
