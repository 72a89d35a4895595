// Package grammar holds the URL and proxy-endpoint patterns and the host
// classification derived from their named captures.
package grammar

import (
	"regexp"
	"strings"
)

// --- Pattern building blocks ---
const (
	ipMiddleOctet = `(?:\.(?:1?\d{1,2}|2[0-4]\d|25[0-5]))`
	ipLastOctet   = `(?:\.(?:0|[1-9]\d?|1\d\d|2[0-4]\d|25[0-5]))`

	// Letters, the BMP and astral ranges above Latin-1, digits.
	hostChars = `a-z\x{00a1}-\x{ffff}\x{10000}-\x{10ffff}0-9`
	tldChars  = `a-z\x{00a1}-\x{ffff}\x{10000}-\x{10ffff}`

	userInfo = `(?:[-a-z\x{00a1}-\x{ffff}0-9._~%!$&'()*+,;=:]+(?::[-a-z0-9._~%!$&'()*+,;=:]*)?@)?`

	privateIP = `(?P<private_ip>` +
		`(?:(?:10|127)` + ipMiddleOctet + `{2}` + ipLastOctet + `)|` +
		`(?:(?:169\.254|192\.168)` + ipMiddleOctet + ipLastOctet + `)|` +
		`(?:172\.(?:1[6-9]|2\d|3[0-1])` + ipMiddleOctet + ipLastOctet + `))`

	privateHost = `(?P<private_host>localhost)`

	publicIP = `(?P<public_ip>(?:[1-9]\d?|1\d\d|2[01]\d|22[0-3])` + ipMiddleOctet + `{2}` + ipLastOctet + `)`

	ipv4Tail = `(?:(?:25[0-5]|(?:2[0-4]|1?[0-9])?[0-9])\.){3}(?:25[0-5]|(?:2[0-4]|1?[0-9])?[0-9])`
	h16      = `[0-9a-f]{1,4}`

	ipv6Body = `(?:` +
		`(?:` + h16 + `:){7}` + h16 + `|` +
		`(?:` + h16 + `:){1,7}:|` +
		`(?:` + h16 + `:){1,6}:` + h16 + `|` +
		`(?:` + h16 + `:){1,5}(?::` + h16 + `){1,2}|` +
		`(?:` + h16 + `:){1,4}(?::` + h16 + `){1,3}|` +
		`(?:` + h16 + `:){1,3}(?::` + h16 + `){1,4}|` +
		`(?:` + h16 + `:){1,2}(?::` + h16 + `){1,5}|` +
		h16 + `:(?::` + h16 + `){1,6}|` +
		`:(?:(?::` + h16 + `){1,7}|:)|` +
		`fe80:(?::[0-9a-f]{0,4}){0,4}%[0-9a-z]+|` +
		`::(?:ffff(?::0{1,4})?:)?` + ipv4Tail + `|` +
		`(?:` + h16 + `:){1,4}:` + ipv4Tail +
		`)`

	hostLabel  = `(?:(?:xn--[-]{0,2})|[` + hostChars + `]-?)*[` + hostChars + `]+`
	hostName   = `(?:` + hostLabel + `)(?:\.` + hostLabel + `)*`
	topLevel   = `(?:\.(?:(?:xn--[-]{0,2}[` + hostChars + `]{2,})|[` + tldChars + `]{2,}))`
	domainName = hostName + topLevel

	// 2 to 5 digits, at most 65535
	port = `(?::(?:6553[0-5]|655[0-2]\d|65[0-4]\d{2}|6[0-4]\d{3}|[0-5]\d{4}|\d{2,4}))?`

	urlPath     = `(?:/[-a-z\x{00a1}-\x{ffff}\x{10000}-\x{10ffff}0-9._~%!$&'()*+,;=:@/]*)?`
	urlQuery    = `(?:\?\S*)?`
	urlFragment = `(?:#\S*)?`

	urlScheme   = `(?P<scheme>https?|ftp)://`
	proxyScheme = `(?:(?P<scheme>https?|socks[45]|direct|quic)://)?`
)

// ProxySchemes lists the proxy scheme tokens the proxy grammar accepts.
var ProxySchemes = []string{"http", "https", "socks4", "socks5", "direct", "quic"}

func hostAlternatives(bracketedIPv6 bool) string {
	ipv6 := `(?P<ipv6>` + ipv6Body + `)`
	if bracketedIPv6 {
		ipv6 = `\[` + ipv6 + `\]`
	}
	return `(?:` + privateIP + `|` + privateHost + `|` + publicIP + `|` + ipv6 + `|` + domainName + `)`
}

var (
	urlBody   = urlScheme + userInfo + hostAlternatives(true) + port + urlPath + urlQuery + urlFragment
	proxyBody = proxyScheme + userInfo + hostAlternatives(true) + port

	urlPattern   = regexp.MustCompile(`(?i)^` + urlBody + `$`)
	proxyPattern = regexp.MustCompile(`(?i)^` + proxyBody + `$`)
	hostPattern  = regexp.MustCompile(`(?i)^` + hostAlternatives(false) + `$`)
	textPattern  = regexp.MustCompile(`(?i)` + urlBody)
)

// HostClass is the kind of host an authority names.
type HostClass int

const (
	HostUnknown HostClass = iota
	HostPrivateIP
	HostPrivateName
	HostPublicIP
	HostIPv6
	HostName
)

func (c HostClass) String() string {
	switch c {
	case HostPrivateIP:
		return "private_ip"
	case HostPrivateName:
		return "private_host"
	case HostPublicIP:
		return "public_ip"
	case HostIPv6:
		return "ipv6"
	case HostName:
		return "hostname"
	default:
		return "unknown"
	}
}

// IsPrivate reports whether the class is a private address or a loopback name.
func (c HostClass) IsPrivate() bool {
	return c == HostPrivateIP || c == HostPrivateName
}

// Match holds the named captures of a successful full-string match.
type Match struct {
	Scheme      string
	PrivateIP   string
	PrivateHost string
	PublicIP    string
	IPv6        string
}

// Class derives the host class from which capture participated.
func (m *Match) Class() HostClass {
	switch {
	case m == nil:
		return HostUnknown
	case m.PrivateIP != "":
		return HostPrivateIP
	case m.PrivateHost != "":
		return HostPrivateName
	case m.PublicIP != "":
		return HostPublicIP
	case m.IPv6 != "":
		return HostIPv6
	default:
		return HostName
	}
}

// IsPrivate reports whether the private_ip or private_host capture participated.
func (m *Match) IsPrivate() bool {
	return m.Class().IsPrivate()
}

func capture(re *regexp.Regexp, s string) *Match {
	sub := re.FindStringSubmatch(s)
	if sub == nil {
		return nil
	}
	group := func(name string) string {
		if i := re.SubexpIndex(name); i >= 0 {
			return sub[i]
		}
		return ""
	}
	return &Match{
		Scheme:      strings.ToLower(group("scheme")),
		PrivateIP:   group("private_ip"),
		PrivateHost: group("private_host"),
		PublicIP:    group("public_ip"),
		IPv6:        group("ipv6"),
	}
}

// MatchURL matches s in full against the URL grammar. It returns nil when s is not a URL.
func MatchURL(s string) *Match {
	return capture(urlPattern, s)
}

// MatchProxy matches s in full against the proxy-endpoint grammar.
func MatchProxy(s string) *Match {
	return capture(proxyPattern, s)
}

// ClassifyHost classifies a bare host (no scheme, userinfo or port).
// IPv6 literals are accepted with or without brackets.
func ClassifyHost(host string) HostClass {
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	return capture(hostPattern, host).Class()
}

// IsSupportedProxyScheme reports whether scheme is one of ProxySchemes, ignoring case.
func IsSupportedProxyScheme(scheme string) bool {
	for _, s := range ProxySchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}
