package descriptor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

var schemeSyntax = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

// Schemes whose last path segment may carry ";params".
var paramSchemes = map[string]bool{
	"": true, "ftp": true, "hdl": true, "prospero": true, "http": true, "imap": true,
	"https": true, "shttp": true, "rtsp": true, "rtspu": true, "sip": true, "sips": true,
	"mms": true, "sftp": true, "tel": true,
}

// components is the generic RFC 3986 decomposition of a URI reference.
type components struct {
	scheme   string
	netloc   string
	path     string
	params   string
	query    string
	fragment string

	username string
	password string
	hostname string
	port     int
	hasPort  bool
}

// decompose splits s into scheme, authority, path, query and fragment in the order of
// RFC 3986 Appendix B, then breaks the authority into userinfo, host and port.
func decompose(s string) (*components, error) {
	c := &components{}
	rest := s

	if i := strings.IndexByte(rest, ':'); i > 0 && schemeSyntax.MatchString(rest[:i]) {
		c.scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		c.netloc, rest = rest[:end], rest[end:]
		if strings.Contains(c.netloc, "[") != strings.Contains(c.netloc, "]") {
			return nil, utils.WrapErrorf(utils.ErrParse, "unbalanced IPv6 brackets in %q", c.netloc)
		}
	}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest, c.fragment = rest[:i], rest[i+1:]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest, c.query = rest[:i], rest[i+1:]
	}
	c.path = rest

	if paramSchemes[c.scheme] {
		c.path, c.params = splitParams(c.path)
	}

	if err := c.splitAuthority(); err != nil {
		return nil, err
	}
	return c, nil
}

// splitParams cuts ";params" from the last path segment.
func splitParams(path string) (string, string) {
	from := 0
	if slash := strings.LastIndexByte(path, '/'); slash >= 0 {
		from = slash
	}
	i := strings.IndexByte(path[from:], ';')
	if i < 0 {
		return path, ""
	}
	i += from
	return path[:i], path[i+1:]
}

func (c *components) splitAuthority() error {
	hostinfo := c.netloc
	if at := strings.LastIndexByte(c.netloc, '@'); at >= 0 {
		userinfo := c.netloc[:at]
		hostinfo = c.netloc[at+1:]
		c.username, c.password, _ = strings.Cut(userinfo, ":")
	}

	var portText string
	if strings.HasPrefix(hostinfo, "[") {
		bracketed := hostinfo[1:]
		var after string
		c.hostname, after, _ = strings.Cut(bracketed, "]")
		_, portText, _ = strings.Cut(after, ":")
	} else {
		c.hostname, portText, _ = strings.Cut(hostinfo, ":")
	}
	c.hostname = strings.ToLower(c.hostname)

	if portText == "" {
		return nil
	}
	for i := 0; i < len(portText); i++ {
		if portText[i] < '0' || portText[i] > '9' {
			return utils.WrapErrorf(utils.ErrParse, "port %q is not numeric", portText)
		}
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port > 65535 {
		return utils.WrapErrorf(utils.ErrParse, "port %q out of range 0-65535", portText)
	}
	c.port = port
	c.hasPort = true
	return nil
}
