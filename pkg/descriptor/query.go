package descriptor

import (
	"net/url"
	"strings"
)

type queryField struct {
	name  string
	value string
}

// parseQuery form-decodes q. Blank values are kept, the last duplicate wins and
// keeps the position of the first occurrence.
func parseQuery(q string) []queryField {
	var fields []queryField
	index := map[string]int{}
	for _, part := range strings.Split(q, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = formUnescape(name)
		value = formUnescape(value)
		if i, ok := index[name]; ok {
			fields[i].value = value
			continue
		}
		index[name] = len(fields)
		fields = append(fields, queryField{name: name, value: value})
	}
	return fields
}

func formUnescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return strings.ReplaceAll(s, "+", " ")
}

func encodeQuery(fields []queryField) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.value))
	}
	return b.String()
}

type queryOptions struct {
	upgrade bool
	inPlace bool
}

// QueryOption customises SetQueryValue.
type QueryOption func(*queryOptions)

// UpgradeHTTPS rewrites the scheme of the produced URL to https.
func UpgradeHTTPS() QueryOption {
	return func(o *queryOptions) { o.upgrade = true }
}

// InPlace stores the produced URL back into the descriptor's Normalized and Query fields.
func InPlace() QueryOption {
	return func(o *queryOptions) { o.inPlace = true }
}

// QueryValue returns the decoded value of the named query parameter.
func (u *URL) QueryValue(name string) (string, bool) {
	for _, f := range parseQuery(u.Query) {
		if f.name == name {
			return f.value, true
		}
	}
	return "", false
}

// SetQueryValue returns the URL with the named parameter set to value. Other
// parameters keep their order, a new parameter is appended. The fragment is dropped.
func (u *URL) SetQueryValue(name, value string, opts ...QueryOption) string {
	var cfg queryOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	fields := parseQuery(u.Query)
	found := false
	for i := range fields {
		if fields[i].name == name {
			fields[i].value = value
			found = true
			break
		}
	}
	if !found {
		fields = append(fields, queryField{name: name, value: value})
	}

	scheme := u.Scheme
	if cfg.upgrade {
		scheme = "https"
	}
	query := encodeQuery(fields)
	result := u.join(scheme) + "?" + query

	if cfg.inPlace {
		u.Scheme = scheme
		u.Query = query
		u.Normalized = result
	}
	return result
}

// StripQuery returns scheme://netloc/path and makes it the descriptor's normalised form.
func (u *URL) StripQuery() string {
	u.Normalized = u.join(u.Scheme)
	return u.Normalized
}

// RootAddress returns scheme://netloc.
func (u *URL) RootAddress() string {
	return u.Scheme + "://" + u.Netloc
}

func (u *URL) join(scheme string) string {
	s := scheme + "://" + u.Netloc + u.Path
	if u.Params != "" {
		s += ";" + u.Params
	}
	return s
}

// QueryValue parses raw without quoting and returns the named query parameter.
func QueryValue(raw, name string) (string, bool) {
	return ParseURL(raw, WithoutQuote()).QueryValue(name)
}

// SetQueryValue parses raw without quoting and returns it with the parameter set.
func SetQueryValue(raw, name, value string, opts ...QueryOption) string {
	return ParseURL(raw, WithoutQuote()).SetQueryValue(name, value, opts...)
}

// StripQuery parses raw without quoting and returns scheme://netloc/path.
func StripQuery(raw string) string {
	return ParseURL(raw, WithoutQuote()).StripQuery()
}

// RootAddress parses raw without quoting and returns scheme://netloc.
func RootAddress(raw string) string {
	return ParseURL(raw, WithoutQuote()).RootAddress()
}
