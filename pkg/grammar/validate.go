package grammar

// IsValidURL reports whether s matches the URL grammar in full.
// With publicOnly, private addresses and localhost are rejected.
func IsValidURL(s string, publicOnly bool) bool {
	return accept(MatchURL(s), publicOnly)
}

// IsValidProxy reports whether s matches the proxy-endpoint grammar in full.
func IsValidProxy(s string, publicOnly bool) bool {
	return accept(MatchProxy(s), publicOnly)
}

func accept(m *Match, publicOnly bool) bool {
	if m == nil {
		return false
	}
	return !publicOnly || !m.IsPrivate()
}
