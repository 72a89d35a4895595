package proxypool

import (
	"fmt"
	"strings"
)

// Rotation selects how the next proxy is picked from a pool.
type Rotation int

const (
	RotateNoProxy Rotation = iota // never use a proxy
	RotateKeep                    // reuse the current proxy
	RotateNext                    // advance the cursor
	RotateRandom                  // pick uniformly at random
)

func (r Rotation) String() string {
	switch r {
	case RotateNoProxy:
		return "no_proxy"
	case RotateKeep:
		return "keep"
	case RotateNext:
		return "next"
	case RotateRandom:
		return "random"
	default:
		return fmt.Sprintf("Rotation(%d)", int(r))
	}
}

// ParseRotation accepts the String form of a Rotation, plus "none" and "" for RotateNoProxy.
func ParseRotation(s string) (Rotation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "no_proxy", "noproxy":
		return RotateNoProxy, nil
	case "keep":
		return RotateKeep, nil
	case "next":
		return RotateNext, nil
	case "random":
		return RotateRandom, nil
	}
	return RotateNoProxy, fmt.Errorf("unknown proxy rotation %q (want no_proxy, keep, next or random)", s)
}
