// Package useragent keeps a sampled set of browser user-agent strings and
// hands them out in rotation or at random.
package useragent

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/scrapinghelper/scrapinghelper/pkg/utils"
)

// EnvPath names the environment variable that points at a replacement data file.
const EnvPath = "SCRAPINGHELPER_USERAGENT_PATH"

// DefaultKeep is the sample size used when Load is given a negative keep.
const DefaultKeep = 50

//go:embed data/user_agents.txt
var embeddedAgents string

var knownBadAgents = map[string]bool{
	"Hello, world": true,
}

// Pool is a sampled user-agent list. It is safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	agents []string
	count  int
	cursor int
	rnd    *rand.Rand
}

// Option configures Load.
type Option func(*Pool)

// WithRand sets the random source used for sampling and Random.
func WithRand(r *rand.Rand) Option {
	return func(p *Pool) { p.rnd = r }
}

// Load reads one user agent per line from path, from $SCRAPINGHELPER_USERAGENT_PATH when
// path is empty, or from the built-in list. Known bad entries are dropped, then keep
// agents are sampled at random; keep 0 keeps all of them, a negative keep means DefaultKeep.
func Load(path string, keep int, opts ...Option) (*Pool, error) {
	p := &Pool{}
	for _, opt := range opts {
		opt(p)
	}
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if keep < 0 {
		keep = DefaultKeep
	}

	if path == "" {
		path = os.Getenv(EnvPath)
	}
	data := embeddedAgents
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: user agents %s: %w", utils.ErrSourceLoad, path, err)
		}
		data = string(b)
	}

	var agents []string
	for _, line := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p.count++
		if knownBadAgents[line] {
			continue
		}
		agents = append(agents, line)
	}
	if len(agents) == 0 {
		return nil, utils.WrapErrorf(utils.ErrSourceLoad, "no user agents in %q", path)
	}

	if keep > 0 && keep < len(agents) {
		sample := make([]string, keep)
		for i, idx := range p.rnd.Perm(len(agents))[:keep] {
			sample[i] = agents[idx]
		}
		agents = sample
	}
	p.agents = agents
	return p, nil
}

// Next returns the agent at the cursor and advances it cyclically.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.agents[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.agents)
	return a
}

// Random returns a uniformly chosen agent.
func (p *Pool) Random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rnd.Intn(len(p.agents))]
}

// First returns the first agent of the rotation.
func (p *Pool) First() string { return p.agents[0] }

// Count returns the number of non-blank lines read, bad entries included.
func (p *Pool) Count() int { return p.count }

// Kept returns the size of the sample.
func (p *Pool) Kept() int { return len(p.agents) }

// Agents returns a copy of the sample in rotation order.
func (p *Pool) Agents() []string {
	return append([]string(nil), p.agents...)
}

func (p *Pool) String() string { return p.First() }
