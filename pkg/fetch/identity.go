package fetch

import (
	"math/rand"
	"net/http"
	"sort"
	"sync"

	"github.com/Sriram-PR/review-scraper/pkg/config"
)

// Identity is one client fingerprint: user agent plus header and cookie templates.
// Identities are immutable once built.
type Identity struct {
	UserAgent string
	Headers   map[string]string
	Cookies   map[string]string
}

// Apply sets the identity's headers and cookies on req.
// A non-empty referer overrides any Referer in the header template.
func (id Identity) Apply(req *http.Request, referer string) {
	for k, v := range id.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", id.UserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	// Sorted for stable request dumps in logs and tests
	names := make([]string, 0, len(id.Cookies))
	for name := range id.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req.AddCookie(&http.Cookie{Name: name, Value: id.Cookies[name]})
	}
}

// IdentityPool picks identities uniformly at random
type IdentityPool struct {
	identities []Identity
	mu         sync.Mutex
	rng        *rand.Rand
}

// NewIdentityPool builds one identity per configured user agent, all sharing
// the header and cookie templates. rng may be nil for a time-seeded source.
func NewIdentityPool(cfg config.IdentityConfig, rng *rand.Rand) *IdentityPool {
	if rng == nil {
		rng = newRand()
	}
	p := &IdentityPool{rng: rng}
	for _, ua := range cfg.UserAgents {
		p.identities = append(p.identities, Identity{
			UserAgent: ua,
			Headers:   copyMap(cfg.Headers),
			Cookies:   copyMap(cfg.Cookies),
		})
	}
	return p
}

// Pick returns a random identity. An empty pool yields the zero Identity,
// which sends Go's default user agent.
func (p *IdentityPool) Pick() Identity {
	if len(p.identities) == 0 {
		return Identity{}
	}
	p.mu.Lock()
	idx := p.rng.Intn(len(p.identities))
	p.mu.Unlock()
	return p.identities[idx]
}

// Size returns the number of identities in the pool
func (p *IdentityPool) Size() int {
	return len(p.identities)
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
