package apiclient

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultFailThreshold = 3
	defaultCooldown      = 10 * time.Second
)

// pool rotates requests across base URLs. An endpoint that fails
// failThreshold times in a row is skipped until its cooldown expires.
type pool struct {
	endpoints []string
	next      uint32

	failThreshold int
	cooldown      time.Duration

	mu         sync.Mutex
	failureCnt map[string]int
	cooldownTo map[string]time.Time
}

func newPool(endpoints []string, failThreshold int, cooldown time.Duration) *pool {
	normalized := normalizeEndpoints(endpoints)
	if failThreshold <= 0 {
		failThreshold = defaultFailThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &pool{
		endpoints:     normalized,
		failThreshold: failThreshold,
		cooldown:      cooldown,
		failureCnt:    make(map[string]int, len(normalized)),
		cooldownTo:    make(map[string]time.Time, len(normalized)),
	}
}

// order returns the endpoints to try for one request, starting at the next
// rotation slot and skipping endpoints that are cooling down.
func (p *pool) order(now time.Time) []string {
	if len(p.endpoints) == 0 {
		return nil
	}
	start := int(atomic.AddUint32(&p.next, 1)-1) % len(p.endpoints)
	out := make([]string, 0, len(p.endpoints))
	for offset := 0; offset < len(p.endpoints); offset++ {
		endpoint := p.endpoints[(start+offset)%len(p.endpoints)]
		if p.isCoolingDown(endpoint, now) {
			continue
		}
		out = append(out, endpoint)
	}
	return out
}

func (p *pool) isCoolingDown(endpoint string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	until, ok := p.cooldownTo[endpoint]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(p.cooldownTo, endpoint)
		return false
	}
	return true
}

func (p *pool) onFailure(endpoint string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := p.failureCnt[endpoint] + 1
	p.failureCnt[endpoint] = count
	if count >= p.failThreshold {
		p.cooldownTo[endpoint] = now.Add(p.cooldown)
		p.failureCnt[endpoint] = 0
	}
}

func (p *pool) onSuccess(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failureCnt[endpoint] = 0
	delete(p.cooldownTo, endpoint)
}

func (p *pool) primary() string {
	if len(p.endpoints) == 0 {
		return ""
	}
	return p.endpoints[0]
}

func normalizeEndpoints(endpoints []string) []string {
	result := make([]string, 0, len(endpoints))
	seen := map[string]struct{}{}
	for _, endpoint := range endpoints {
		normalized := strings.TrimRight(strings.TrimSpace(endpoint), "/")
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
