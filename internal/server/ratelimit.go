// Rate limiting implements spec.md §4.1's two tiers: a global 300
// requests / 5 minutes per peer, and a stricter 10 requests / 10 minutes
// per peer on the pairing route. Each tier keys a bucket per peer IP with
// golang.org/x/time/rate, the library the rest of the example pack's
// networking stack pulls in for exactly this purpose.
package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateTier int

const (
	globalRateTier rateTier = iota
	pairingRateTier
)

type tierConfig struct {
	limit rate.Limit
	burst int
}

var tierConfigs = map[rateTier]tierConfig{
	// 300 requests / 5 minutes == 1 every second, bursting up to the full
	// window allowance.
	globalRateTier: {limit: rate.Every(5 * time.Minute / 300), burst: 300},
	// 10 requests / 10 minutes.
	pairingRateTier: {limit: rate.Every(10 * time.Minute / 10), burst: 10},
}

// limiterSet holds one token bucket per (tier, peer) pair, created lazily
// and never evicted — bounded in practice by the loopback-only admission
// filter limiting the realistic number of distinct peers to a handful.
type limiterSet struct {
	mu     sync.Mutex
	byTier map[rateTier]map[string]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{byTier: map[rateTier]map[string]*rate.Limiter{}}
}

func (ls *limiterSet) allow(tier rateTier, peer string) bool {
	ls.mu.Lock()
	peers, ok := ls.byTier[tier]
	if !ok {
		peers = map[string]*rate.Limiter{}
		ls.byTier[tier] = peers
	}
	limiter, ok := peers[peer]
	if !ok {
		cfg := tierConfigs[tier]
		limiter = rate.NewLimiter(cfg.limit, cfg.burst)
		peers[peer] = limiter
	}
	ls.mu.Unlock()

	return limiter.Allow()
}
