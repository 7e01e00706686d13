package cache

import (
	"strconv"
	"time"

	"babywallet/internal/core"
	"babywallet/internal/metrics"
)

// Projections memoizes core.FutureValue. Keys are built from every input
// field, so two profiles with the same balance, contribution, rate and
// horizon share one entry.
type Projections struct {
	lru     *LRUCache[core.Money]
	metrics *metrics.Collector
}

// NewProjections returns a cache of at most size projections. Entries older
// than ttl are dropped by CleanExpired; a zero ttl keeps them until evicted
// by size.
func NewProjections(size int, ttl time.Duration, m *metrics.Collector) *Projections {
	return &Projections{lru: NewLRUCache[core.Money](size, ttl), metrics: m}
}

// FutureValue returns the cached projection for in, computing it on a miss.
// A nil receiver computes directly.
func (p *Projections) FutureValue(in core.ProjectionInput) core.Money {
	if p == nil {
		return core.FutureValue(in)
	}
	v, hit, _ := p.lru.GetOrCompute(projectionKey(in), func() (core.Money, error) {
		return core.FutureValue(in), nil
	})
	p.metrics.ProjectionCache(hit)
	return v
}

func (p *Projections) Size() int {
	return p.lru.Size()
}

func (p *Projections) CleanExpired() int {
	return p.lru.CleanExpired()
}

func projectionKey(in core.ProjectionInput) string {
	return in.Principal.String() + "|" +
		in.MonthlyContribution.String() + "|" +
		in.MonthlyRate.String() + "|" +
		strconv.Itoa(in.Months)
}
