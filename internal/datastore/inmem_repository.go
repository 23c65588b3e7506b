package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/your-org/price-horizon-learner/internal/series"
)

// InMemProvider is an in-memory SeriesProvider for testing and local runs.
type InMemProvider struct {
	mu     sync.RWMutex
	series map[string][]series.PricePoint
}

// NewInMemProvider creates an empty InMemProvider.
func NewInMemProvider() *InMemProvider {
	return &InMemProvider{series: make(map[string][]series.PricePoint)}
}

// Seed replaces the series of a symbol. Points are stored in date order.
func (p *InMemProvider) Seed(symbol string, points []series.PricePoint) {
	cp := make([]series.PricePoint, len(points))
	copy(cp, points)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })

	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[symbol] = cp
}

// FetchCloses returns the seeded points between from and to.
func (p *InMemProvider) FetchCloses(ctx context.Context, symbol string, from, to time.Time) ([]series.PricePoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	points, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	out := make([]series.PricePoint, 0, len(points))
	for _, pt := range points {
		if inRange(pt.Date, from, to) {
			out = append(out, pt)
		}
	}
	return out, nil
}

// Clear removes all seeded series.
func (p *InMemProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series = make(map[string][]series.PricePoint)
}
