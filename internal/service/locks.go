package service

import "sync"

// PortfolioLocks serializes ledger and valuation-window mutation per
// portfolio. FIFO lot consumption order and window-start tracking are not
// safely mergeable under concurrent writers, so each portfolio gets its own
// mutex; operations on different portfolios proceed fully in parallel.
// Read-only valuation queries do not take these locks.
type PortfolioLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPortfolioLocks creates an empty lock registry shared by every service
// that mutates per-portfolio state.
func NewPortfolioLocks() *PortfolioLocks {
	return &PortfolioLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for a portfolio, creating it on first use.
func (p *PortfolioLocks) get(portfolioID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[portfolioID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[portfolioID] = lock
	}
	return lock
}
