package proxy

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stackhound/stackhound/internal/config"
)

// Manager rotates egress proxy URLs within each configured tier and
// tracks per-server health. Tiers without configured servers resolve to
// a direct connection, which keeps local and test runs proxy-free.
type Manager struct {
	tiers  map[Tier][]*serverEntry
	index  map[Tier]*atomic.Int64
	mu     sync.RWMutex
	logger *slog.Logger
}

type serverEntry struct {
	URL     *url.URL
	Healthy bool
	LastErr error
	LastUse time.Time
	mu      sync.Mutex
}

// NewManager builds a Manager from the proxy configuration.
func NewManager(cfg *config.ProxyConfig, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		tiers:  make(map[Tier][]*serverEntry),
		index:  make(map[Tier]*atomic.Int64),
		logger: logger.With("component", "proxy_manager"),
	}

	for name, servers := range cfg.Servers {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, err
		}
		m.index[tier] = &atomic.Int64{}
		for _, raw := range servers {
			u, err := url.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy URL %q for tier %s: %w", raw, tier, err)
			}
			m.tiers[tier] = append(m.tiers[tier], &serverEntry{URL: u, Healthy: true})
		}
	}

	m.logger.Info("proxy manager initialized", "tiers", len(m.tiers))
	return m, nil
}

// ServerFor returns the next healthy egress URL for the tier, rotating
// round-robin. A nil result means direct connection.
func (m *Manager) ServerFor(tier Tier) *url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()

	healthy := m.healthyServers(tier)
	if len(healthy) == 0 {
		return nil
	}

	idx, ok := m.index[tier]
	if !ok {
		return healthy[0].URL
	}
	entry := healthy[idx.Add(1)%int64(len(healthy))]
	entry.mu.Lock()
	entry.LastUse = time.Now()
	entry.mu.Unlock()
	return entry.URL
}

// MarkFailed marks one egress server unhealthy so rotation skips it.
func (m *Manager) MarkFailed(proxyURL *url.URL, err error) {
	if proxyURL == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entries := range m.tiers {
		for _, e := range entries {
			if e.URL.String() == proxyURL.String() {
				e.mu.Lock()
				e.Healthy = false
				e.LastErr = err
				e.mu.Unlock()
				m.logger.Warn("proxy marked unhealthy", "proxy", proxyURL.Host, "error", err)
				return
			}
		}
	}
}

// Count returns the number of configured servers for a tier.
func (m *Manager) Count(tier Tier) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tiers[tier])
}

func (m *Manager) healthyServers(tier Tier) []*serverEntry {
	entries := m.tiers[tier]
	healthy := make([]*serverEntry, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.Healthy {
			healthy = append(healthy, e)
		}
		e.mu.Unlock()
	}
	return healthy
}
