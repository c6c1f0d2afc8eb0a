package wakey_ipcache

import (
	"context"
	"net/netip"
	"sync"
	wakey_log "wakey-bot/wakey/log"
)

// Resolver looks up the public IPv4 address of this network.
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Cache holds at most one address. The zero netip.Addr means nothing is cached.
//
// The resolver is always called without the lock held, so a slow lookup never
// blocks readers of a cached value. Concurrent refreshes each hit the resolver
// and the last write wins.
type Cache struct {
	mu       sync.RWMutex
	addr     netip.Addr
	resolver Resolver
	logger   *wakey_log.Logger
}

func NewCache(resolver Resolver, logger *wakey_log.Logger) *Cache {
	if logger == nil {
		logger = wakey_log.Discard()
	}

	return &Cache{
		resolver: resolver,
		logger:   logger,
	}
}

// Peek returns the cached address without refreshing.
func (c *Cache) Peek() (netip.Addr, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr, c.addr.IsValid()
}

// GetOrRefresh returns the cached address unless force is set or the cache is
// empty, in which case it resolves a fresh one and stores it. A failed lookup
// empties the cache and yields an invalid address.
func (c *Cache) GetOrRefresh(ctx context.Context, force bool) netip.Addr {
	if !force {
		if addr, ok := c.Peek(); ok {
			c.logger.Debug("Saved ip: %s", addr)
			return addr
		}
	}

	c.logger.Info("Fetching new ip (force=%t)...", force)
	addr, err := c.resolver.Resolve(ctx)
	if err != nil {
		c.logger.Warn("Could not resolve public ip: %v", err)
		addr = netip.Addr{}
	}

	c.mu.Lock()
	c.addr = addr
	c.mu.Unlock()

	c.logger.Info("New ip is %s", Format(addr))
	return addr
}

// Format renders an address the way replies show it, "None" when absent.
func Format(addr netip.Addr) string {
	if !addr.IsValid() {
		return "None"
	}
	return addr.String()
}

func Render(addr netip.Addr) string {
	return "The ip address is: " + Format(addr)
}
