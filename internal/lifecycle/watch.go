package lifecycle

import (
	"context"
	"time"
)

// startWatch polls for upgrades requested by connections in other
// processes. In-process upgraders notify through the registry directly.
func (c *Conn) startWatch(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.stopWatch = cancel
	c.mu.Unlock()
	go c.watch(ctx, interval)
}

func (c *Conn) watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if target, ok := c.pendingUpgrade(); ok {
			c.versionChange(target, "upgrade request")
			return
		}

		db, err := c.DB()
		if err != nil {
			return
		}
		if v, err := readVersion(ctx, db); err == nil && v > c.version {
			c.versionChange(v, "stored version")
			return
		}
	}
}

// pendingUpgrade reports an upgrade request that this connection must
// yield to. The exact record found on disk at open is ignored: it is either
// the leftover of an upgrader that died, or a live upgrader that will
// republish it with a higher Seq.
func (c *Conn) pendingUpgrade() (int, bool) {
	req, ok, err := readRequest(requestPath(c.path))
	if err != nil {
		c.logger.Debug("ignoring unreadable upgrade request", "error", err)
		return 0, false
	}
	if !ok || req.Owner == c.id || req.Version <= c.version {
		return 0, false
	}
	if req == c.leftover {
		return 0, false
	}
	return req.Version, true
}
