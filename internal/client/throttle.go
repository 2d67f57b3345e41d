package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrThrottled is returned while the storefront is rate limiting us.
var ErrThrottled = errors.New("storefront is throttling requests")

// throttleGuard owns the 429 policy: one retry through a fresh proxy, then a
// pause of every request for the cooldown period.
type throttleGuard struct {
	cooldown time.Duration
	now      func() time.Time

	mu     sync.Mutex
	paused time.Time // zero when requests are allowed
}

func newThrottleGuard(cooldown time.Duration) *throttleGuard {
	return &throttleGuard{cooldown: cooldown, now: time.Now}
}

// allow fails fast while a pause is running and lifts it once it is over.
func (g *throttleGuard) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused.IsZero() {
		return nil
	}
	if now := g.now(); now.Before(g.paused) {
		return fmt.Errorf("%w: requests paused for %v more", ErrThrottled, g.paused.Sub(now).Round(time.Second))
	}

	g.paused = time.Time{}
	log.Infof("✅ Storefront cooldown over, requests are allowed again")
	return nil
}

func (g *throttleGuard) pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.paused = g.now().Add(g.cooldown)
	log.Warnf("🚫 Storefront keeps throttling, pausing requests until %v", g.paused.Format("15:04:05"))
	return fmt.Errorf("%w: requests paused for %v", ErrThrottled, g.cooldown)
}

// handle runs retry once through a switched proxy. switchProxy reports
// whether a different proxy is in place; without one the pause starts at once.
func (g *throttleGuard) handle(ctx context.Context, pageURL string, switchProxy func() bool, retry func(context.Context) (string, bool)) (string, error) {
	log.Warnf("🚫 Throttled by storefront for URL: %s", pageURL)

	if switchProxy() {
		if body, ok := retry(ctx); ok {
			log.Infof("✅ Retry successful with new proxy")
			return body, nil
		}
	}
	return "", g.pause()
}
