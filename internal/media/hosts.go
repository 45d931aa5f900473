package media

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// hostGate paces requests per media host and caches each host's
// robots.txt group.
type hostGate struct {
	client   *http.Client
	agent    string
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	robots   map[string]*robotstxt.Group
}

func newHostGate(client *http.Client, agent string, interval time.Duration) *hostGate {
	return &hostGate{
		client:   client,
		agent:    agent,
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		robots:   make(map[string]*robotstxt.Group),
	}
}

// Wait blocks until the host of target may be contacted again.
func (g *hostGate) Wait(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}

	g.mu.Lock()
	limiter, ok := g.limiters[u.Host]
	if !ok {
		limit := rate.Inf
		if g.interval > 0 {
			limit = rate.Every(g.interval)
		}
		limiter = rate.NewLimiter(limit, 1)
		g.limiters[u.Host] = limiter
	}
	g.mu.Unlock()

	return limiter.Wait(ctx)
}

// Allowed reports whether robots.txt of the host permits the path.
// A missing or unreadable robots.txt allows everything.
func (g *hostGate) Allowed(ctx context.Context, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	g.mu.Lock()
	group, cached := g.robots[u.Host]
	g.mu.Unlock()

	if !cached {
		group = g.fetchRobots(ctx, u)
		g.mu.Lock()
		g.robots[u.Host] = group
		g.mu.Unlock()
	}

	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (g *hostGate) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(g.agent)
}
