package fetch

import (
	"context"
	"sync"

	"github.com/benjaminestes/robots/v2"
)

// robotsCache keeps one tester per robots.txt URL.
type robotsCache struct {
	mu      sync.Mutex
	testers map[string]func(string) bool
}

func newRobotsCache() *robotsCache {
	return &robotsCache{testers: make(map[string]func(string) bool)}
}

// allowed reports whether the robots agent may fetch rawURL. The robots.txt file is
// fetched with the session on first use for each host. A robots.txt that
// cannot be read is treated as a server error, which disallows everything
// the same way a crawler would for a 5xx.
func (s *Session) allowed(ctx context.Context, rawURL string) bool {
	rtxtURL, err := robots.Locate(rawURL)
	if err != nil {
		// Not a URL robots.txt can speak about; let the request fail on its own.
		return true
	}

	s.robots.mu.Lock()
	test, ok := s.robots.testers[rtxtURL]
	s.robots.mu.Unlock()
	if ok {
		return test(rawURL)
	}

	test = s.loadRobots(ctx, rtxtURL)

	s.robots.mu.Lock()
	s.robots.testers[rtxtURL] = test
	s.robots.mu.Unlock()

	return test(rawURL)
}

func (s *Session) loadRobots(ctx context.Context, rtxtURL string) func(string) bool {
	unavailable := func() func(string) bool {
		rtxt, _ := robots.From(503, nil)
		return rtxt.Tester(s.robotsAgent)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rtxtURL)
	if err != nil {
		s.logger.Debug("robots.txt unavailable", "url", rtxtURL, "error", err)
		return unavailable()
	}
	body := resp.RawBody()
	defer body.Close()

	rtxt, err := robots.From(resp.StatusCode(), body)
	if err != nil {
		s.logger.Debug("robots.txt unreadable", "url", rtxtURL, "error", err)
		return unavailable()
	}
	return rtxt.Tester(s.robotsAgent)
}
