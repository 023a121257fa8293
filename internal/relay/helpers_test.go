package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeOrigin serves canned bodies by URL and counts fetches.
type fakeOrigin struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
	total  atomic.Int64
	delay  time.Duration
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{bodies: make(map[string][]byte), calls: make(map[string]int)}
}

func (o *fakeOrigin) set(url, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies[url] = []byte(body)
}

func (o *fakeOrigin) count(url string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[url]
}

func (o *fakeOrigin) Fetch(_ context.Context, url string) ([]byte, error) {
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	o.total.Add(1)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[url]++
	b, ok := o.bodies[url]
	if !ok {
		return nil, &UpstreamError{URL: url, Status: 404}
	}
	return b, nil
}
