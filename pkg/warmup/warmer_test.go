package warmup

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePrefetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]bool
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func newFakePrefetcher() *fakePrefetcher {
	return &fakePrefetcher{calls: make(map[string]int), fail: make(map[string]bool)}
}

func (f *fakePrefetcher) Prefetch(ctx context.Context, src string) bool {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src]++
	return !f.fail[src]
}

func TestWarmer_Run(t *testing.T) {
	p := newFakePrefetcher()
	p.fail["https://backup.example.com/e.xml"] = true

	report := New(p, DefaultConfig()).Run(context.Background(), []string{
		"https://epg.example.com/e.xml",
		"https://backup.example.com/e.xml",
	})

	assert.Equal(t, []string{"https://epg.example.com/e.xml"}, report.Loaded)
	assert.Equal(t, []string{"https://backup.example.com/e.xml"}, report.Failed)
}

func TestWarmer_DedupesSources(t *testing.T) {
	p := newFakePrefetcher()

	report := New(p, DefaultConfig()).Run(context.Background(), []string{"a", "", "a", "b"})

	sort.Strings(report.Loaded)
	assert.Equal(t, []string{"a", "b"}, report.Loaded)
	assert.Equal(t, 1, p.calls["a"])
}

func TestWarmer_BoundedConcurrency(t *testing.T) {
	p := newFakePrefetcher()
	p.delay = 20 * time.Millisecond

	New(p, Config{MaxConcurrency: 2, Timeout: time.Second}).Run(context.Background(), []string{"a", "b", "c", "d", "e"})

	assert.LessOrEqual(t, atomic.LoadInt32(&p.maxSeen), int32(2), "max concurrent loads")
}

func TestWarmer_PerSourceTimeout(t *testing.T) {
	p := newFakePrefetcher()
	p.delay = time.Second

	start := time.Now()
	report := New(p, Config{MaxConcurrency: 1, Timeout: 20 * time.Millisecond}).Run(context.Background(), []string{"slow"})

	assert.Equal(t, []string{"slow"}, report.Failed)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "per-source timeout not applied")
}

func TestWarmer_CancelledContext(t *testing.T) {
	p := newFakePrefetcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(p, DefaultConfig()).Run(ctx, []string{"a", "b"})

	assert.Empty(t, report.Loaded, "nothing loads after cancellation")
}

func TestNew_Defaults(t *testing.T) {
	w := New(newFakePrefetcher(), Config{})
	assert.Equal(t, 2, w.config.MaxConcurrency)
	assert.Equal(t, 60*time.Second, w.config.Timeout)
}

func TestWarmer_Empty(t *testing.T) {
	report := New(newFakePrefetcher(), DefaultConfig()).Run(context.Background(), nil)
	assert.Empty(t, report.Loaded)
	assert.Empty(t, report.Failed)
}
