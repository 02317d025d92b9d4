package predcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newCacheCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_prediction_cache_total"}, []string{"result"})
}

func TestClassify_MissThenHit(t *testing.T) {
	inner := &mockClassifier{probs: []float32{0.1, 0.7, 0.2}}
	st := newMemStore()
	counter := newCacheCounter()
	c := New(inner, st, Options{KeyPrefix: "plantclf:", TTL: time.Hour, CacheTotal: counter})

	input := []float32{1, 2, 3, 4}

	first, err := c.Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.Calls() != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.Calls())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached result differs: %v vs %v", first, second)
		}
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}

	for key, ttl := range st.ttls {
		if !strings.HasPrefix(key, "plantclf:pred_cache:") {
			t.Errorf("unexpected key %q", key)
		}
		if ttl != time.Hour {
			t.Errorf("expected ttl 1h, got %v", ttl)
		}
	}
}

func TestClassify_DifferentInputsDifferentKeys(t *testing.T) {
	inner := &mockClassifier{probs: []float32{0.5, 0.5}}
	st := newMemStore()
	c := New(inner, st, Options{})

	if _, err := c.Classify(context.Background(), []float32{1, 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Classify(context.Background(), []float32{2, 1}); err != nil {
		t.Fatal(err)
	}
	if inner.Calls() != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.Calls())
	}
	if len(st.data) != 2 {
		t.Errorf("expected 2 cache entries, got %d", len(st.data))
	}
}

func TestClassify_InnerErrorNotCached(t *testing.T) {
	inner := &mockClassifier{err: errors.New("inference failed")}
	st := newMemStore()
	c := New(inner, st, Options{})

	_, err := c.Classify(context.Background(), []float32{1})
	if err == nil || err.Error() != "inference failed" {
		t.Fatalf("expected inner error verbatim, got %v", err)
	}
	if st.sets != 0 {
		t.Errorf("errors must not be cached, got %d sets", st.sets)
	}
}

func TestClassify_StoreGetErrorFallsThrough(t *testing.T) {
	inner := &mockClassifier{probs: []float32{1, 0}}
	st := newMemStore()
	st.getErr = errors.New("connection refused")
	c := New(inner, st, Options{})

	probs, err := c.Classify(context.Background(), []float32{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(probs) != 2 || probs[0] != 1 {
		t.Errorf("unexpected probs %v", probs)
	}
}

func TestClassify_StoreSetErrorIgnored(t *testing.T) {
	inner := &mockClassifier{probs: []float32{1, 0}}
	st := newMemStore()
	st.setErr = errors.New("READONLY")
	c := New(inner, st, Options{})

	if _, err := c.Classify(context.Background(), []float32{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClassify_CorruptEntryFallsThrough(t *testing.T) {
	inner := &mockClassifier{probs: []float32{0.25, 0.75}}
	st := newMemStore()
	c := New(inner, st, Options{})

	input := []float32{9}
	st.data[c.cacheKey(encodeFloats(input))] = []byte{1, 2, 3}

	probs, err := c.Classify(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.Calls() != 1 || probs[1] != 0.75 {
		t.Errorf("expected inner call on corrupt entry, calls=%d probs=%v", inner.Calls(), probs)
	}
}

func TestClassify_ConcurrentMissesShareInference(t *testing.T) {
	release := make(chan struct{})
	inner := &blockingClassifier{release: release, probs: []float32{0.3, 0.7}}
	st := newMemStore()
	c := New(inner, st, Options{})

	const n = 8
	var wg sync.WaitGroup
	results := make([][]float32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			probs, err := c.Classify(context.Background(), []float32{4, 2})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = probs
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := inner.Calls(); got != 1 {
		t.Errorf("expected 1 shared inference, got %d", got)
	}
	results[0][0] = 42
	if results[1][0] == 42 {
		t.Error("callers must receive independent slices")
	}
}

func TestClassify_CanceledCallerDoesNotFailSharedInference(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	inner := &blockingClassifier{started: started, release: release, probs: []float32{0.3, 0.7}}
	st := newMemStore()
	c := New(inner, st, Options{})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Classify(firstCtx, []float32{4, 2})
		firstErr <- err
	}()
	<-started

	type result struct {
		probs []float32
		err   error
	}
	second := make(chan result, 1)
	go func() {
		probs, err := c.Classify(context.Background(), []float32{4, 2})
		second <- result{probs, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected canceled caller to get context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled caller did not return before inference finished")
	}

	close(release)
	res := <-second
	if res.err != nil {
		t.Fatalf("other caller must not inherit cancellation: %v", res.err)
	}
	if len(res.probs) != 2 || res.probs[1] != 0.7 {
		t.Errorf("unexpected probs %v", res.probs)
	}
	if got := inner.Calls(); got != 1 {
		t.Errorf("expected 1 shared inference, got %d", got)
	}
}

func TestOutputSize(t *testing.T) {
	sized := &sizedClassifier{}
	sized.size = 38
	if got := New(sized, newMemStore(), Options{}).OutputSize(); got != 38 {
		t.Errorf("expected forwarded size 38, got %d", got)
	}
	if got := New(&mockClassifier{}, newMemStore(), Options{}).OutputSize(); got != 0 {
		t.Errorf("expected 0 for unsized classifier, got %d", got)
	}
}

func TestFloatCodec(t *testing.T) {
	in := []float32{0, 1, -1.5, 3.25e-7}
	out, err := decodeFloats(encodeFloats(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("codec mismatch: %v vs %v", in, out)
		}
	}
	if _, err := decodeFloats([]byte{1, 2, 3, 4, 5}); err == nil {
		t.Error("expected error for odd length")
	}
}

type blockingClassifier struct {
	mu      sync.Mutex
	calls   int
	started chan struct{} // closed on the first call when non-nil
	release chan struct{}
	probs   []float32
}

func (b *blockingClassifier) Classify(ctx context.Context, _ []float32) ([]float32, error) {
	b.mu.Lock()
	b.calls++
	if b.calls == 1 && b.started != nil {
		close(b.started)
	}
	b.mu.Unlock()
	<-b.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.probs, nil
}

func (b *blockingClassifier) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
