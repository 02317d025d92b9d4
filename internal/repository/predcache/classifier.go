// Package predcache caches classifier outputs keyed by a digest of the input tensor.
package predcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/plantclf/internal/db"
	"github.com/kailas-cloud/plantclf/internal/domain"
)

const cacheNamespace = "pred_cache:"

// store is the consumer interface for the prediction cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configure the decorator.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
	// CacheTotal is a counter vec with label "result" ("hit"/"miss"). Optional.
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

// CachedClassifier serves repeated inputs from a key-value store.
// Store failures are logged and fall through to the inner classifier.
type CachedClassifier struct {
	inner      domain.Classifier
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	group      singleflight.Group
}

var (
	_ domain.Classifier  = (*CachedClassifier)(nil)
	_ domain.OutputSizer = (*CachedClassifier)(nil)
)

// New creates a caching decorator.
func New(inner domain.Classifier, s store, opts Options) *CachedClassifier {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClassifier{
		inner:      inner,
		store:      s,
		prefix:     opts.KeyPrefix + cacheNamespace,
		ttl:        opts.TTL,
		cacheTotal: opts.CacheTotal,
		logger:     logger,
	}
}

// Classify returns cached probabilities for an identical tensor or runs the inner classifier.
// Concurrent misses for the same tensor share one forward pass. The shared pass is detached
// from any single caller's cancellation; each caller still returns early on its own ctx.
func (c *CachedClassifier) Classify(ctx context.Context, input []float32) ([]float32, error) {
	data := encodeFloats(input)
	key := c.cacheKey(data)

	if probs, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return probs, nil
	}

	c.incCache("miss")

	ch := c.group.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		probs, err := c.inner.Classify(shared, input)
		if err != nil {
			return nil, err
		}
		c.putToCache(shared, key, probs)
		return probs, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]float32)
		out := make([]float32, len(shared))
		copy(out, shared)
		return out, nil
	}
}

// OutputSize forwards the inner classifier's declared size, or 0 when it has none.
func (c *CachedClassifier) OutputSize() int {
	if sz, ok := c.inner.(domain.OutputSizer); ok {
		return sz.OutputSize()
	}
	return 0
}

func (c *CachedClassifier) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedClassifier) cacheKey(tensor []byte) string {
	h := sha256.Sum256(tensor)
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedClassifier) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached prediction", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	probs, err := decodeFloats(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached prediction", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return probs, true
}

func (c *CachedClassifier) putToCache(ctx context.Context, key string, probs []float32) {
	if err := c.store.SetWithTTL(ctx, key, encodeFloats(probs), c.ttl); err != nil {
		c.logger.Warn("Failed to cache prediction", zap.String("key", key), zap.Error(err))
	}
}

func encodeFloats(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloats(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid prediction cache data: len=%d (not multiple of 4)", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
