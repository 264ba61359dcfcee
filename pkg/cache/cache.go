package cache

import (
	"math/rand"
	"time"

	lru "github.com/hnlq715/golang-lru"
)

type SetFn func() (v interface{}, err error)

type Cache interface {
	GetOrSet(k interface{}, setFn SetFn) (v interface{}, err error)
	// Invalidate drops k, so the next GetOrSet computes it again.
	Invalidate(k interface{})
}

type JitterFn func() time.Duration

// GetSetCache keeps computed values for expiry (plus jitter).  Concurrent GetOrSet calls for
// a missing key run setFn once.
type GetSetCache struct {
	lru          *lru.Cache
	computations OnlyOne
	expiry       time.Duration
	jitterFn     JitterFn
}

func NewCache(size int, expiry time.Duration, jitterFn JitterFn) *GetSetCache {
	if jitterFn == nil {
		jitterFn = func() time.Duration { return 0 }
	}
	c, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &GetSetCache{
		lru:          c,
		computations: NewChanOnlyOne(),
		expiry:       expiry,
		jitterFn:     jitterFn,
	}
}

func (c *GetSetCache) GetOrSet(k interface{}, setFn SetFn) (v interface{}, err error) {
	if v, ok := c.lru.Get(k); ok {
		return v, nil
	}
	return c.computations.Compute(k, func() (interface{}, error) {
		if v, ok := c.lru.Get(k); ok {
			return v, nil
		}
		v, err := setFn()
		if err != nil {
			return nil, err
		}
		c.lru.AddEx(k, v, c.expiry+c.jitterFn())
		return v, nil
	})
}

func (c *GetSetCache) Invalidate(k interface{}) {
	c.lru.Remove(k)
}

// NewJitterFn returns a random duration in [0, jitter).
func NewJitterFn(jitter time.Duration) JitterFn {
	if jitter <= 0 {
		return func() time.Duration { return 0 }
	}
	return func() time.Duration {
		return time.Duration(rand.Int63n(int64(jitter)))
	}
}
