package cache

import "sync"

// OnlyOne runs one computation per key at a time; callers arriving while it runs get its result.
type OnlyOne interface {
	Compute(key interface{}, fn func() (interface{}, error)) (interface{}, error)
}

type ChanOnlyOne struct {
	m *sync.Map
}

func NewChanOnlyOne() *ChanOnlyOne {
	return &ChanOnlyOne{
		m: &sync.Map{},
	}
}

type chanAndResult struct {
	ch    chan struct{}
	value interface{}
	err   error
}

func (c *ChanOnlyOne) Compute(key interface{}, fn func() (interface{}, error)) (interface{}, error) {
	stop := make(chan struct{})
	ci := &chanAndResult{ch: stop}
	actual, inFlight := c.m.LoadOrStore(key, ci)
	actualCi := actual.(*chanAndResult)
	if inFlight {
		<-actualCi.ch
		return actualCi.value, actualCi.err
	}
	defer func() {
		c.m.Delete(key)
		close(stop)
	}()
	ci.value, ci.err = fn()
	return ci.value, ci.err
}
