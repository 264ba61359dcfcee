package cache

// NoCache computes every value again.  One-shot commands use it: they never ask twice.
var NoCache Cache = noCache{}

type noCache struct{}

func (noCache) GetOrSet(_ interface{}, setFn SetFn) (interface{}, error) {
	return setFn()
}

func (noCache) Invalidate(interface{}) {}
