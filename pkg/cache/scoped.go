package cache

// ScopedKeyer prefixes every key of an inner Keyer, so several render kinds
// or environments can share one backend.
//
//	news := NewScopedKeyer(NewDefaultKeyer(), "news:")
//	key := news.HTTPKey("fetch", "https://example.com/news/1")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner uses the default
// scheme.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}
