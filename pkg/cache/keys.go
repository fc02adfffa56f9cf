package cache

// Keyer builds cache keys.
type Keyer interface {
	// HTTPKey keys a raw HTTP response within a namespace.
	HTTPKey(namespace, key string) string
}

// DefaultKeyer is the unprefixed key scheme.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key scheme.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}
