// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about reconciliation passes, realtime channels, cache
// operations and backing-data fetches.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, never by libraries, so there are no import
// cycles and the core packages stay free of metrics backends.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    observability.SetChannelHooks(&myChannelHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	ps, err := engine.Composite(c, cid)
//	observability.Render().OnComposite(ctx, cid, len(ps), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the reconciliation engine.
type RenderHooks interface {
	// OnMount records the initial render of a new child.
	OnMount(ctx context.Context, cid int, duration time.Duration, err error)

	// OnComposite records one render-diff-patch pass.
	OnComposite(ctx context.Context, cid, patches int, duration time.Duration, err error)
}

// =============================================================================
// Channel Hooks
// =============================================================================

// ChannelHooks receives events from realtime channels.
type ChannelHooks interface {
	// OnOpen records a successful dial.
	OnOpen(ctx context.Context, cid int, url string)

	// OnMessage records an inbound message; err is set for malformed payloads.
	OnMessage(ctx context.Context, cid, size int, err error)

	// OnClose records the end of a channel; err is nil for a local close.
	OnClose(ctx context.Context, cid int, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnMount(context.Context, int, time.Duration, error)          {}
func (NoopRenderHooks) OnComposite(context.Context, int, int, time.Duration, error) {}

// NoopChannelHooks is a no-op implementation of ChannelHooks.
type NoopChannelHooks struct{}

func (NoopChannelHooks) OnOpen(context.Context, int, string)         {}
func (NoopChannelHooks) OnMessage(context.Context, int, int, error) {}
func (NoopChannelHooks) OnClose(context.Context, int, error)        {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	renderHooks  RenderHooks  = NoopRenderHooks{}
	channelHooks ChannelHooks = NoopChannelHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetRenderHooks registers custom render hooks.
// This should be called once at application startup before any root is built.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetChannelHooks registers custom channel hooks.
func SetChannelHooks(h ChannelHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		channelHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Channel returns the registered channel hooks.
func Channel() ChannelHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return channelHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	renderHooks = NoopRenderHooks{}
	channelHooks = NoopChannelHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
