// Package client provides the polling client for the soundpipe HTTP API:
// a thin request wrapper, a protocol version gate, and a background poll
// loop that keeps tracked jobs in sync with the server.
package client

import (
	"sync"
)

// StaleFunc is notified when the gate transitions to stale. It receives the
// client's version and the server version that triggered the transition.
type StaleFunc func(clientVersion, serverVersion string)

// VersionGate tracks whether the client's protocol version still matches the
// server's. Every response's echoed version header is fed in via Observe;
// once a mismatch is seen the gate latches stale and stays stale.
//
// Observations are sequence-guarded: callers take a sequence number with
// Begin before issuing a request and pass it to Observe with the response's
// version. Out-of-order responses from slow requests lose to later
// observations instead of clobbering them.
type VersionGate struct {
	clientVersion string

	mu            sync.Mutex
	seq           uint64
	lastSeen      uint64
	serverVersion string
	stale         bool
	onStale       []StaleFunc
}

// NewVersionGate creates a gate for the given client protocol version.
func NewVersionGate(clientVersion string) *VersionGate {
	return &VersionGate{clientVersion: clientVersion}
}

// ClientVersion returns the version this gate was built with.
func (g *VersionGate) ClientVersion() string {
	return g.clientVersion
}

// OnStale registers a callback invoked exactly once, on the transition to
// stale. Callbacks run synchronously inside Observe.
func (g *VersionGate) OnStale(fn StaleFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onStale = append(g.onStale, fn)
}

// Begin reserves a sequence number for a request about to be issued.
func (g *VersionGate) Begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return g.seq
}

// Observe records the server version echoed on a response. Observations older
// than the newest one already recorded are dropped. An empty version (header
// missing, e.g. a non-HTTP error) is ignored.
func (g *VersionGate) Observe(seq uint64, serverVersion string) {
	if serverVersion == "" {
		return
	}

	g.mu.Lock()
	if seq < g.lastSeen {
		g.mu.Unlock()
		return
	}
	g.lastSeen = seq
	g.serverVersion = serverVersion

	if g.stale || serverVersion == g.clientVersion {
		g.mu.Unlock()
		return
	}
	g.stale = true
	callbacks := make([]StaleFunc, len(g.onStale))
	copy(callbacks, g.onStale)
	g.mu.Unlock()

	for _, fn := range callbacks {
		fn(g.clientVersion, serverVersion)
	}
}

// Stale reports whether a version mismatch has been observed.
func (g *VersionGate) Stale() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stale
}

// ServerVersion returns the most recently observed server version, or empty
// if no response has been observed yet.
func (g *VersionGate) ServerVersion() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.serverVersion
}
