package metrics

import "sync"

// Event names counted by the signaling router.
const (
	PeerConnected    = "peer_connected"
	PeerDisconnected = "peer_disconnected"
	DuplicateConnect = "duplicate_connect"
	RelayCall        = "relay_call"
	RelayAnswer      = "relay_answer"
	RelayReject      = "relay_reject"
	MalformedMessage = "malformed_message"
	UnknownMessage   = "unknown_message"
	SendDropped      = "send_dropped"
	HandlerPanic     = "handler_panic"
)

// Metrics is a concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
