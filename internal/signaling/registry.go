package signaling

import "sync"

// Peer is the router's handle on one connected client.
type Peer interface {
	// ID returns the identifier assigned when the connection was accepted.
	ID() PeerID

	// Deliver queues msg for the peer without blocking.
	// It reports false when the message had to be dropped.
	Deliver(msg *Message) bool

	// Close stops outbound delivery once the peer has disconnected.
	Close()
}

// Registry is the set of currently connected peers.
type Registry struct {
	peers map[PeerID]Peer
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[PeerID]Peer),
	}
}

func (r *Registry) Add(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID()] = p
}

// Remove deletes id and returns the handle that was registered under it.
// Removing an absent id is a no-op.
func (r *Registry) Remove(id PeerID) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if ok {
		delete(r.peers, id)
	}
	return p, ok
}

func (r *Registry) Contains(id PeerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[id]
	return ok
}

func (r *Registry) Get(id PeerID) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// ListOthers returns every registered id except id, in no particular order.
// The result is never nil.
func (r *Registry) ListOthers(id PeerID) []PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	others := make([]PeerID, 0, len(r.peers))
	for pid := range r.peers {
		if pid != id {
			others = append(others, pid)
		}
	}
	return others
}

// BroadcastExcept delivers msg to every registered peer other than id and
// returns how many deliveries were dropped.
func (r *Registry) BroadcastExcept(id PeerID, msg *Message) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dropped := 0
	for pid, p := range r.peers {
		if pid == id {
			continue
		}
		if !p.Deliver(msg) {
			dropped++
		}
	}
	return dropped
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
