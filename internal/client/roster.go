package client

import (
	"slices"
	"sync"

	"github.com/BioHazard786/warpcall/internal/signaling"
)

// Roster is a client's view of who else is online, rebuilt from
// update-user-list and remove-user messages.
type Roster struct {
	mu    sync.RWMutex
	me    signaling.PeerID
	peers map[signaling.PeerID]struct{}
}

func NewRoster() *Roster {
	return &Roster{peers: make(map[signaling.PeerID]struct{})}
}

// Apply merges a user list. The private list sent on connect carries Me
// and replaces the roster; a join announcement only adds.
func (r *Roster) Apply(p *signaling.UserListPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Me != "" {
		r.me = p.Me
		clear(r.peers)
	}
	for _, id := range p.Users {
		if id == "" || id == r.me {
			continue
		}
		r.peers[id] = struct{}{}
	}
}

// Remove drops id and reports whether it was known.
func (r *Roster) Remove(id signaling.PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	return true
}

// Me returns this client's own id, empty until the server assigns it.
func (r *Roster) Me() signaling.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.me
}

func (r *Roster) Contains(id signaling.PeerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[id]
	return ok
}

// Peers returns the other online peers in sorted order.
func (r *Roster) Peers() []signaling.PeerID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]signaling.PeerID, 0, len(r.peers))
	for id := range r.peers {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
