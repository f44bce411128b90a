package hub

import "sync"

// room is the routing structure for one conversation: the set of connections
// currently subscribed to it. Its mutex serializes membership changes
// against relays, so a relay never races a join or leave.
type room struct {
	mu      sync.Mutex
	members map[string]*Conn // keyed by connection id
}

func newRoom() *room {
	return &room{members: make(map[string]*Conn)}
}

// add inserts the connection and reports whether it was a new member.
func (r *room) add(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[c.ID]; ok {
		return false
	}
	r.members[c.ID] = c
	return true
}

// remove drops the connection and reports how many members remain.
func (r *room) remove(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, connID)
	return len(r.members)
}

// broadcast delivers payload to every current member, the sender included.
// Delivery to an empty room is a no-op.
func (r *room) broadcast(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, member := range r.members {
		member.Deliver(payload)
	}
}

func (r *room) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
