package chat

// Timeline is the ordered message sequence one session renders. It owns the
// optimistic reconciliation logic: a relayed message either replaces the
// pending entry it confirms, in place, or is appended as new.
//
// A Timeline belongs to a single session and is not safe for concurrent use;
// the session serializes access the same way a UI event loop would.
type Timeline struct {
	messages []Message
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Seed replaces the current contents with a history fetch result. History
// arrives oldest-first.
func (t *Timeline) Seed(history []Message) {
	t.messages = append(t.messages[:0], history...)
}

// Append adds a message to the end of the timeline. Used for optimistic
// local sends; relayed messages go through Reconcile instead.
func (t *Timeline) Append(msg Message) {
	t.messages = append(t.messages, msg)
}

// Reconcile merges an incoming relayed message into the timeline.
//
// If a pending entry from the same sender with the same text exists, the
// incoming message replaces it in place, so the entry keeps its position but
// gains the persisted id and authoritative timestamp. Otherwise the message
// is appended. The pending match is a content heuristic: it misfires only
// when one sender has two identical texts in flight at once.
//
// A message whose persisted id is already present is dropped, so a replayed
// relay after a reconnect does not render twice.
func (t *Timeline) Reconcile(incoming Message) {
	if !incoming.Pending() {
		for _, m := range t.messages {
			if m.ID == incoming.ID {
				return
			}
		}
	}

	for i, m := range t.messages {
		if m.Pending() && !m.Failed && m.SenderID == incoming.SenderID && m.Text == incoming.Text {
			t.messages[i] = incoming
			return
		}
	}

	t.messages = append(t.messages, incoming)
}

// MarkFailed flags the pending entry with the given id as failed to send.
// Failed entries are excluded from future reconciliation matches, since no
// echo will arrive for them.
func (t *Timeline) MarkFailed(pendingID string) bool {
	for i, m := range t.messages {
		if m.ID == pendingID && m.Pending() {
			t.messages[i].Failed = true
			return true
		}
	}
	return false
}

// Messages returns a copy of the rendered sequence.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of rendered entries.
func (t *Timeline) Len() int {
	return len(t.messages)
}
