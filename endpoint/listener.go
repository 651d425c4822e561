package endpoint

// AddListener fills the first empty slot in the fixed listener table with
// (session, cb), returning false if the table is full (spec.md §4.3: "fills
// the first empty slot, returns false if the table is full"). No
// duplicate-session detection is performed (spec.md §9's second open
// question): adding the same session twice leaves two live slots, and
// dispatch always finds the earlier one first.
func (ep *Endpoint) AddListener(session uint16, cb ListenerFunc) bool {
	for i := range ep.listeners {
		if !ep.listeners[i].active {
			ep.listeners[i] = listenerSlot{session: session, active: true, cb: cb}
			return true
		}
	}
	return false
}

// RemoveListener clears the first slot matching session, returning whether
// one was found. If session was registered more than once, only the first
// match is cleared — the source does not guard against duplicates and
// neither does this, per spec.md §9.
func (ep *Endpoint) RemoveListener(session uint16) bool {
	for i := range ep.listeners {
		if ep.listeners[i].active && ep.listeners[i].session == session {
			ep.listeners[i] = listenerSlot{}
			return true
		}
	}
	return false
}

// findListener linearly scans the table for a live slot matching session,
// returning nil if none is found. A slot's active flag is its liveness
// marker: session is only meaningful on an active slot.
func (ep *Endpoint) findListener(session uint16) *listenerSlot {
	for i := range ep.listeners {
		if ep.listeners[i].active && ep.listeners[i].session == session {
			return &ep.listeners[i]
		}
	}
	return nil
}
