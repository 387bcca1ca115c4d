package chat

import (
	"strings"
	"sync"
)

// Registry tracks which live connections are guests and which are admins.
// A connection id is in at most one of the two sets at any instant, and the
// only transition is guest to admin, exactly once. All methods are safe for
// concurrent use.
type Registry struct {
	mu     sync.Mutex
	guests map[string]string
	order  []string // guest insertion order, keeps snapshots deterministic
	admins map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		guests: make(map[string]string),
		admins: make(map[string]struct{}),
	}
}

// GuestLabel derives the display label for a connection id: the last four
// characters upper-cased, prefixed "Guest-".
func GuestLabel(connID string) string {
	tail := connID
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return "Guest-" + strings.ToUpper(tail)
}

// RegisterGuest records connID as a guest and returns its label. Calling it
// twice for the same id is harmless; the entry keeps its original position.
func (r *Registry) RegisterGuest(connID string) string {
	label := GuestLabel(connID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.guests[connID]; !ok {
		r.order = append(r.order, connID)
	}
	r.guests[connID] = label
	return label
}

// RemoveGuest removes connID from the guest set, returning its prior label
// and whether it was present.
func (r *Registry) RemoveGuest(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeGuestLocked(connID)
}

func (r *Registry) removeGuestLocked(connID string) (string, bool) {
	label, ok := r.guests[connID]
	if !ok {
		return "", false
	}
	delete(r.guests, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return label, true
}

// Promote moves connID from the guest set into the admin set in one step, so
// the registry never observes a connection in both. It returns the prior
// guest label and whether a guest entry existed. Promoting an id that is
// already an admin is a no-op.
func (r *Registry) Promote(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	label, wasGuest := r.removeGuestLocked(connID)
	r.admins[connID] = struct{}{}
	return label, wasGuest
}

// RemoveAdmin removes connID from the admin set, reporting whether it was
// present.
func (r *Registry) RemoveAdmin(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.admins[connID]
	delete(r.admins, connID)
	return ok
}

func (r *Registry) IsAdmin(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.admins[connID]
	return ok
}

func (r *Registry) IsGuest(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.guests[connID]
	return ok
}

// LabelFor returns the guest label for connID, if registered.
func (r *Registry) LabelFor(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	label, ok := r.guests[connID]
	return label, ok
}

func (r *Registry) AdminCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.admins)
}

func (r *Registry) GuestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guests)
}

// AllGuests returns a snapshot of the current guests in insertion order.
func (r *Registry) AllGuests() []GuestPresence {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]GuestPresence, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, GuestPresence{ID: id, Label: r.guests[id]})
	}
	return out
}
