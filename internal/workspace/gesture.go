package workspace

import (
	"errors"
	"fmt"
	"sync"
)

// ErrGestureBusy is returned by Acquire while another tool holds the map
// gestures.
var ErrGestureBusy = errors.New("map gestures are held by another tool")

// GestureArbiter hands out the map's input gestures to one tool at a time.
// While a lease is held, pan and zoom are suspended and clicks belong to the
// holder.
type GestureArbiter struct {
	mu     sync.Mutex
	holder string
	lease  *Lease
}

// Lease is a claim on the map gestures. Release is idempotent.
type Lease struct {
	arbiter *GestureArbiter
	owner   string
	once    sync.Once
}

// Acquire claims the gestures for owner. Acquiring again for the current
// holder returns its existing lease.
func (a *GestureArbiter) Acquire(owner string) (*Lease, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lease != nil {
		if a.holder == owner {
			return a.lease, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrGestureBusy, a.holder)
	}
	a.holder = owner
	a.lease = &Lease{arbiter: a, owner: owner}
	return a.lease, nil
}

// Release gives the gestures back and restores navigation.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		a := l.arbiter
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.lease == l {
			a.lease = nil
			a.holder = ""
		}
	})
}

// Owner returns the tool the lease was granted to.
func (l *Lease) Owner() string { return l.owner }

// NavigationEnabled reports whether pan and zoom are available, i.e. no
// tool holds a lease.
func (a *GestureArbiter) NavigationEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lease == nil
}

// Holder returns the current lease owner, or "" when navigation is enabled.
func (a *GestureArbiter) Holder() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}
