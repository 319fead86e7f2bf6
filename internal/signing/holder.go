package signing

import (
	"sync"
	"time"
)

// Holder keeps the active session context. Acquire pins the context for a
// whole batch: Set and Clear wait until every acquired context is released.
type Holder struct {
	mu    sync.RWMutex
	sc    *Context
	clock func() time.Time
}

func NewHolder() *Holder {
	return &Holder{clock: time.Now}
}

// Set installs sc after validating it. A missing expiry is read from the
// token when it is a JWT.
func (h *Holder) Set(sc Context) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	sc = sc.WithTokenExpiry()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sc = &sc
	return nil
}

// Clear drops the active context, e.g. on logout or shutdown.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sc = nil
}

// Active reports whether a context is installed and not expired.
func (h *Holder) Active() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sc != nil && !h.sc.Expired(h.clock())
}

// Acquire returns the active context and a release func that must be called
// once the caller is done signing with it. On error nothing is held.
func (h *Holder) Acquire() (Context, func(), error) {
	h.mu.RLock()
	if h.sc == nil {
		h.mu.RUnlock()
		return Context{}, nil, ErrNoSession
	}
	if h.sc.Expired(h.clock()) {
		h.mu.RUnlock()
		return Context{}, nil, ErrSessionExpired
	}
	var once sync.Once
	return *h.sc, func() { once.Do(h.mu.RUnlock) }, nil
}
