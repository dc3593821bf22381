// Package securefield tracks ownership of provider-hosted secure input
// surfaces. The hosted widget must be mounted at most once per checkout
// session; later acquirers attach to the existing mount instead of creating
// a second one.
package securefield

import "sync"

type Registry struct {
	mu     sync.Mutex
	mounts map[string]*mountState
}

type mountState struct {
	refs int
}

func NewRegistry() *Registry {
	return &Registry{mounts: make(map[string]*mountState)}
}

// Handle is one acquirer's claim on a session's mount. Release must be called
// on every exit path, including abandoned attempts.
type Handle struct {
	registry *Registry
	session  string
	once     sync.Once
}

// Acquire claims the mount for a session. The second return value reports
// whether an existing mount was attached to rather than created.
func (r *Registry) Acquire(session string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, attached := r.mounts[session]
	if !attached {
		state = &mountState{}
		r.mounts[session] = state
	}
	state.refs++
	return &Handle{registry: r, session: session}, attached
}

// Mounted reports whether any live handle exists for the session.
func (r *Registry) Mounted(session string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.mounts[session]
	return ok
}

// Release drops this handle's claim. The mount is torn down when the last
// handle releases. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.registry.mu.Lock()
		defer h.registry.mu.Unlock()

		state, ok := h.registry.mounts[h.session]
		if !ok {
			return
		}
		state.refs--
		if state.refs <= 0 {
			delete(h.registry.mounts, h.session)
		}
	})
}
