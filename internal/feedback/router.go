package feedback

import (
	"context"
	"sync"
)

// Router tracks the caller's current location and implements the login
// redirect. Redirecting while already on the login path is a no-op.
type Router struct {
	mu         sync.Mutex
	loginPath  string
	current    string
	redirects  int
	onRedirect func(ctx context.Context)
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// OnRedirect runs after each effective redirect.
func OnRedirect(fn func(ctx context.Context)) RouterOption {
	return func(r *Router) {
		r.onRedirect = fn
	}
}

func NewRouter(loginPath string, opts ...RouterOption) *Router {
	if loginPath == "" {
		loginPath = "/login"
	}
	r := &Router{loginPath: loginPath, current: "/"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Navigate records a location change.
func (r *Router) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = path
}

// Location returns the current path.
func (r *Router) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Redirects returns how many login redirects happened.
func (r *Router) Redirects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redirects
}

func (r *Router) RedirectToLogin(ctx context.Context) {
	r.mu.Lock()
	if r.current == r.loginPath {
		r.mu.Unlock()
		return
	}
	r.current = r.loginPath
	r.redirects++
	hook := r.onRedirect
	r.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
}
