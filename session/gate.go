package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/plateful/plateful-client/cache"
	"github.com/plateful/plateful-client/types"
)

// State is the gate's admission decision for one view. Only Authorized
// renders the wrapped view; Pending and Redirecting render nothing, so a
// protected page never flashes before the identity settles.
type State int32

const (
	StatePending State = iota
	StateAuthorized
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateAuthorized:
		return "authorized"
	case StateRedirecting:
		return "redirecting"
	}
	return "pending"
}

const DefaultSignInPath = "/signin"

// Options configures one gate. RequiredRole narrows a protected view to
// one role; AnonymousOnly inverts the gate for sign-in/sign-up style
// views. IdentityFetch is registered on the identity key when the gate
// binds, so the first mounted gate also starts identity resolution.
type Options struct {
	RequiredRole  *types.Role
	AnonymousOnly bool
	SignInPath    string
	IdentityFetch types.FetchFunc
}

// Gate is the per-view admission state machine,
// Pending -> Authorized | Redirecting. It subscribes to the identity
// entry and re-evaluates strictly on (identity data, isValidating)
// transitions: unrelated notifications with an unchanged pair never
// re-issue a redirect.
type Gate struct {
	store  *cache.Store
	nav    Navigator
	logger types.Logger
	opts   Options

	mu           sync.Mutex
	state        State
	seeded       bool
	lastIdentity types.Identity
	lastLoading  bool
	unsubscribe  func()
}

func NewGate(store *cache.Store, nav Navigator, logger types.Logger, opts Options) *Gate {
	if opts.SignInPath == "" {
		opts.SignInPath = DefaultSignInPath
	}

	return &Gate{
		store:  store,
		nav:    nav,
		logger: logger,
		opts:   opts,
		state:  StatePending,
	}
}

// Bind subscribes the gate to the identity entry for the view's mount
// duration. Call Release on unmount.
func (g *Gate) Bind() error {
	unsubscribe, err := g.store.Subscribe(
		cache.IdentityKey,
		types.SubscribeOptions{Fetch: g.opts.IdentityFetch},
		g.evaluate,
	)
	if err != nil {
		return types.WrapError(err, "failed to bind session gate")
	}

	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	return nil
}

func (g *Gate) Release() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Admitted reports whether the wrapped view may render.
func (g *Gate) Admitted() bool {
	return g.State() == StateAuthorized
}

func (g *Gate) evaluate(entry types.CacheEntry) {
	identity, _ := entry.Data.(types.Identity)
	loading := !entry.Settled()

	g.mu.Lock()
	if g.seeded && identity == g.lastIdentity && loading == g.lastLoading {
		g.mu.Unlock()
		return
	}
	g.seeded = true
	g.lastIdentity = identity
	g.lastLoading = loading

	state, target := g.decide(identity, loading)
	g.state = state
	g.mu.Unlock()

	if target != "" {
		g.logger.Debug("Session gate redirecting",
			zap.String("target", target),
			zap.Bool("anonymous_only", g.opts.AnonymousOnly))
		g.nav.Navigate(target)
	}
}

// decide maps a settled identity onto an admission decision. A 401 or
// any other fetch error leaves identity nil and settled, which lands in
// the signed-out branch; reacting to expired sessions is this gate's
// job, not the fetch path's.
func (g *Gate) decide(identity types.Identity, loading bool) (State, string) {
	if loading {
		return StatePending, ""
	}

	if g.opts.AnonymousOnly {
		if identity == nil {
			return StateAuthorized, ""
		}
		return StateRedirecting, identity.Role().Home()
	}

	if identity == nil {
		return StateRedirecting, g.opts.SignInPath
	}

	if g.opts.RequiredRole != nil && identity.Role() != *g.opts.RequiredRole {
		// Authenticated but wrong role: send them home, not to sign-in.
		return StateRedirecting, identity.Role().Home()
	}

	return StateAuthorized, ""
}
