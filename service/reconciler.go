package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carboncopyrefi/frf-front/adapters/tokencodec"
	"github.com/carboncopyrefi/frf-front/authstore"
	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
)

// MessageBuilder formats the sign-in message for an address
type MessageBuilder interface {
	BuildMessage(address string, nonce core.Nonce, chains []int64) (string, error)
}

// Reconciler keeps the Auth Store in step with the wallet connection and the
// stored session token, and runs the manual sign-in and sign-out flows.
//
// Every pass and attempt takes a generation under mu. Results computed after
// a suspension point are committed only while that generation is still the
// latest and the wallet signal is unchanged.
type Reconciler struct {
	store   *authstore.Store
	tokens  ports.TokenStore
	remote  ports.SessionService
	wallet  ports.Wallet
	builder MessageBuilder
	events  ports.EventPublisher
	chains  []int64
	now     func() time.Time
	log     *slog.Logger

	mu     sync.Mutex
	gen    uint64
	signal core.WalletSignal
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithEvents publishes sign-outs through p
func WithEvents(p ports.EventPublisher) Option {
	return func(r *Reconciler) { r.events = p }
}

// NewReconciler creates a Reconciler. chains must hold at least one chain id
// for sign-in to succeed.
func NewReconciler(
	store *authstore.Store,
	tokens ports.TokenStore,
	remote ports.SessionService,
	wallet ports.Wallet,
	builder MessageBuilder,
	chains []int64,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		store:   store,
		tokens:  tokens,
		remote:  remote,
		wallet:  wallet,
		builder: builder,
		chains:  chains,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current Auth Store snapshot
func (r *Reconciler) State() core.AuthState {
	return r.store.State()
}

// begin opens a new generation for sig
func (r *Reconciler) begin(sig core.WalletSignal) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.signal = sig
	return r.gen
}

// join returns the generation a sign-in for sig runs under. A pass already
// in flight for the same signal keeps its generation and may still commit.
func (r *Reconciler) join(sig core.WalletSignal) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signal != sig {
		r.gen++
		r.signal = sig
	}
	return r.gen
}

// currentLocked requires r.mu; it reports whether gen may still write
func (r *Reconciler) currentLocked(gen uint64, sig core.WalletSignal) bool {
	return gen == r.gen && r.signal == sig
}

func (r *Reconciler) commit(gen uint64, sig core.WalletSignal, state core.AuthState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.currentLocked(gen, sig) {
		r.log.Debug("discarding stale reconciliation pass", "generation", gen, "latest", r.gen)
		return false
	}
	r.store.Set(state.Authenticated, state.Role)
	return true
}

// WalletChanged runs one reconciliation pass for a new wallet signal and
// returns the resulting state. A disconnect resets the store but keeps the
// stored token.
func (r *Reconciler) WalletChanged(ctx context.Context, sig core.WalletSignal) core.AuthState {
	gen := r.begin(sig)

	if !sig.Connected {
		r.commit(gen, sig, core.Unauthenticated)
		r.log.Info("wallet disconnected")
		return r.store.State()
	}

	state := r.derive(ctx, sig)
	if r.commit(gen, sig, state) {
		r.log.Info("reconciled auth state",
			"address", sig.Address,
			"authenticated", state.Authenticated,
			"role", string(state.Role))
	}
	return r.store.State()
}

// derive computes the state for a connected wallet
func (r *Reconciler) derive(ctx context.Context, sig core.WalletSignal) core.AuthState {
	token, err := r.tokens.GetToken(ctx)
	if errors.Is(err, core.ErrTokenNotFound) {
		return r.remoteState(ctx, sig)
	}
	if err != nil {
		r.log.Warn("failed to read stored token", "error", err)
		return core.Unauthenticated
	}

	claims, err := tokencodec.Check(token, r.now())
	switch {
	case errors.Is(err, core.ErrMalformedToken):
		r.log.Warn("deleting malformed session token", "error", err)
		r.dropToken(ctx)
		return r.remoteState(ctx, sig)
	case errors.Is(err, core.ErrTokenExpired):
		// Expiry requires an explicit sign-in; the cookie session is not consulted
		r.log.Info("session token expired", "subject", claims.Subject, "expiry", claims.Expiry)
		r.dropToken(ctx)
		return core.Unauthenticated
	}

	return core.AuthState{Authenticated: true, Role: core.CoerceRole(claims.Role)}
}

// remoteState asks the session service for a cookie session belonging to the
// connected address
func (r *Reconciler) remoteState(ctx context.Context, sig core.WalletSignal) core.AuthState {
	sess, err := r.remote.FetchSession(ctx)
	if err != nil {
		r.log.Warn("session restore failed", "error", err)
		return core.Unauthenticated
	}
	if sess == nil || !core.SameAccount(sess.Address, sig.Address) {
		return core.Unauthenticated
	}
	return core.AuthState{Authenticated: true, Role: core.RoleUser}
}

func (r *Reconciler) dropToken(ctx context.Context) {
	if err := r.tokens.DeleteToken(ctx); err != nil {
		r.log.Warn("failed to delete session token", "error", err)
	}
}

// SignIn proves ownership of the connected wallet and stores the issued
// token. On any failure the Auth Store is left untouched.
func (r *Reconciler) SignIn(ctx context.Context) (core.AuthState, error) {
	sig := r.wallet.Signal()
	if !sig.Connected {
		return r.store.State(), core.ErrNotConnected
	}
	gen := r.join(sig)

	fail := func(err error) (core.AuthState, error) {
		r.log.Warn("sign-in failed", "address", sig.Address, "error", err)
		return r.store.State(), err
	}

	nonce, err := r.remote.RequestNonce(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to get nonce: %w", err))
	}

	message, err := r.builder.BuildMessage(sig.Address, nonce, r.chains)
	if err != nil {
		return fail(fmt.Errorf("failed to build message: %w", err))
	}

	signature, err := r.wallet.SignMessage(ctx, message)
	if err != nil {
		return fail(fmt.Errorf("failed to sign message: %w", err))
	}

	res, ok, err := r.remote.Verify(ctx, message, signature)
	if err != nil {
		return fail(fmt.Errorf("failed to verify message: %w", err))
	}
	if !ok {
		return fail(core.ErrVerificationRejected)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.currentLocked(gen, sig) {
		r.log.Info("discarding superseded sign-in", "address", sig.Address)
		return r.store.State(), core.ErrStaleAttempt
	}
	if err := r.tokens.SetToken(ctx, res.Token); err != nil {
		return fail(fmt.Errorf("failed to store token: %w", err))
	}
	// Retire any pass for this signal that read the store before the token existed
	r.gen++
	state := r.store.Set(true, core.CoerceRole(res.Role))
	r.log.Info("signed in", "address", sig.Address, "role", string(state.Role))
	return state, nil
}

// SignOut ends the remote session, then always forgets the local credential.
// A failed remote call is logged and otherwise ignored.
func (r *Reconciler) SignOut(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	r.mu.Unlock()

	var subject, tokenID string
	if token, err := r.tokens.GetToken(ctx); err == nil {
		if claims, err := tokencodec.Decode(token); err == nil {
			subject, tokenID = claims.Subject, claims.ID
		}
	}

	if ok, err := r.remote.SignOut(ctx); err != nil || !ok {
		r.log.Warn("remote sign-out failed", "error", errors.Join(core.ErrSignOutPartialFailure, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Bumped again so a pass that started during the remote call cannot write
	r.gen++
	err := r.tokens.DeleteToken(ctx)
	r.store.Reset()

	if r.events != nil && subject != "" {
		if perr := r.events.PublishSignOut(ctx, subject, tokenID); perr != nil {
			r.log.Warn("failed to publish sign-out event", "error", perr)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Session reports the active session: the local token when present and
// unexpired, otherwise the cookie session. Bad or expired tokens are deleted.
func (r *Reconciler) Session(ctx context.Context) (*core.RemoteSession, error) {
	token, err := r.tokens.GetToken(ctx)
	switch {
	case err == nil:
		claims, cerr := tokencodec.Check(token, r.now())
		if errors.Is(cerr, core.ErrTokenExpired) {
			r.dropToken(ctx)
			return nil, nil
		}
		if cerr == nil {
			var chainID int64
			if len(r.chains) > 0 {
				chainID = r.chains[0]
			}
			return &core.RemoteSession{Address: claims.Subject, ChainID: chainID}, nil
		}
		r.dropToken(ctx)
	case !errors.Is(err, core.ErrTokenNotFound):
		return nil, err
	}

	return r.remote.FetchSession(ctx)
}

// Require checks that the current state holds one of roles. With no roles
// any authenticated participant passes.
func (r *Reconciler) Require(roles ...core.Role) error {
	state := r.store.State()
	if !state.Authenticated {
		return core.ErrNotAuthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if state.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", state.Role, core.ErrForbidden)
}

// Authorization returns the bearer header value for protected calls
func (r *Reconciler) Authorization(ctx context.Context) (string, error) {
	if err := r.Require(); err != nil {
		return "", err
	}
	token, err := r.tokens.GetToken(ctx)
	if err != nil {
		return "", err
	}
	if _, err := tokencodec.Check(token, r.now()); err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// Watch runs a pass for every change of signal until ctx is done or signals
// closes. Repeats of the last signal are ignored. With a positive settle
// delay bursts of signals collapse into one pass for the last of them.
func (r *Reconciler) Watch(ctx context.Context, signals <-chan core.WalletSignal, settle time.Duration) error {
	var d *Debouncer
	if settle > 0 {
		d = NewDebouncer(settle)
		defer d.Stop()
	}

	var last *core.WalletSignal
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if last != nil && *last == sig {
				continue
			}
			last = &sig
			if d == nil {
				r.WalletChanged(ctx, sig)
				continue
			}
			d.Schedule(ctx, func(ctx context.Context) {
				r.WalletChanged(ctx, sig)
			})
		}
	}
}

// PublishChanges forwards every Auth Store change to p
func PublishChanges(store *authstore.Store, p ports.EventPublisher, log *slog.Logger) (unsubscribe func()) {
	return store.Subscribe(func(state core.AuthState) {
		if err := p.PublishAuthChanged(context.Background(), state); err != nil {
			log.Warn("failed to publish auth change", "error", err)
		}
	})
}
