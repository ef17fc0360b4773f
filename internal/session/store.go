package session

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"storefront-api/internal/domain"
	"storefront-api/internal/provider"
)

// State names the store's position in the auth lifecycle.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
)

const (
	defaultStepTimeout    = 2500 * time.Millisecond
	defaultProfileTimeout = 2500 * time.Millisecond
)

// authAPI is the slice of the provider client the store needs.
type authAPI interface {
	SignIn(ctx context.Context, email, password string) (*domain.SessionUser, *domain.Session, error)
	SignUp(ctx context.Context, in provider.SignUpInput) (*domain.SessionUser, *domain.Session, error)
	VerifyOTP(ctx context.Context, email, token, otpType string) (*domain.SessionUser, *domain.Session, error)
	SessionUser(ctx context.Context, accessToken string) (*domain.SessionUser, *domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Profile(ctx context.Context, userID, accessToken string) (*domain.SessionUser, error)
}

// Snapshot is what subscribers observe. User and Authenticated always agree:
// Authenticated is true iff User is non-nil.
type Snapshot struct {
	User          *domain.SessionUser
	Authenticated bool
}

// Store owns the current user for one application root. It is the sole
// writer of that state; every mutation sets user and the authenticated flag
// together.
type Store struct {
	mu         sync.Mutex
	user       *domain.SessionUser
	session    *domain.Session
	state      State
	recovering bool
	subs       map[int]func(Snapshot)
	nextSubID  int

	api    authAPI
	tokens TokenCache
	cache  SessionCache
	logger *log.Logger

	stepTimeout    time.Duration
	profileTimeout time.Duration
}

// New builds an unauthenticated Store. tokens and cache may be nil; the
// corresponding recovery paths are then skipped.
func New(api authAPI, tokens TokenCache, cache SessionCache, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		state:          StateUnauthenticated,
		subs:           make(map[int]func(Snapshot)),
		api:            api,
		tokens:         tokens,
		cache:          cache,
		logger:         logger,
		stepTimeout:    defaultStepTimeout,
		profileTimeout: defaultProfileTimeout,
	}
}

// SignIn authenticates with the provider. On success the store is updated
// atomically and the access token persisted best-effort. Credential
// rejections surface as AuthError; the message never distinguishes an
// unknown email from a wrong password.
func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.SessionUser, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &domain.ValidationError{Field: "email", Message: "email is required"}
	}
	if password == "" {
		return nil, &domain.ValidationError{Field: "password", Message: "password is required"}
	}

	s.setTransient(StateAuthenticating)
	user, sess, err := s.api.SignIn(ctx, email, password)
	if err != nil {
		s.setTransient(StateUnauthenticated)
		return nil, err
	}

	user = s.enrich(ctx, user, sess)
	s.commitSession(user, sess)
	return user, nil
}

// SignUp registers a new account. When the provider withholds a session
// (email verification pending) the store stays unauthenticated and the
// caller routes the user to the verification step.
func (s *Store) SignUp(ctx context.Context, in provider.SignUpInput) (*domain.SessionUser, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return nil, &domain.ValidationError{Field: "email", Message: "email is required"}
	}
	if in.Password == "" {
		return nil, &domain.ValidationError{Field: "password", Message: "password is required"}
	}

	s.setTransient(StateAuthenticating)
	user, sess, err := s.api.SignUp(ctx, in)
	if err != nil {
		s.setTransient(StateUnauthenticated)
		return nil, err
	}
	if sess == nil {
		s.setTransient(StateUnauthenticated)
		return user, nil
	}

	user = s.enrich(ctx, user, sess)
	s.commitSession(user, sess)
	return user, nil
}

// VerifyOTP confirms an emailed code and, on success, authenticates like a
// sign-in.
func (s *Store) VerifyOTP(ctx context.Context, email, token, otpType string) (*domain.SessionUser, error) {
	s.setTransient(StateAuthenticating)
	user, sess, err := s.api.VerifyOTP(ctx, email, token, otpType)
	if err != nil || sess == nil {
		s.setTransient(StateUnauthenticated)
		if err == nil {
			err = &domain.AuthError{Message: "Invalid or expired code"}
		}
		return nil, err
	}
	user = s.enrich(ctx, user, sess)
	s.commitSession(user, sess)
	return user, nil
}

// Logout clears local state unconditionally. The remote invalidation and
// cache cleanup are best-effort; logging out locally always succeeds.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	token := ""
	if s.session != nil {
		token = s.session.AccessToken
	}
	s.mu.Unlock()

	if token != "" {
		callCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
		if err := s.api.SignOut(callCtx, token); err != nil {
			s.logger.Printf("session store: remote signout error=%v", err)
		}
		cancel()
	}
	if s.tokens != nil {
		if err := s.tokens.Clear(); err != nil {
			s.logger.Printf("session store: token cache clear error=%v", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Clear(); err != nil {
			s.logger.Printf("session store: session cache clear error=%v", err)
		}
	}
	s.set(nil, nil)
}

// RecoverSession re-establishes a user at startup. Concurrent invocations
// short-circuit (the guard does not queue a second run), and a store that is
// already authenticated is left untouched so a slow recovery can never undo
// a faster explicit sign-in. Each step is independently time-boxed and the
// method never returns an error: ending unauthenticated is the normal
// outcome for a first-time visitor.
func (s *Store) RecoverSession(ctx context.Context) {
	s.mu.Lock()
	if s.recovering || s.user != nil {
		s.mu.Unlock()
		return
	}
	s.recovering = true
	s.state = StateAuthenticating
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.recovering = false
		if s.user == nil {
			s.state = StateUnauthenticated
		}
		s.mu.Unlock()
	}()

	if s.recoverFromToken(ctx) {
		return
	}
	s.recoverFromCache(ctx)
}

// recoverFromToken is step one: replay a previously persisted token against
// the provider. On success the minimal user is committed immediately and
// enrichment continues in the background.
func (s *Store) recoverFromToken(ctx context.Context) bool {
	if s.tokens == nil {
		return false
	}
	token, err := s.tokens.Load()
	if err != nil {
		s.logger.Printf("session store: token cache load error=%v", err)
		return false
	}
	if token == "" {
		return false
	}

	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()
	user, sess, err := s.api.SessionUser(stepCtx, token)
	if err != nil {
		s.logger.Printf("session store: token recovery error=%v", err)
		return false
	}
	if !s.setIfIdle(user, sess) {
		return true
	}

	// Detached enrichment: profile fetch and session-cache re-establishment
	// are not allowed to block or fail recovery.
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), s.profileTimeout)
		defer cancel()
		if profile, err := s.api.Profile(bgCtx, user.ID, sess.AccessToken); err == nil {
			s.updateUserIfCurrent(user.ID, profile)
		} else {
			s.logger.Printf("session store: profile enrichment error=%v", err)
		}
		if s.cache != nil {
			if err := s.cache.Set(sess, s.User()); err != nil {
				s.logger.Printf("session store: session cache set error=%v", err)
			}
		}
	}()
	return true
}

// recoverFromCache is step two: ask the local session-caching layer
// directly.
func (s *Store) recoverFromCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	type cached struct {
		sess *domain.Session
		user *domain.SessionUser
	}
	done := make(chan cached, 1)
	go func() {
		sess, user, err := s.cache.Get()
		if err != nil {
			if err != domain.ErrNotFound {
				s.logger.Printf("session store: session cache get error=%v", err)
			}
			done <- cached{}
			return
		}
		done <- cached{sess: sess, user: user}
	}()

	select {
	case got := <-done:
		if got.sess == nil {
			return
		}
		user := got.user
		if user == nil {
			stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
			defer cancel()
			var err error
			user, _, err = s.api.SessionUser(stepCtx, got.sess.AccessToken)
			if err != nil {
				s.logger.Printf("session store: cached session validation error=%v", err)
				return
			}
		}
		s.setIfIdle(user, got.sess)
	case <-time.After(s.stepTimeout):
		s.logger.Printf("session store: session cache lookup timed out")
	case <-ctx.Done():
	}
}

// User returns the current user, or nil.
func (s *Store) User() *domain.SessionUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is set.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccessToken returns the current session token, or empty.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// Subscribe registers a callback invoked after every committed transition.
// The returned function cancels the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// enrich persists the token and attempts the best-effort profile fetch with
// its own timeout. Failures fall back to the provider-derived user.
func (s *Store) enrich(ctx context.Context, user *domain.SessionUser, sess *domain.Session) *domain.SessionUser {
	if sess == nil {
		return user
	}
	if s.tokens != nil {
		if err := s.tokens.Save(sess.AccessToken); err != nil {
			s.logger.Printf("session store: token cache save error=%v", err)
		}
	}
	profCtx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	defer cancel()
	profile, err := s.api.Profile(profCtx, user.ID, sess.AccessToken)
	if err != nil {
		s.logger.Printf("session store: profile fetch error=%v", err)
		return user
	}
	return profile
}

// commitSession stores the session, updates the caches best-effort, and
// publishes the authenticated state.
func (s *Store) commitSession(user *domain.SessionUser, sess *domain.Session) {
	if s.cache != nil && sess != nil {
		if err := s.cache.Set(sess, user); err != nil {
			s.logger.Printf("session store: session cache set error=%v", err)
		}
	}
	s.set(user, sess)
}

// set atomically replaces user and session. A nil user always means
// unauthenticated; a non-nil user always means authenticated.
func (s *Store) set(user *domain.SessionUser, sess *domain.Session) {
	s.mu.Lock()
	s.user = user
	s.session = sess
	if user != nil {
		s.state = StateAuthenticated
	} else {
		s.state = StateUnauthenticated
	}
	snapshot := Snapshot{User: user, Authenticated: user != nil}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

// setIfIdle commits a recovered session only when no user is set yet, so
// recovery never clobbers an explicit sign-in that won the race. Returns
// false when the store was already authenticated.
func (s *Store) setIfIdle(user *domain.SessionUser, sess *domain.Session) bool {
	s.mu.Lock()
	if s.user != nil {
		s.mu.Unlock()
		return false
	}
	s.user = user
	s.session = sess
	s.state = StateAuthenticated
	snapshot := Snapshot{User: user, Authenticated: true}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
	return true
}

// setTransient flips the lifecycle state without touching user/session.
func (s *Store) setTransient(state State) {
	s.mu.Lock()
	if s.user == nil {
		s.state = state
	}
	s.mu.Unlock()
}

// updateUserIfCurrent swaps in an enriched profile as long as the same user
// is still signed in.
func (s *Store) updateUserIfCurrent(userID string, profile *domain.SessionUser) {
	s.mu.Lock()
	if s.user == nil || s.user.ID != userID {
		s.mu.Unlock()
		return
	}
	s.user = profile
	snapshot := Snapshot{User: profile, Authenticated: true}
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}
