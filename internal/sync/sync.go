// Package sync owns the authoritative in-memory AppState and keeps it
// consistent with the remote document: local mutations are coalesced by a
// debounce timer into whole-document writes, remote change notifications are
// merged back in, and each session's identity is reconciled against the team
// roster on sign-in.
//
// Concurrent writers from two deployments race on the whole document; the
// last write to land remotely wins. The only defense is that each
// synchronizer suppresses re-processing its own echo via the last-known
// snapshot marker.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omegaop/backoffice/internal/auth"
	"github.com/omegaop/backoffice/internal/models"
	"github.com/omegaop/backoffice/internal/store"
)

// Reserved super-admin identity. A session with this email that matches no
// roster entry is provisioned as the fixed-id CEO user.
const (
	SuperAdminEmail = "ceo@omegaop.com.br"
	CEOUserID       = "user-ceo-omega"
	ceoDisplayName  = "CEO"
	ceoRole         = "CEO"
)

// DefaultDebounce is the window that collapses rapid successive edits into
// one remote write.
const DefaultDebounce = 1500 * time.Millisecond

// fallbackDisplayName labels provisioned users with no usable profile data.
const fallbackDisplayName = "Novo Usuário"

// ErrSetupRequired is returned by Bootstrap when the backing schema is
// missing. The application must not proceed past loading; the operator
// provisions the schema out of band and restarts.
var ErrSetupRequired = errors.New("backing schema missing, setup required")

// Status is the connectivity state surfaced to sessions.
type Status string

const (
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusError         Status = "error"
	StatusSetupRequired Status = "setup_required"
)

// StateStore is the remote document contract the synchronizer writes through.
type StateStore interface {
	Load(ctx context.Context) (*models.StateDocument, error)
	Save(ctx context.Context, state models.AppState) error
	Watch(ctx context.Context) (<-chan models.AppState, error)
}

// SessionFeed delivers auth session-change events.
type SessionFeed interface {
	Subscribe() (<-chan auth.SessionEvent, func())
}

// Synchronizer is the state core. All exported methods are safe for
// concurrent use; mutations are copy-on-write so snapshots handed to readers
// stay immutable.
type Synchronizer struct {
	store    StateStore
	log      *logrus.Entry
	debounce time.Duration
	onCommit func(snapshot []byte)

	mu      sync.Mutex
	state   models.AppState
	last    []byte // canonical serialization of the last known remote state
	status  Status
	current *models.User
	loaded  bool
	dirty   bool
	gen     uint64 // bumped on every mutation; guards the dirty flag across saves
	timer   *time.Timer

	cancelWatch context.CancelFunc
	releaseAuth func()
	closed      chan struct{}
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(s *Synchronizer) { s.debounce = d }
}

// WithCommitHook registers a callback invoked with the canonical snapshot
// after every committed save and every adopted remote update. Used to fan
// snapshots out to websocket sessions.
func WithCommitHook(hook func(snapshot []byte)) Option {
	return func(s *Synchronizer) { s.onCommit = hook }
}

// New creates a Synchronizer over the given store.
func New(st StateStore, log *logrus.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:    st,
		log:      log.WithField("component", "sync"),
		debounce: DefaultDebounce,
		status:   StatusConnecting,
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap loads the remote document, reconciles the optional session, and
// starts the realtime subscription. Returns ErrSetupRequired when the
// backing schema is missing; any other load failure degrades to the seeded
// defaults with an error status.
func (s *Synchronizer) Bootstrap(ctx context.Context, session *auth.Session) error {
	doc, err := s.store.Load(ctx)
	s.mu.Lock()
	switch {
	case errors.Is(err, store.ErrSchemaMissing):
		s.status = StatusSetupRequired
		s.mu.Unlock()
		return ErrSetupRequired
	case errors.Is(err, store.ErrNotFound):
		s.state = models.SeedState(time.Now())
		s.last = nil
		s.status = StatusConnected
	case err != nil:
		s.log.WithError(err).Error("initial load failed")
		s.state = models.SeedState(time.Now())
		s.last = nil
		s.status = StatusError
	default:
		s.state = doc.Data
		s.last = canonical(doc.Data)
		s.status = StatusConnected
	}
	s.loaded = true
	s.mu.Unlock()

	if session != nil {
		if _, err := s.Reconcile(ctx, session); err != nil {
			s.log.WithError(err).Warn("identity reconciliation write failed")
		}
	}

	wctx, cancel := context.WithCancel(context.Background())
	updates, err := s.store.Watch(wctx)
	if err != nil {
		cancel()
		s.log.WithError(err).Warn("realtime subscription unavailable")
		return nil
	}
	s.mu.Lock()
	s.cancelWatch = cancel
	s.mu.Unlock()

	go func() {
		for snap := range updates {
			s.ApplyRemote(snap)
		}
	}()
	return nil
}

// AttachSessionFeed subscribes to auth events: SIGNED_IN reconciles the new
// session, SIGNED_OUT clears the current identity. The subscription is
// released by Close.
func (s *Synchronizer) AttachSessionFeed(feed SessionFeed) {
	events, release := feed.Subscribe()
	s.mu.Lock()
	s.releaseAuth = release
	s.mu.Unlock()

	go func() {
		for ev := range events {
			switch ev.Type {
			case auth.SignedIn:
				if _, err := s.Reconcile(context.Background(), ev.Session); err != nil {
					s.log.WithError(err).Warn("reconciliation on sign-in failed")
				}
			case auth.SignedOut:
				s.mu.Lock()
				s.current = nil
				s.mu.Unlock()
			}
		}
	}()
}

// Close releases the realtime and auth subscriptions and stops the debounce
// timer. A pending dirty state is flushed best-effort. Close is idempotent.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return
	default:
		close(s.closed)
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	cancel := s.cancelWatch
	release := s.releaseAuth
	s.cancelWatch = nil
	s.releaseAuth = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if release != nil {
		release()
	}

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := s.Flush(ctx); err != nil {
		s.log.WithError(err).Warn("final flush failed")
	}
}

// State returns the current AppState snapshot. Mutations are copy-on-write,
// so the returned value is safe to read and serialize concurrently.
func (s *Synchronizer) State() models.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentUser returns a copy of the resolved identity, or nil when no
// session is active.
func (s *Synchronizer) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// Status returns the connectivity state.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ---------------------------------------------------------------------------
// Outgoing sync
// ---------------------------------------------------------------------------

// apply runs a copy-on-write mutation, marks the state dirty, and resets the
// debounce timer.
func (s *Synchronizer) apply(mutate func(st *models.AppState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.state)
	s.markDirtyLocked()
}

// applyNow runs a mutation and flushes immediately, bypassing the debounce.
// Used by flows whose result must be visible to other sessions without delay.
func (s *Synchronizer) applyNow(ctx context.Context, mutate func(st *models.AppState)) error {
	s.mu.Lock()
	mutate(&s.state)
	s.gen++
	s.dirty = true
	s.mu.Unlock()
	return s.Flush(ctx)
}

func (s *Synchronizer) markDirtyLocked() {
	s.gen++
	s.dirty = true
	if !s.loaded {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.Flush(context.Background()); err != nil {
			s.log.WithError(err).Warn("debounced save failed")
		}
	})
}

// Flush writes the current state remotely if it is dirty and differs from
// the last known remote snapshot. Identical state is an idempotent no-op.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snap := canonical(s.state)
	if bytes.Equal(snap, s.last) {
		s.dirty = false
		s.mu.Unlock()
		return nil
	}
	candidate := s.state
	gen := s.gen
	s.mu.Unlock()

	err := s.store.Save(ctx, candidate)

	s.mu.Lock()
	if err != nil {
		s.status = StatusError
		s.mu.Unlock()
		return err
	}
	s.status = StatusConnected
	s.last = snap
	if s.gen == gen {
		// No mutation landed during the save; otherwise stay dirty so the
		// next cycle picks it up.
		s.dirty = false
	}
	hook := s.onCommit
	s.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Incoming sync
// ---------------------------------------------------------------------------

// ApplyRemote merges a remote change notification. A payload identical to
// the last known snapshot is this session's own echo and is ignored;
// anything else replaces team, db, and availableRoles and re-resolves the
// current user against the new roster.
func (s *Synchronizer) ApplyRemote(next models.AppState) {
	snap := canonical(next)

	s.mu.Lock()
	if bytes.Equal(snap, s.last) {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.last = snap
	if s.current != nil {
		if u := findUser(next.Team, s.current.AuthID, s.current.ID, s.current.Email); u != nil {
			s.current = u
		}
		// When the user is no longer present the previously resolved
		// identity is retained unchanged.
	}
	hook := s.onCommit
	s.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
}

// ---------------------------------------------------------------------------
// Identity reconciliation
// ---------------------------------------------------------------------------

// Reconcile matches the session identity to a roster entry, preferring the
// provider subject id over email. When no entry matches, the reserved
// super-admin email provisions the fixed-id CEO user prepended to the
// roster; any other identity provisions a new manager appended to it. Both
// provisioning paths persist immediately. Exactly one branch fires.
func (s *Synchronizer) Reconcile(ctx context.Context, session *auth.Session) (*models.User, error) {
	s.mu.Lock()

	var match *models.User
	for i := range s.state.Team {
		if s.state.Team[i].AuthID != "" && s.state.Team[i].AuthID == session.Subject {
			match = &s.state.Team[i]
			break
		}
	}
	if match == nil {
		for i := range s.state.Team {
			if strings.EqualFold(s.state.Team[i].Email, session.Email) {
				match = &s.state.Team[i]
				break
			}
		}
	}

	if match != nil {
		u := *match
		s.current = &u
		s.mu.Unlock()
		return &u, nil
	}

	if strings.EqualFold(session.Email, SuperAdminEmail) {
		ceo := models.User{
			ID:         CEOUserID,
			AuthID:     session.Subject,
			Name:       ceoDisplayName,
			Email:      session.Email,
			Role:       ceoRole,
			IsActive:   true,
			IsApproved: true,
		}
		// Prepend, replacing any stale record holding the reserved id.
		next := make([]models.User, 0, len(s.state.Team)+1)
		next = append(next, ceo)
		for _, u := range s.state.Team {
			if u.ID != CEOUserID {
				next = append(next, u)
			}
		}
		s.state.Team = next
		s.current = &ceo
		s.gen++
		s.dirty = true
		s.mu.Unlock()
		s.log.WithField("email", session.Email).Info("provisioned super-admin user")
		return &ceo, s.Flush(ctx)
	}

	user := models.User{
		ID:         uuid.NewString(),
		AuthID:     session.Subject,
		Name:       resolveDisplayName(session),
		Email:      session.Email,
		Role:       models.DefaultRole,
		IsActive:   true,
		IsApproved: true, // self-service sign-up is immediately active
	}
	next := make([]models.User, len(s.state.Team), len(s.state.Team)+1)
	copy(next, s.state.Team)
	s.state.Team = append(next, user)
	s.current = &user
	s.gen++
	s.dirty = true
	s.mu.Unlock()
	s.log.WithField("email", session.Email).Info("provisioned new team member")
	return &user, s.Flush(ctx)
}

// resolveDisplayName picks the provisioned name: profile display name, then
// the email local part, then a generic label.
func resolveDisplayName(session *auth.Session) string {
	if name := strings.TrimSpace(session.DisplayName); name != "" {
		return name
	}
	if at := strings.Index(session.Email, "@"); at > 0 {
		return session.Email[:at]
	}
	return fallbackDisplayName
}

// findUser resolves a roster entry by auth subject, id, or email.
func findUser(team []models.User, authID, id, email string) *models.User {
	for i := range team {
		if authID != "" && team[i].AuthID == authID {
			u := team[i]
			return &u
		}
	}
	for i := range team {
		if team[i].ID == id {
			u := team[i]
			return &u
		}
	}
	for i := range team {
		if email != "" && strings.EqualFold(team[i].Email, email) {
			u := team[i]
			return &u
		}
	}
	return nil
}

// canonical returns the serialized form used for snapshot comparison. Map
// keys serialize in sorted order, so equal states always produce equal bytes.
func canonical(state models.AppState) []byte {
	b, err := json.Marshal(state)
	if err != nil {
		// AppState contains only marshalable types; this cannot fire at
		// runtime with well-formed state.
		panic(err)
	}
	return b
}
