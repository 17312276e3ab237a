// Package session holds the signed-in user for a client and keeps a private
// data namespace per user in one persisted document.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/internal/services"
	appErr "github.com/finsync/engine/pkg/errors"
	"github.com/finsync/engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Phase int

const (
	Anonymous Phase = iota
	Authenticating
	Authenticated
)

func (p Phase) String() string {
	switch p {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrBusy             = errors.New("session: authentication already in progress")
)

// Backend is the slice of the server API the holder needs.
type Backend interface {
	Register(ctx context.Context, req types.RegisterRequest) (*services.AuthResult, error)
	Login(ctx context.Context, email, password, sessionID string) (*services.AuthResult, error)
	Validate(ctx context.Context, userID, token string) (*models.User, error)
	Logout(ctx context.Context, userID string) error
}

type Manager struct {
	mu      sync.Mutex
	backend Backend
	store   Store
	phase   Phase
	state   *State
	newID   func() string
	log     *zap.Logger
}

func NewManager(backend Backend, store Store) *Manager {
	return &Manager{
		backend: backend,
		store:   store,
		state:   newState(),
		newID:   uuid.NewString,
		log:     logger.Named("session"),
	}
}

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != Authenticated || m.state.Current == nil {
		return nil
	}
	u := *m.state.Current.User
	return &u
}

// Token returns the bearer token of the current session.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != Authenticated || m.state.Current == nil {
		return ""
	}
	return m.state.Current.SessionToken
}

// Start loads persisted state and re-validates the stored session.
// A session the server rejects is wiped; cached namespaces stay until
// a different user signs in. A transport failure leaves the document
// untouched and the holder Anonymous.
func (m *Manager) Start(ctx context.Context) error {
	st, err := m.store.Load()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.state = st
	m.phase = Anonymous
	cur := st.Current
	m.mu.Unlock()

	if cur == nil || cur.User == nil || cur.User.ID == "" {
		return m.wipeCurrent()
	}

	u, err := m.backend.Validate(ctx, cur.User.ID, cur.SessionToken)
	if err == nil && u == nil {
		err = appErr.Dependency(nil, "empty validate response", false)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A Login or Logout that ran during validation owns the session now.
	if m.state.Current != cur || m.phase != Anonymous {
		return nil
	}
	if err != nil {
		if rejected(err) {
			m.log.Info("stored session rejected", zap.String("user_id", cur.User.ID))
			m.state.Current = nil
			return m.store.Save(m.state)
		}
		return fmt.Errorf("validate stored session: %w", err)
	}
	cur.User = u
	m.phase = Authenticated
	return m.store.Save(m.state)
}

func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	sid, err := m.begin()
	if err != nil {
		return nil, err
	}
	res, err := m.backend.Login(ctx, email, password, sid)
	return m.finish(sid, res, err)
}

// Register signs up and signs in; req.SessionID is overwritten.
func (m *Manager) Register(ctx context.Context, req types.RegisterRequest) (*models.User, error) {
	sid, err := m.begin()
	if err != nil {
		return nil, err
	}
	req.SessionID = sid
	res, err := m.backend.Register(ctx, req)
	return m.finish(sid, res, err)
}

// Logout notifies the server best effort and drops the session. The user's
// namespace is kept for their next sign-in.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	var userID string
	if m.state.Current != nil && m.state.Current.User != nil {
		userID = m.state.Current.User.ID
	}
	m.mu.Unlock()

	if userID != "" {
		if err := m.backend.Logout(ctx, userID); err != nil {
			m.log.Warn("server logout failed", zap.Error(err))
		}
	}
	return m.wipeCurrent()
}

func (m *Manager) begin() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Authenticating {
		return "", ErrBusy
	}
	m.phase = Authenticating
	m.state.Current = nil
	if err := m.store.Save(m.state); err != nil {
		m.phase = Anonymous
		return "", err
	}
	return m.newID(), nil
}

func (m *Manager) finish(sid string, res *services.AuthResult, err error) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil && (res == nil || res.User == nil || res.User.ID == "") {
		err = appErr.Dependency(nil, "empty auth response", false)
	}
	if err != nil {
		m.phase = Anonymous
		return nil, err
	}

	userID := res.User.ID
	purged := 0
	for id := range m.state.Users {
		if id != userID {
			delete(m.state.Users, id)
			purged++
		}
	}
	if purged > 0 {
		m.log.Info("purged cached data of other users", zap.Int("users", purged))
	}

	if res.Session.ID != "" {
		sid = res.Session.ID
	}
	m.state.Current = &Current{User: res.User, SessionID: sid, SessionToken: res.Session.Token}
	m.state.LastUserID = userID
	if err := m.store.Save(m.state); err != nil {
		m.state.Current = nil
		m.phase = Anonymous
		return nil, err
	}
	m.phase = Authenticated
	u := *res.User
	return &u, nil
}

func (m *Manager) wipeCurrent() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = Anonymous
	m.state.Current = nil
	return m.store.Save(m.state)
}

// rejected reports whether the server looked at the session and said no.
func rejected(err error) bool {
	return appErr.IsCode(err, appErr.CodeUnauthorized) ||
		appErr.IsCode(err, appErr.CodeNotFound) ||
		appErr.IsCode(err, appErr.CodeForbidden) ||
		appErr.IsCode(err, appErr.CodeInvalid)
}

// Set stores v as JSON under key in the signed-in user's namespace.
func (m *Manager) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, err := m.namespace(true)
	if err != nil {
		return err
	}
	ns[key] = raw
	return m.store.Save(m.state)
}

// Get decodes key into dst. It reports false when the key is absent.
func (m *Manager) Get(key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, err := m.namespace(false)
	if err != nil {
		return false, err
	}
	raw, ok := ns[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, err := m.namespace(false)
	if err != nil {
		return err
	}
	if _, ok := ns[key]; !ok {
		return nil
	}
	delete(ns, key)
	return m.store.Save(m.state)
}

// Keys lists the signed-in user's keys in sorted order.
func (m *Manager) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, err := m.namespace(false)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear empties the signed-in user's namespace.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.namespace(false); err != nil {
		return err
	}
	delete(m.state.Users, m.state.Current.User.ID)
	return m.store.Save(m.state)
}

// namespace must be called with mu held.
func (m *Manager) namespace(create bool) (map[string]json.RawMessage, error) {
	if m.phase != Authenticated || m.state.Current == nil || m.state.Current.User == nil {
		return nil, ErrNotAuthenticated
	}
	id := m.state.Current.User.ID
	ns := m.state.Users[id]
	if ns == nil {
		ns = map[string]json.RawMessage{}
		if create {
			m.state.Users[id] = ns
		}
	}
	return ns, nil
}
