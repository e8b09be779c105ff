// Package session keeps the identity of the signed-in user.
//
// The user record lives in its own store slot, independent of the cache:
// signing out does not discard cached data, and a reconciliation never
// touches the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
	"github.com/roach88/homeroom/internal/store"
)

// ErrInvalidCredentials is returned by Login when the backend does not
// recognize the username and password.
var ErrInvalidCredentials = errors.New("session: invalid username or password")

// Slot is the durable location of the session record.
// *store.Slot implements it.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, value []byte) error
	Clear(ctx context.Context) error
}

// Manager signs users in and out.
//
// Thread-safety: all methods are safe for concurrent use. Current never
// touches the store.
type Manager struct {
	slot   Slot
	caller remote.Caller
	logger *slog.Logger

	mu      sync.RWMutex
	current *model.User
}

// Open loads the persisted session. A missing or unreadable record means
// nobody is signed in.
func Open(ctx context.Context, slot Slot, caller remote.Caller, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{slot: slot, caller: caller, logger: logger}

	data, err := slot.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("session load failed", "error", err)
		}
		return m
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil || u.ID == "" {
		logger.Warn("session record malformed, signed out", "error", err)
		return m
	}
	m.current = &u
	return m
}

// Current returns the signed-in user.
func (m *Manager) Current() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return model.User{}, false
	}
	return *m.current, true
}

// SignedIn reports whether a user is signed in.
func (m *Manager) SignedIn() bool {
	_, ok := m.Current()
	return ok
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the credentials with the backend and stores the returned
// user. Surrounding whitespace is ignored and the username is
// NFC-normalized.
func (m *Manager) Login(ctx context.Context, username, password string) (model.User, error) {
	creds := credentials{
		Username: norm.NFC.String(strings.TrimSpace(username)),
		Password: strings.TrimSpace(password),
	}

	var u *model.User
	if err := m.caller.Call(ctx, remote.ActionLogin, creds, &u); err != nil {
		return model.User{}, fmt.Errorf("login: %w", err)
	}
	if u == nil {
		return model.User{}, ErrInvalidCredentials
	}
	if err := m.set(ctx, *u); err != nil {
		return model.User{}, err
	}
	m.logger.Info("signed in", "user", u.Username, "role", u.Role)
	return m.sanitized(*u), nil
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, nu model.NewUser) (model.User, error) {
	nu.Username = norm.NFC.String(strings.TrimSpace(nu.Username))
	nu.Password = strings.TrimSpace(nu.Password)
	nu.FullName = norm.NFC.String(nu.FullName)

	var u model.User
	if err := m.caller.Call(ctx, remote.ActionRegister, nu, &u); err != nil {
		return model.User{}, fmt.Errorf("register: %w", err)
	}
	if err := m.set(ctx, u); err != nil {
		return model.User{}, err
	}
	m.logger.Info("registered", "user", u.Username, "role", u.Role)
	return m.sanitized(u), nil
}

// Logout forgets the signed-in user. Signing out twice is not an error.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.slot.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	m.current = nil
	return nil
}

// set persists u without its password.
func (m *Manager) set(ctx context.Context, u model.User) error {
	u = m.sanitized(u)
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.slot.Save(ctx, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.current = &u
	return nil
}

func (m *Manager) sanitized(u model.User) model.User {
	u.Password = ""
	return u
}
