package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gplanner/pkg/logx"
)

// Manager is the single choke-point through which every component obtains
// a credential believed to be currently usable.
//
// GetValid resolves, validates and (when needed) refreshes. Unavailable is
// a normal outcome — the user may simply not have authorized yet — and
// callers must treat it as "skip this cycle".
type Manager struct {
	store     *Store
	authority Authority
	log       logx.Logger

	// mu serializes the whole resolve-check-refresh-persist path, so
	// concurrent callers can never race into a second refresh: the loser
	// of the lock re-resolves and finds the already-refreshed credential.
	mu sync.Mutex

	now func() time.Time
}

func NewManager(store *Store, authority Authority, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{store: store, authority: authority, log: log, now: time.Now}
}

// GetValid returns a credential that is valid right now, or ErrUnavailable.
// Refresh is attempted at most once per call; the caller's own cadence
// (the next scheduled firing) is the retry mechanism.
func (m *Manager) GetValid(ctx context.Context) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.store.Resolve()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.log.Warn("no credential configured; complete the authorization handshake first")
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if cred.ValidAt(m.now()) {
		return cred, nil
	}

	if !cred.Refreshable() {
		m.log.Warn("credential expired and cannot be refreshed; re-authorization required")
		return nil, fmt.Errorf("%w: credential dead", ErrUnavailable)
	}

	refreshed, err := m.authority.Refresh(ctx, cred)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidGrant):
			m.log.Warn("refresh token rejected; re-authorization required", logx.Err(err))
		case errors.Is(err, ErrUnreachable):
			m.log.Warn("token refresh failed; will retry on next cycle", logx.Err(err))
		default:
			m.log.Warn("token refresh failed", logx.Err(err))
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	m.store.Persist(refreshed, true)
	m.log.Info("credential refreshed", logx.Time("expiry", refreshed.Expiry))
	return refreshed, nil
}

// Exchange completes the one-shot authorization-code exchange and installs
// the resulting credential in every sink.
func (m *Manager) Exchange(ctx context.Context, code, redirectURI string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Client identity may already be configured without tokens.
	seed, err := m.store.Resolve()
	if err != nil {
		seed = &Credential{
			TokenEndpoint: m.store.cfg.DefaultTokenEndpoint,
			Scopes:        append([]string(nil), m.store.cfg.Scopes...),
		}
		if v, ok := m.store.vars.Lookup(keyClientID); ok {
			seed.ClientID = v
		}
		if v, ok := m.store.vars.Lookup(keyClientSecret); ok {
			seed.ClientSecret = v
		}
	}

	cred, err := m.authority.ExchangeCode(ctx, seed, code, redirectURI)
	if err != nil {
		return nil, err
	}
	m.store.Persist(cred, true)
	m.log.Info("authorization exchange completed", logx.Time("expiry", cred.Expiry))
	return cred, nil
}

// Token returns just the bearer token for provider calls.
// It satisfies the TokenSource shape the provider clients accept.
func (m *Manager) Token(ctx context.Context) (string, error) {
	cred, err := m.GetValid(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}
