package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jonboulle/clockwork"
)

// Logout reasons reported to events and metrics
const (
	ReasonUser               = "user"
	ReasonCredentialInvalid  = "credential_invalid"
	ReasonRevalidation       = "revalidation"
	ReasonWalletDisconnected = "wallet_disconnected"
)

// flightState guards the logout body; at most one cleanup runs at a time
type flightState int32

const (
	flightIdle flightState = iota
	flightInProgress
)

// initState guards startup restoration; it runs once per manager
type initState int32

const (
	initUninitialized initState = iota
	initInitialized
)

// SessionConfig holds the session timing knobs
type SessionConfig struct {
	RevalidateInterval time.Duration
	NavigationDelay    time.Duration
	LoginPath          string

	// consecutive validator errors during revalidation that count as an invalid credential
	MaxValidationErrors int
}

// DefaultSessionConfig returns the production timings
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		RevalidateInterval:  120 * time.Second,
		NavigationDelay:     100 * time.Millisecond,
		LoginPath:           "/",
		MaxValidationErrors: 3,
	}
}

// SessionDeps are the collaborators of the session manager.
// Events, Clock, Logger and Metrics are optional.
type SessionDeps struct {
	Store     ports.Store
	Wallet    ports.WalletConnector
	Validator ports.TokenValidator
	Navigator ports.Navigator
	Notifier  ports.Notifier
	Events    ports.EventPublisher
	Clock     clockwork.Clock
	Logger    watermill.LoggerAdapter
	Metrics   ports.Metrics
}

type sessionEvent struct {
	Event string `json:"event"`
	At    int64  `json:"at"`
}

// SessionManager owns the process-wide session: restoration, login, single-flight logout
// and continuous revalidation of the credential.
type SessionManager struct {
	store     ports.Store
	wallet    ports.WalletConnector
	validator ports.TokenValidator
	navigator ports.Navigator
	notifier  ports.Notifier
	events    ports.EventPublisher
	clock     clockwork.Clock
	logger    watermill.LoggerAdapter
	metrics   ports.Metrics
	cfg       SessionConfig

	logoutState atomic.Int32
	initState   atomic.Int32

	mu               sync.RWMutex
	session          core.Session
	revalidateCancel context.CancelFunc

	listenersMu sync.Mutex
	listeners   map[int]func(core.Session)
	nextID      int

	ctx    context.Context
	cancel context.CancelFunc
	stops  []func()
	wg     sync.WaitGroup
}

// NewSessionManager creates a new, unauthenticated session manager
func NewSessionManager(deps SessionDeps, cfg SessionConfig) *SessionManager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = watermill.NopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}

	defaults := DefaultSessionConfig()
	if cfg.RevalidateInterval <= 0 {
		cfg.RevalidateInterval = defaults.RevalidateInterval
	}
	if cfg.NavigationDelay < 0 {
		cfg.NavigationDelay = defaults.NavigationDelay
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = defaults.LoginPath
	}
	if cfg.MaxValidationErrors <= 0 {
		cfg.MaxValidationErrors = defaults.MaxValidationErrors
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &SessionManager{
		store:     deps.Store,
		wallet:    deps.Wallet,
		validator: deps.Validator,
		navigator: deps.Navigator,
		notifier:  deps.Notifier,
		events:    deps.Events,
		clock:     deps.Clock,
		logger:    deps.Logger.With(watermill.LogFields{"component": "session"}),
		metrics:   deps.Metrics,
		cfg:       cfg,
		listeners: make(map[int]func(core.Session)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Session returns a snapshot of the current session
func (m *SessionManager) Session() core.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// OnChange registers fn to run after every session change.
// The returned func removes the registration.
func (m *SessionManager) OnChange(fn func(core.Session)) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		delete(m.listeners, id)
	}
}

// Start subscribes to the wallet disconnect event and the credential-invalid signal
func (m *SessionManager) Start(ctx context.Context) error {
	m.stops = append(m.stops, m.wallet.OnDisconnect(m.handleWalletDisconnect))

	if m.notifier == nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	invalid, err := m.notifier.Subscribe(subCtx, core.TopicCredentialInvalid)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to credential invalidation: %w", err)
	}
	m.stops = append(m.stops, cancel)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for range invalid {
			if m.logoutInFlight() {
				continue
			}
			m.logger.Info("Credential invalidated externally", nil)
			m.logout(context.WithoutCancel(subCtx), ReasonCredentialInvalid)
		}
	}()

	return nil
}

// Close stops subscriptions and revalidation and waits for background work
func (m *SessionManager) Close() {
	for _, stop := range m.stops {
		stop()
	}

	// setSession checks ctx and calls wg.Add under mu
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
}

// Restore decides once per manager whether the persisted session can be resumed.
// Recoverable outcomes (core.ErrTokenExpired, core.ErrReconnectionFailed) are returned
// for logging only; the session is left unauthenticated and the persisted keys purged.
func (m *SessionManager) Restore(ctx context.Context) error {
	if !m.initState.CompareAndSwap(int32(initUninitialized), int32(initInitialized)) {
		return nil
	}

	address, err := m.read(ctx, core.KeyAddress)
	if err != nil {
		m.metrics.ObserveRestore("error")
		return err
	}
	connectedFlag, err := m.read(ctx, core.KeyWasConnected)
	if err != nil {
		m.metrics.ObserveRestore("error")
		return err
	}
	wasConnected := connectedFlag == "true"

	fields := watermill.LogFields{"address": address, "was_connected": wasConnected}

	if !m.credentialValid(ctx) {
		m.purge(ctx, address)
		if address == "" {
			m.metrics.ObserveRestore("empty")
			return nil
		}
		m.metrics.ObserveRestore("expired")
		m.logger.Info("Persisted credential is no longer valid", fields)
		return core.ErrTokenExpired
	}

	if address != "" && wasConnected && m.wallet.HasStoredConnection(ctx) {
		accounts, err := m.wallet.Reconnect(ctx)
		if err != nil || len(accounts) == 0 || accounts[0] != address {
			m.purge(ctx, address)
			m.metrics.ObserveRestore("reconnection_failed")
			m.logger.Info("Wallet reconnection failed", fields)
			if err != nil {
				return fmt.Errorf("%w: %w", core.ErrReconnectionFailed, err)
			}
			return core.ErrReconnectionFailed
		}

		if !m.credentialValid(ctx) {
			m.purge(ctx, address)
			m.metrics.ObserveRestore("expired")
			return core.ErrTokenExpired
		}

		m.setSession(core.Session{Address: address, Authenticated: true})
		m.metrics.ObserveRestore("restored")
		m.logger.Info("Session restored", fields)
		return nil
	}

	if address != "" || wasConnected {
		m.purge(ctx, address)
		m.metrics.ObserveRestore("normalized")
		m.logger.Info("Removed orphaned session keys", fields)
		return nil
	}

	m.metrics.ObserveRestore("empty")
	return nil
}

type loginOptions struct {
	walletConnection bool
	method           string
}

// LoginOption customizes Login
type LoginOption func(*loginOptions)

// WithWalletConnection records that an external wallet is connected for this session
func WithWalletConnection() LoginOption {
	return func(o *loginOptions) { o.walletConnection = true }
}

// WithMethod names the login method for metrics
func WithMethod(method string) LoginOption {
	return func(o *loginOptions) { o.method = method }
}

// Login persists address for restoration and then authenticates it.
// The address is not validated here; callers apply the address rule first.
// The session is authenticated even when persisting fails; the error is returned for logging.
func (m *SessionManager) Login(ctx context.Context, address string, opts ...LoginOption) error {
	o := loginOptions{method: "manual"}
	for _, opt := range opts {
		opt(&o)
	}

	// keys go first so a logout triggered by the new session always purges them
	err := m.persistLogin(ctx, address, o)

	m.setSession(core.Session{Address: address, Authenticated: true})
	m.metrics.ObserveLogin(o.method)
	m.logger.Info("Logged in", watermill.LogFields{"address": address, "method": o.method})

	return err
}

func (m *SessionManager) persistLogin(ctx context.Context, address string, o loginOptions) error {
	if err := m.store.Set(ctx, core.KeyAddress, address, 0); err != nil {
		return fmt.Errorf("failed to persist address: %w", err)
	}
	if o.walletConnection {
		if err := m.store.Set(ctx, core.KeyWasConnected, "true", 0); err != nil {
			return fmt.Errorf("failed to persist wallet connection: %w", err)
		}
	}

	marker, err := json.Marshal(sessionEvent{Event: "login", At: m.clock.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}
	if err := m.store.Set(ctx, core.KeySessionEvent, string(marker), 0); err != nil {
		return fmt.Errorf("failed to persist session event: %w", err)
	}

	return nil
}

// Logout runs the logout cleanup unless one is already in flight.
// It reports whether this call ran the cleanup.
func (m *SessionManager) Logout(ctx context.Context) bool {
	return m.logout(ctx, ReasonUser)
}

func (m *SessionManager) logout(ctx context.Context, reason string) bool {
	if !m.enterLogout() {
		m.logger.Debug("Logout already in flight", watermill.LogFields{"reason": reason})
		return false
	}
	defer m.leaveLogout()

	address := m.Session().Address
	defer m.finishLogout(ctx, address, reason)

	if m.wallet.IsConnected(ctx) {
		if err := m.wallet.Disconnect(ctx); err != nil {
			m.logger.Error("Wallet disconnect failed", err, watermill.LogFields{"address": address})
		}
	}

	return true
}

// handleWalletDisconnect cleans up after the wallet itself disconnected.
// It shares the logout guard and cleanup but never calls back into the wallet.
func (m *SessionManager) handleWalletDisconnect() {
	if !m.enterLogout() {
		return
	}
	defer m.leaveLogout()

	m.finishLogout(m.ctx, m.Session().Address, ReasonWalletDisconnected)
}

// finishLogout is the cleanup shared by every logout path
func (m *SessionManager) finishLogout(ctx context.Context, address, reason string) {
	ctx = context.WithoutCancel(ctx)

	m.setSession(core.Session{})
	m.purge(ctx, address)

	if m.events != nil {
		if err := m.events.PublishLogout(ctx, address, reason); err != nil {
			m.logger.Error("Failed to publish logout", err, watermill.LogFields{"address": address})
		}
	}

	m.metrics.ObserveLogout(reason)
	m.logger.Info("Logged out", watermill.LogFields{"address": address, "reason": reason})

	m.scheduleNavigation(ctx)
}

func (m *SessionManager) scheduleNavigation(ctx context.Context) {
	if m.navigator == nil {
		return
	}
	m.clock.AfterFunc(m.cfg.NavigationDelay, func() {
		if err := m.navigator.Navigate(ctx, m.cfg.LoginPath); err != nil {
			m.logger.Error("Navigation failed", err, watermill.LogFields{"path": m.cfg.LoginPath})
		}
	})
}

func (m *SessionManager) enterLogout() bool {
	return m.logoutState.CompareAndSwap(int32(flightIdle), int32(flightInProgress))
}

func (m *SessionManager) leaveLogout() {
	m.logoutState.Store(int32(flightIdle))
}

func (m *SessionManager) logoutInFlight() bool {
	return flightState(m.logoutState.Load()) == flightInProgress
}

// setSession applies s atomically, restarts or stops revalidation and notifies listeners
func (m *SessionManager) setSession(s core.Session) {
	m.mu.Lock()
	m.session = s
	if m.revalidateCancel != nil {
		m.revalidateCancel()
		m.revalidateCancel = nil
	}
	if s.Authenticated && m.ctx.Err() == nil {
		ctx, cancel := context.WithCancel(m.ctx)
		m.revalidateCancel = cancel
		m.wg.Add(1)
		go m.revalidate(ctx)
	}
	m.mu.Unlock()

	m.listenersMu.Lock()
	listeners := make([]func(core.Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// revalidate checks the credential immediately and then on every tick until ctx is done
func (m *SessionManager) revalidate(ctx context.Context) {
	defer m.wg.Done()

	ticker := m.clock.NewTicker(m.cfg.RevalidateInterval)
	defer ticker.Stop()

	failures := 0
	m.checkCredential(ctx, &failures)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.checkCredential(ctx, &failures)
		}
	}
}

// checkCredential logs out on an invalid credential or after MaxValidationErrors
// consecutive validator errors. failures counts the errors seen so far.
func (m *SessionManager) checkCredential(ctx context.Context, failures *int) {
	if ctx.Err() != nil || m.logoutInFlight() {
		return
	}

	valid, err := m.validator.Valid(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		*failures++
		m.metrics.ObserveRevalidation("error")
		m.logger.Error("Credential validation failed", err, watermill.LogFields{"consecutive_failures": *failures})
		if *failures < m.cfg.MaxValidationErrors {
			return
		}
		m.logger.Info("Credential could not be validated, logging out", watermill.LogFields{"address": m.Session().Address})
		m.logout(context.WithoutCancel(ctx), ReasonRevalidation)
		return
	}
	*failures = 0

	if valid {
		m.metrics.ObserveRevalidation("valid")
		return
	}

	m.metrics.ObserveRevalidation("invalid")
	m.logger.Info("Credential expired", watermill.LogFields{"address": m.Session().Address})
	m.logout(context.WithoutCancel(ctx), ReasonRevalidation)
}

// credentialValid treats validator errors as invalid
func (m *SessionManager) credentialValid(ctx context.Context) bool {
	valid, err := m.validator.Valid(ctx)
	if err != nil {
		m.logger.Error("Credential validation failed", err, nil)
		return false
	}
	return valid
}

func (m *SessionManager) purge(ctx context.Context, address string) {
	if err := m.store.Delete(ctx, core.PurgeKeys(address)...); err != nil {
		m.logger.Error("Failed to purge session keys", err, watermill.LogFields{"address": address})
	}
}

func (m *SessionManager) read(ctx context.Context, key string) (string, error) {
	val, err := m.store.Get(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}
