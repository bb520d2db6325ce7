package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/adapters/events"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/store"
	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/jonboulle/clockwork"
)

const (
	validAddress = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	otherAddress = "ZYXWVUTSRQPONMLKJIHGFEDCBA765432ZYXWVUTSRQPONMLKJIHGFEDCBA"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

func newFakeClock() fakeClock {
	return clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
}

// countingStore records every Delete call made through it
type countingStore struct {
	ports.Store

	mu      sync.Mutex
	deletes [][]string
	failDel error
}

func newCountingStore(clock clockwork.Clock) *countingStore {
	return &countingStore{Store: store.NewMemoryStore(clock)}
}

func (s *countingStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, append([]string(nil), keys...))
	fail := s.failDel
	s.mu.Unlock()

	if fail != nil {
		return fail
	}
	return s.Store.Delete(ctx, keys...)
}

func (s *countingStore) deleteCalls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.deletes...)
}

func (s *countingStore) has(t *testing.T, key string) bool {
	t.Helper()
	_, err := s.Get(context.Background(), key)
	if errors.Is(err, core.ErrNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return true
}

type fakeWallet struct {
	mu            sync.Mutex
	connected     bool
	stored        bool
	accounts      []string
	reconnectErr  error
	disconnectErr error
	listeners     map[int]func()
	nextID        int

	// when set, Disconnect signals entered and waits for release
	entered chan struct{}
	release chan struct{}

	disconnects atomic.Int32
	reconnects  atomic.Int32
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{listeners: make(map[int]func())}
}

func (w *fakeWallet) Reconnect(ctx context.Context) ([]string, error) {
	w.reconnects.Add(1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reconnectErr != nil {
		return nil, w.reconnectErr
	}
	w.connected = true
	return w.accounts, nil
}

func (w *fakeWallet) Disconnect(ctx context.Context) error {
	w.disconnects.Add(1)
	if w.entered != nil {
		close(w.entered)
		<-w.release
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	return w.disconnectErr
}

func (w *fakeWallet) IsConnected(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *fakeWallet) HasStoredConnection(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stored
}

func (w *fakeWallet) OnDisconnect(fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.listeners, id)
	}
}

// emitDisconnect simulates the wallet reporting that it disconnected
func (w *fakeWallet) emitDisconnect() {
	w.mu.Lock()
	w.connected = false
	listeners := make([]func(), 0, len(w.listeners))
	for _, fn := range w.listeners {
		listeners = append(listeners, fn)
	}
	w.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

type fakeValidator struct {
	mu      sync.Mutex
	valid   bool
	err     error
	results []bool
	calls   int
}

func (v *fakeValidator) Valid(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	if len(v.results) > 0 {
		r := v.results[0]
		v.results = v.results[1:]
		return r, nil
	}
	return v.valid, nil
}

func (v *fakeValidator) set(valid bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.valid = valid
	v.err = err
}

type fakeNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *fakeNavigator) Navigate(ctx context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
	return nil
}

func (n *fakeNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paths)
}

type logoutRecord struct {
	address string
	reason  string
}

type fakeEvents struct {
	mu      sync.Mutex
	logouts []logoutRecord
}

func (e *fakeEvents) PublishLogout(ctx context.Context, address, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logouts = append(e.logouts, logoutRecord{address: address, reason: reason})
	return nil
}

func (e *fakeEvents) all() []logoutRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]logoutRecord(nil), e.logouts...)
}

type sessionFixture struct {
	clock     fakeClock
	store     *countingStore
	wallet    *fakeWallet
	validator *fakeValidator
	navigator *fakeNavigator
	events    *fakeEvents
	notifier  *events.WatermillNotifier
	manager   *SessionManager
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	clock := newFakeClock()
	f := &sessionFixture{
		clock:     clock,
		store:     newCountingStore(clock),
		wallet:    newFakeWallet(),
		validator: &fakeValidator{valid: true},
		navigator: &fakeNavigator{},
		events:    &fakeEvents{},
		notifier:  events.NewInProcessNotifier(watermill.NopLogger{}),
	}

	f.manager = NewSessionManager(SessionDeps{
		Store:     f.store,
		Wallet:    f.wallet,
		Validator: f.validator,
		Navigator: f.navigator,
		Notifier:  f.notifier,
		Events:    f.events,
		Clock:     clock,
	}, DefaultSessionConfig())

	t.Cleanup(func() {
		f.manager.Close()
		_ = f.notifier.Close()
	})
	return f
}

func (f *sessionFixture) seed(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		if err := f.store.Set(context.Background(), k, v, 0); err != nil {
			t.Fatalf("seed %s: %v", k, err)
		}
	}
}

type fakeResolver struct {
	mu        sync.Mutex
	assertion *core.IdentityAssertion
	err       error
	nonces    []string
	providers []string
}

func (r *fakeResolver) Resolve(ctx context.Context, providerID, code, nonce string) (*core.IdentityAssertion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonces = append(r.nonces, nonce)
	r.providers = append(r.providers, providerID)
	if r.err != nil {
		return nil, r.err
	}
	a := *r.assertion
	a.ProviderID = providerID
	return &a, nil
}
