package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
)

// SignatureLedger exposes whether the tracked address has signed the required authorization
// transaction. It never writes; the signing flow owns the keys.
type SignatureLedger struct {
	store    ports.Store
	notifier ports.Notifier
	logger   watermill.LoggerAdapter

	mu      sync.RWMutex
	address string
	record  core.SignatureRecord

	listenersMu sync.Mutex
	listeners   map[int]func(core.SignatureRecord)
	nextID      int
}

// NewSignatureLedger creates a new signature ledger
func NewSignatureLedger(store ports.Store, notifier ports.Notifier, logger watermill.LoggerAdapter) *SignatureLedger {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &SignatureLedger{
		store:     store,
		notifier:  notifier,
		logger:    logger.With(watermill.LogFields{"component": "signature_ledger"}),
		listeners: make(map[int]func(core.SignatureRecord)),
	}
}

// Lookup reads the signature record of any address
func (l *SignatureLedger) Lookup(ctx context.Context, address string) (core.SignatureRecord, error) {
	record := core.SignatureRecord{Address: address}
	if address == "" {
		return record, nil
	}

	signed, err := l.read(ctx, core.SignatureKey(address))
	if err != nil {
		return record, err
	}
	payload, err := l.read(ctx, core.SignatureBase64Key(address))
	if err != nil {
		return record, err
	}
	txID, err := l.read(ctx, core.SignatureTxKey(address))
	if err != nil {
		return record, err
	}

	record.Signed = signed == "true"
	record.SignedTxPayload = payload
	record.SignedTxID = txID
	return record, nil
}

// Track switches the ledger to address and re-reads its record
func (l *SignatureLedger) Track(ctx context.Context, address string) error {
	l.mu.Lock()
	l.address = address
	l.mu.Unlock()

	return l.Refresh(ctx)
}

// Address returns the tracked address
func (l *SignatureLedger) Address() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.address
}

// Record returns the record of the tracked address
func (l *SignatureLedger) Record() core.SignatureRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.record
}

// Refresh re-reads the tracked address and notifies listeners when the record changed
func (l *SignatureLedger) Refresh(ctx context.Context) error {
	address := l.Address()

	record, err := l.Lookup(ctx, address)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.address != address {
		// tracked address moved on while reading
		l.mu.Unlock()
		return nil
	}
	changed := l.record != record
	l.record = record
	l.mu.Unlock()

	if changed {
		l.emit(record)
	}
	return nil
}

// OnChange registers fn to run when the tracked record changes.
// The returned func removes the registration.
func (l *SignatureLedger) OnChange(fn func(core.SignatureRecord)) func() {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()

	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.listenersMu.Lock()
		defer l.listenersMu.Unlock()
		delete(l.listeners, id)
	}
}

// Run refreshes on same-process signature updates and on storage changes of the tracked
// address' keys until ctx is done.
func (l *SignatureLedger) Run(ctx context.Context) error {
	updates, err := l.notifier.Subscribe(ctx, core.TopicSignatureUpdated)
	if err != nil {
		return fmt.Errorf("failed to subscribe to signature updates: %w", err)
	}
	changes, err := l.notifier.Subscribe(ctx, core.TopicStorageChanged)
	if err != nil {
		return fmt.Errorf("failed to subscribe to storage changes: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-updates:
			if !ok {
				return nil
			}
			if n.Payload == "" || n.Payload == l.Address() {
				l.refresh(ctx)
			}
		case n, ok := <-changes:
			if !ok {
				return nil
			}
			if l.tracksKey(n.Payload) {
				l.refresh(ctx)
			}
		}
	}
}

func (l *SignatureLedger) tracksKey(key string) bool {
	address := l.Address()
	if address == "" {
		return false
	}
	for _, k := range core.SignatureKeys(address) {
		if k == key {
			return true
		}
	}
	return false
}

func (l *SignatureLedger) refresh(ctx context.Context) {
	if err := l.Refresh(ctx); err != nil {
		l.logger.Error("Failed to refresh signature record", err, watermill.LogFields{"address": l.Address()})
	}
}

func (l *SignatureLedger) emit(record core.SignatureRecord) {
	l.listenersMu.Lock()
	listeners := make([]func(core.SignatureRecord), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(record)
	}
}

func (l *SignatureLedger) read(ctx context.Context, key string) (string, error) {
	val, err := l.store.Get(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}
