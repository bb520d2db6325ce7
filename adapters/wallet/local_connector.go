package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
)

// ErrNoStoredConnection is returned by Reconnect when nothing was connected before
var ErrNoStoredConnection = errors.New("no stored wallet connection")

// LocalConnector is a WalletConnector for accounts derived from a locally held secret.
// Its prior connection is the address stored under local_wallet_connection.
type LocalConnector struct {
	store ports.Store

	mu        sync.Mutex
	connected string
	nextID    int
	listeners map[int]func()
}

var _ ports.WalletConnector = (*LocalConnector)(nil)

// NewLocalConnector creates a new local wallet connector
func NewLocalConnector(store ports.Store) *LocalConnector {
	return &LocalConnector{
		store:     store,
		listeners: make(map[int]func()),
	}
}

// Connect connects account and stores it for later reconnection
func (c *LocalConnector) Connect(ctx context.Context, account core.WalletAccount) error {
	if err := c.store.Set(ctx, core.KeyLocalConnection, account.Address, 0); err != nil {
		return fmt.Errorf("failed to store connection: %w", err)
	}
	if err := c.store.Set(ctx, core.KeyAccountHint, account.Address, 0); err != nil {
		return fmt.Errorf("failed to store account hint: %w", err)
	}

	c.mu.Lock()
	c.connected = account.Address
	c.mu.Unlock()
	return nil
}

// Reconnect restores the stored connection
func (c *LocalConnector) Reconnect(ctx context.Context) ([]string, error) {
	address, err := c.store.Get(ctx, core.KeyLocalConnection)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrNoStoredConnection
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read connection: %w", err)
	}

	c.mu.Lock()
	c.connected = address
	c.mu.Unlock()
	return []string{address}, nil
}

// Disconnect drops the connection on request of the session owner.
// It does not raise the disconnect event.
func (c *LocalConnector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = ""
	c.mu.Unlock()

	if err := c.store.Delete(ctx, core.KeyLocalConnection); err != nil {
		return fmt.Errorf("failed to forget connection: %w", err)
	}
	return nil
}

// Revoke drops the connection from the wallet side and raises the disconnect event
func (c *LocalConnector) Revoke(ctx context.Context) error {
	if err := c.Disconnect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return nil
}

// IsConnected reports whether an account is connected in this process
func (c *LocalConnector) IsConnected(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected != ""
}

// HasStoredConnection reports whether a connection can be restored from the store
func (c *LocalConnector) HasStoredConnection(ctx context.Context) bool {
	_, err := c.store.Get(ctx, core.KeyLocalConnection)
	return err == nil
}

// OnDisconnect registers fn for wallet-side disconnects and returns its cancel func
func (c *LocalConnector) OnDisconnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}
