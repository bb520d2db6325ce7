package ports

import (
	"context"

	"github.com/ArtCertify/ArtCertify-sub001/core"
)

// WalletConnector is the external wallet provider
type WalletConnector interface {
	// Reconnect restores a previously authorized session and returns its accounts
	Reconnect(ctx context.Context) ([]string, error)
	Disconnect(ctx context.Context) error
	IsConnected(ctx context.Context) bool
	// HasStoredConnection reports whether a storable prior connection exists
	HasStoredConnection(ctx context.Context) bool
	// OnDisconnect registers fn to run when the wallet reports it disconnected.
	// The returned func removes the registration.
	OnDisconnect(fn func()) (cancel func())
}

// AccountConnector connects an account derived from a locally held secret
type AccountConnector interface {
	Connect(ctx context.Context, account core.WalletAccount) error
}
