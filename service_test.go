package artcertify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/adapters/wallet"
	"github.com/ArtCertify/ArtCertify-sub001/config"
	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func startService(t *testing.T, cfg config.Config) *Service {
	t.Helper()
	svc, err := New(cfg, watermill.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	return svc
}

func writeSigningKey(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600))
	return path
}

func TestService_LoginLogout(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, config.Default())
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	require.NoError(t, svc.Store().Set(ctx, core.SignatureKey(testAddress), "true", 0))

	session, err := svc.LoginWithAddress(ctx, testAddress)
	require.NoError(t, err)
	assert.Equal(t, core.Session{Address: testAddress, Authenticated: true}, session)

	require.Eventually(t, func() bool { return svc.Signature().Signed }, time.Second, 5*time.Millisecond,
		"the ledger follows the session address")

	assert.True(t, svc.Logout(ctx))
	assert.False(t, svc.Session().Authenticated)
	require.Eventually(t, func() bool { return svc.Signature().Address == "" }, time.Second, 5*time.Millisecond)
}

func TestService_Handler(t *testing.T) {
	svc := startService(t, config.Default())
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"session":{"address":"","authenticated":false}}`, w.Body.String())
}

func TestService_RestoreAcrossRestart(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverBadger
	cfg.Store.BadgerDir = t.TempDir()
	cfg.Session.SigningKeyFile = writeSigningKey(t)

	account, phrase, err := wallet.GenerateAccount()
	require.NoError(t, err)

	first := startService(t, cfg)
	_, err = first.LoginWithSecret(ctx, phrase)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := startService(t, cfg)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	assert.Equal(t, core.Session{Address: account.Address, Authenticated: true}, second.Session())
}

func TestService_WithoutSigningKeyDoesNotRestore(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverBadger
	cfg.Store.BadgerDir = t.TempDir()

	first := startService(t, cfg)
	_, err := first.LoginWithAddress(ctx, testAddress)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// a fresh key cannot verify the persisted credential
	second := startService(t, cfg)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	assert.False(t, second.Session().Authenticated)
	_, err = second.Store().Get(ctx, core.KeyAddress)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.RedisURL = "redis://" + mr.Addr()
	cfg.Events.Driver = config.DriverRedis
	cfg.Events.RedisURL = cfg.Store.RedisURL

	svc := startService(t, cfg)

	_, err := svc.LoginWithAddress(ctx, testAddress)
	require.NoError(t, err)

	val, err := mr.Get(cfg.Store.Prefix + core.KeyAddress)
	require.NoError(t, err)
	assert.Equal(t, testAddress, val)

	// every redis client has exactly one owner
	assert.NoError(t, svc.Close())
}

func TestService_WalletDisconnectEndsSession(t *testing.T) {
	ctx := context.Background()
	svc := startService(t, config.Default())
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })

	_, phrase, err := wallet.GenerateAccount()
	require.NoError(t, err)
	_, err = svc.LoginWithSecret(ctx, phrase)
	require.NoError(t, err)

	require.NoError(t, svc.DisconnectWallet(ctx))

	assert.False(t, svc.Session().Authenticated)
	_, err = svc.Store().Get(ctx, core.KeyWasConnected)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestNew_InvalidRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.RedisURL = "://nope"

	_, err := New(cfg, watermill.NopLogger{})
	assert.Error(t, err)
}
