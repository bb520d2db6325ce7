// Package artcertify assembles the wallet session subsystem: session restoration and
// revalidation, manual, secret and federated login, single-flight logout and the signature ledger.
package artcertify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/ArtCertify/ArtCertify-sub001/adapters/events"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/federation"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/logging"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/metrics"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/store"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/tokenizer"
	"github.com/ArtCertify/ArtCertify-sub001/adapters/wallet"
	"github.com/ArtCertify/ArtCertify-sub001/config"
	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ArtCertify/ArtCertify-sub001/service"
	httptransport "github.com/ArtCertify/ArtCertify-sub001/transport/http"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Service is the assembled session subsystem
type Service struct {
	cfg    config.Config
	logger watermill.LoggerAdapter

	store     ports.Store
	notifier  *events.WatermillNotifier
	connector *wallet.LocalConnector
	sessions  *service.SessionManager
	auth      *service.AuthService
	ledger    *service.SignatureLedger
	recorder  *metrics.Recorder
	handler   http.Handler

	closers      []func() error
	stopTracking func()
	cancel       context.CancelFunc
	done         chan struct{}
}

var _ Client = (*Service)(nil)

// New builds the service graph described by cfg. A nil logger gets a logrus logger
// configured from cfg.Log.
func New(cfg config.Config, logger watermill.LoggerAdapter) (*Service, error) {
	if logger == nil {
		logger = logging.NewLogrusAdapter(logging.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr))
	}

	s := &Service{cfg: cfg, logger: logger}
	if err := s.build(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build() error {
	clock := clockwork.NewRealClock()

	kv, err := s.openStore(clock)
	if err != nil {
		return err
	}

	notifier, err := s.openNotifier()
	if err != nil {
		return err
	}
	s.notifier = notifier
	s.closers = append(s.closers, notifier.Close)

	s.store = store.NewNotifying(kv, notifier, s.logger)

	signKey, err := loadSigningKey(s.cfg.Session.SigningKeyFile)
	if err != nil {
		return err
	}
	if s.cfg.Session.SigningKeyFile == "" {
		s.logger.Info("No signing key configured, credentials will not survive a restart", nil)
	}
	tokens := tokenizer.NewJWTTokenizer(signKey, s.store, clock)

	s.connector = wallet.NewLocalConnector(s.store)
	s.recorder = metrics.NewRecorder(nil)
	publisher := events.NewWatermillPublisher(notifier.Publisher())

	s.sessions = service.NewSessionManager(service.SessionDeps{
		Store:     s.store,
		Wallet:    s.connector,
		Validator: tokens,
		Navigator: publisher,
		Notifier:  notifier,
		Events:    publisher,
		Clock:     clock,
		Logger:    s.logger,
		Metrics:   s.recorder,
	}, service.SessionConfig{
		RevalidateInterval: s.cfg.Session.RevalidateInterval,
		NavigationDelay:    s.cfg.Session.NavigationDelay,
		LoginPath:          s.cfg.Session.LoginPath,

		MaxValidationErrors: s.cfg.Session.MaxValidationErrors,
	})

	providers := s.cfg.Providers()
	var resolver ports.AssertionResolver = federation.NewOIDCResolver(providers, s.cfg.Federation.RedirectURL)
	if s.cfg.Federation.Simulate {
		s.logger.Info("Federation runs against the simulated resolver", nil)
		resolver = federation.SimulatedResolver{}
	}
	fed := service.NewFederationClient(
		service.NewAuthorizationStateStore(s.store, clock),
		s.store,
		resolver,
		providers,
		s.cfg.Federation.RedirectURL,
		s.logger,
		s.recorder,
	)

	s.auth = service.NewAuthService(s.sessions, fed, tokens, s.connector, wallet.DeriveAccount, notifier, s.logger, s.cfg.Session.CredentialTTL)
	s.ledger = service.NewSignatureLedger(s.store, notifier, s.logger)
	s.handler = httptransport.SetupRouter(s.auth, s.ledger, s.recorder.Handler(), s.logger)

	return nil
}

func (s *Service) openStore(clock clockwork.Clock) (ports.Store, error) {
	switch s.cfg.Store.Driver {
	case config.DriverRedis:
		client, err := s.redisClient(s.cfg.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client, s.cfg.Store.Prefix), nil
	case config.DriverBadger:
		db, err := store.OpenBadgerStore(s.cfg.Store.BadgerDir)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		return db, nil
	default:
		return store.NewMemoryStore(clock), nil
	}
}

func (s *Service) openNotifier() (*events.WatermillNotifier, error) {
	if s.cfg.Events.Driver != config.DriverRedis {
		return events.NewInProcessNotifier(s.logger), nil
	}

	opts, err := redis.ParseURL(s.cfg.Events.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events redis url: %w", err)
	}

	// owned and closed by the notifier
	pubClient := redis.NewClient(opts)
	subClient := redis.NewClient(opts)

	notifier, err := events.NewRedisNotifier(pubClient, subClient, s.logger)
	if err != nil {
		_ = pubClient.Close()
		_ = subClient.Close()
		return nil, err
	}
	return notifier, nil
}

func (s *Service) redisClient(rawURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	s.closers = append(s.closers, client.Close)
	return client, nil
}

func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

// Start restores the persisted session, subscribes the session manager and runs the
// signature ledger in the background
func (s *Service) Start(ctx context.Context) error {
	if err := s.sessions.Restore(ctx); err != nil {
		if !service.IsRecoverable(err) {
			return fmt.Errorf("failed to restore session: %w", err)
		}
		s.logger.Info("Session not restored", watermill.LogFields{"reason": err.Error()})
	}

	if err := s.sessions.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	// the ledger follows the session address
	s.stopTracking = s.sessions.OnChange(func(session core.Session) {
		if err := s.ledger.Track(runCtx, session.Address); err != nil {
			s.logger.Error("Failed to track signature", err, watermill.LogFields{"address": session.Address})
		}
	})
	if err := s.ledger.Track(ctx, s.sessions.Session().Address); err != nil {
		s.logger.Error("Failed to read signature", err, nil)
	}

	go func() {
		defer close(s.done)
		if err := s.ledger.Run(runCtx); err != nil {
			s.logger.Error("Signature ledger stopped", err, nil)
		}
	}()

	return nil
}

// Close stops background work and releases the store and event connections
func (s *Service) Close() error {
	if s.stopTracking != nil {
		s.stopTracking()
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Handler returns the HTTP login surface
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Store returns the persisted key-value store shared by every component
func (s *Service) Store() ports.Store {
	return s.store
}

// DisconnectWallet drops the local wallet connection as if the wallet itself disconnected
func (s *Service) DisconnectWallet(ctx context.Context) error {
	return s.connector.Revoke(ctx)
}

// Session returns the current session
func (s *Service) Session() core.Session {
	return s.auth.Session()
}

// LoginWithAddress authenticates a manually entered address
func (s *Service) LoginWithAddress(ctx context.Context, address string) (core.Session, error) {
	return s.auth.LoginWithAddress(ctx, address)
}

// LoginWithSecret derives the address from secret and authenticates it
func (s *Service) LoginWithSecret(ctx context.Context, secret string) (core.Session, error) {
	return s.auth.LoginWithSecret(ctx, secret)
}

// BeginFederatedLogin returns the authorization URL of providerID
func (s *Service) BeginFederatedLogin(ctx context.Context, providerID string) (string, error) {
	return s.auth.BeginFederatedLogin(ctx, providerID)
}

// CompleteFederatedLogin handles the provider callback
func (s *Service) CompleteFederatedLogin(ctx context.Context, params service.CallbackParams) (*service.FederatedLogin, error) {
	return s.auth.CompleteFederatedLogin(ctx, params)
}

// LinkFederatedAddress links the pending federated subject to address
func (s *Service) LinkFederatedAddress(ctx context.Context, address string) (core.Session, error) {
	return s.auth.LinkFederatedAddress(ctx, address)
}

// Logout ends the session; false means a logout was already running
func (s *Service) Logout(ctx context.Context) bool {
	return s.auth.Logout(ctx)
}

// Signature returns the signature record of the current address
func (s *Service) Signature() core.SignatureRecord {
	return s.ledger.Record()
}
