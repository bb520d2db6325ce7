package store

import (
	"context"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/ThreeDotsLabs/watermill"
)

// Notifying wraps a Store and raises a storage.changed notification, with the key as payload,
// after every successful write. Notification failures are logged and never fail the write.
type Notifying struct {
	ports.Store
	notifier ports.Notifier
	logger   watermill.LoggerAdapter
}

// NewNotifying decorates next with storage-change notifications
func NewNotifying(next ports.Store, notifier ports.Notifier, logger watermill.LoggerAdapter) *Notifying {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Notifying{
		Store:    next,
		notifier: notifier,
		logger:   logger,
	}
}

// Set writes key and notifies on success
func (s *Notifying) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.Store.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	s.changed(ctx, key)
	return nil
}

// Delete removes keys and notifies once per key on success
func (s *Notifying) Delete(ctx context.Context, keys ...string) error {
	if err := s.Store.Delete(ctx, keys...); err != nil {
		return err
	}
	s.changed(ctx, keys...)
	return nil
}

// CompareAndDelete notifies only when the key was actually deleted
func (s *Notifying) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted, err := s.Store.CompareAndDelete(ctx, key, expected)
	if err != nil || !deleted {
		return deleted, err
	}
	s.changed(ctx, key)
	return true, nil
}

func (s *Notifying) changed(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.notifier.Notify(ctx, core.TopicStorageChanged, key); err != nil {
			s.logger.Error("Failed to notify storage change", err, watermill.LogFields{"key": key})
		}
	}
}
