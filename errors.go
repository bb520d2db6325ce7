package artcertify

import (
	"github.com/ArtCertify/ArtCertify-sub001/core"
)

var (
	// ErrInvalidAddressFormat is returned when an address does not match the address rule
	ErrInvalidAddressFormat = core.ErrInvalidAddressFormat

	// ErrInvalidAuthorizationState is returned for an expired, unknown or replayed callback state
	ErrInvalidAuthorizationState = core.ErrInvalidAuthorizationState

	// ErrProviderError is returned when the identity provider reported an error
	ErrProviderError = core.ErrProviderError

	// ErrLinkingRequired is returned when a federated subject has no linked address yet
	ErrLinkingRequired = core.ErrLinkingRequired

	// ErrTokenExpired is returned when the persisted credential is no longer valid
	ErrTokenExpired = core.ErrTokenExpired

	// ErrReconnectionFailed is returned when the wallet could not be reconnected on restore
	ErrReconnectionFailed = core.ErrReconnectionFailed

	// ErrUnknownProvider is returned for a provider id that is not configured
	ErrUnknownProvider = core.ErrUnknownProvider
)
