package core

import "time"

// Session is the process-wide authentication state.
type Session struct {
	Address       string `json:"address"`
	Authenticated bool   `json:"authenticated"`
}

// AuthorizationState is the anti-replay pair bound to a single federated login attempt
type AuthorizationState struct {
	State    string `json:"state"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"issuedAt"` // Unix milliseconds
	Provider string `json:"provider,omitempty"`
}

// IssuedTime returns IssuedAt as a time.Time
func (s AuthorizationState) IssuedTime() time.Time {
	return time.UnixMilli(s.IssuedAt)
}

// Age returns how long ago the state was issued relative to now
func (s AuthorizationState) Age(now time.Time) time.Duration {
	return now.Sub(s.IssuedTime())
}

// IdentityAssertion holds the personal attributes released by the identity provider.
// It is never persisted; only the derived subject→address link is.
type IdentityAssertion struct {
	SubjectID        string `json:"subject_id"` // fiscal code or equivalent
	GivenName        string `json:"given_name"`
	FamilyName       string `json:"family_name"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	BirthDate        string `json:"birth_date,omitempty"`
	BirthPlace       string `json:"birth_place,omitempty"`
	Sex              string `json:"sex,omitempty"`
	Organization     string `json:"organization,omitempty"`
	OrganizationRole string `json:"organization_role,omitempty"`
	ProviderID       string `json:"provider_id"`
}

// SignatureRecord tells whether the required authorization transaction was signed for an address
type SignatureRecord struct {
	Address         string `json:"address"`
	Signed          bool   `json:"signed"`
	SignedTxPayload string `json:"signed_tx_payload,omitempty"` // base64
	SignedTxID      string `json:"signed_tx_id,omitempty"`
}

// WalletAccount is an account produced by local derivation
type WalletAccount struct {
	Address   string
	PublicKey []byte
}
