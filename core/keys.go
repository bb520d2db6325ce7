package core

// Persisted keys read and written by the session core.
const (
	KeyAddress         = "wallet_address"
	KeyWasConnected    = "wallet_was_connected"
	KeyAccountHint     = "wallet_account_hint"
	KeyAuthToken       = "wallet_auth_token"
	KeySessionEvent    = "wallet_session_event"
	KeyAuthState       = "spid_auth_state"
	KeyPendingSubject  = "spid_pending_subject"
	KeySubjectLinks    = "spid_subject_to_address_links"
	KeyLocalConnection = "local_wallet_connection"

	signaturePrefix       = "wallet_signature_"
	signatureBase64Prefix = "wallet_signature_base64_"
	signatureTxPrefix     = "wallet_signature_tx_"
)

// Notification topics.
const (
	TopicCredentialInvalid = "credential.invalid"
	TopicSignatureUpdated  = "signature.updated"
	TopicStorageChanged    = "storage.changed"
	TopicLogout            = "session.logout"
	TopicNavigate          = "session.navigate"
	TopicWalletDisconnect  = "wallet.disconnected"
)

// SignatureKey holds the "signed" flag for address.
func SignatureKey(address string) string { return signaturePrefix + address }

// SignatureBase64Key holds the signed transaction payload for address.
func SignatureBase64Key(address string) string { return signatureBase64Prefix + address }

// SignatureTxKey holds the signed transaction id for address.
func SignatureTxKey(address string) string { return signatureTxPrefix + address }

// SignatureKeys returns the three ledger keys of address.
func SignatureKeys(address string) []string {
	return []string{SignatureKey(address), SignatureBase64Key(address), SignatureTxKey(address)}
}

// SessionKeys are the session pointer keys that must always be purged together.
func SessionKeys() []string {
	return []string{KeyAddress, KeyWasConnected, KeyAccountHint}
}

// PurgeKeys lists every authentication artifact to delete on logout for address.
// An empty address purges only the address-independent keys.
func PurgeKeys(address string) []string {
	keys := append(SessionKeys(), KeyAuthToken, KeySessionEvent)
	if address != "" {
		keys = append(keys, SignatureKeys(address)...)
	}
	return keys
}
