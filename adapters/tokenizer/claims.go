package tokenizer

import "github.com/golang-jwt/jwt/v5"

// CredentialClaims are the claims of a session credential.
// The subject is the wallet address and exp is the validity rule.
type CredentialClaims struct {
	jwt.RegisteredClaims
	Method string `json:"mth,omitempty"` // login method that obtained the address
}
