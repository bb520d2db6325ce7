package federation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
)

// SimulatedResolver produces deterministic attributes from the authorization code.
// It never contacts a provider and is meant for development setups.
type SimulatedResolver struct{}

var _ ports.AssertionResolver = SimulatedResolver{}

// Resolve derives a fiscal code and fixed attributes from providerID and code
func (SimulatedResolver) Resolve(ctx context.Context, providerID, code, nonce string) (*core.IdentityAssertion, error) {
	sum := sha256.Sum256([]byte(providerID + ":" + code))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))

	return AssertionFromClaims(providerID, "", map[string]interface{}{
		ClaimFiscalNumber: "TINIT-" + fiscalCode(digest),
		ClaimGivenName:    "Mario",
		ClaimFamilyName:   "Rossi",
		ClaimEmail:        "mario.rossi." + strings.ToLower(digest[:6]) + "@example.it",
		ClaimPhoneNumber:  "+39333" + digitsOf(digest, 7),
		ClaimBirthdate:    "1980-01-01",
		ClaimPlaceOfBirth: "H501",
		ClaimGender:       "M",
		ClaimCompanyName:  "Galleria Demo S.r.l.",
		ClaimCompanyRole:  "Legale rappresentante",
	})
}

// fiscalCode shapes digest into the 16-character layout of an Italian fiscal code
func fiscalCode(digest string) string {
	letters := lettersOf(digest, 6)
	return letters + digitsOf(digest, 2) + "A" + digitsOf(digest[8:], 2) + "H501" + lettersOf(digest[16:], 1)
}

func lettersOf(s string, n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n && i < len(s); i++ {
		b.WriteByte('A' + s[i]%26)
	}
	return b.String()
}

func digitsOf(s string, n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n && i < len(s); i++ {
		b.WriteByte('0' + s[i]%10)
	}
	return b.String()
}
