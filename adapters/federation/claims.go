package federation

import (
	"fmt"
	"strings"

	"github.com/ArtCertify/ArtCertify-sub001/core"
)

// Claim names released by SPID/CIE OpenID Connect providers
const (
	ClaimFiscalNumber = "https://attributes.eid.gov.it/fiscal_number"
	ClaimCompanyName  = "https://attributes.eid.gov.it/company_name"
	ClaimCompanyRole  = "https://attributes.eid.gov.it/company_role"
	ClaimPlaceOfBirth = "https://attributes.eid.gov.it/place_of_birth"
	ClaimGivenName    = "given_name"
	ClaimFamilyName   = "family_name"
	ClaimEmail        = "email"
	ClaimPhoneNumber  = "phone_number"
	ClaimBirthdate    = "birthdate"
	ClaimGender       = "gender"
)

// AssertionFromClaims maps ID-token claims to an identity assertion.
// The subject is the fiscal number without its "TINIT-" prefix, falling back to sub.
func AssertionFromClaims(providerID, subject string, claims map[string]interface{}) (*core.IdentityAssertion, error) {
	subjectID := stringClaim(claims, ClaimFiscalNumber)
	subjectID = strings.TrimPrefix(subjectID, "TINIT-")
	if subjectID == "" {
		subjectID = subject
	}
	if subjectID == "" {
		return nil, fmt.Errorf("missing subject in identity claims: %w", core.ErrProviderError)
	}

	return &core.IdentityAssertion{
		SubjectID:        subjectID,
		GivenName:        stringClaim(claims, ClaimGivenName),
		FamilyName:       stringClaim(claims, ClaimFamilyName),
		Email:            stringClaim(claims, ClaimEmail),
		Phone:            stringClaim(claims, ClaimPhoneNumber),
		BirthDate:        stringClaim(claims, ClaimBirthdate),
		BirthPlace:       stringClaim(claims, ClaimPlaceOfBirth),
		Sex:              stringClaim(claims, ClaimGender),
		Organization:     stringClaim(claims, ClaimCompanyName),
		OrganizationRole: stringClaim(claims, ClaimCompanyRole),
		ProviderID:       providerID,
	}, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
