// Package attestation verifies eligibility tokens minted by the external KYC
// collaborator. Tokens carry the donor's self-certified flags; this engine
// checks token integrity and flag presence, never flag truthfulness.
package attestation

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
	dErrors "fecguard/pkg/domain-errors"
)

// Claims are the attestation JWT claims issued per donor.
type Claims struct {
	DonorID       string `json:"donor_id"`
	Citizenship   bool   `json:"citizenship"`
	OwnFunds      bool   `json:"own_funds"`
	NotCorporate  bool   `json:"not_corporate"`
	NotContractor bool   `json:"not_contractor"`
	Age           bool   `json:"age"`
	jwt.RegisteredClaims
}

// Verifier validates attestation tokens with a shared HMAC key.
type Verifier struct {
	signingKey []byte
	issuer     string
}

// NewVerifier constructs an attestation token verifier.
func NewVerifier(signingKey, issuer string) *Verifier {
	return &Verifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Verify parses the token, checks the signature and issuer, and returns the
// attestation flags bound to the donor.
func (v *Verifier) Verify(tokenString string, donorID id.DonorID) (models.Attestations, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Attestations{}, dErrors.New(dErrors.CodeUnauthorized, "attestation token has expired")
		}
		return models.Attestations{}, dErrors.New(dErrors.CodeUnauthorized, "invalid attestation token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return models.Attestations{}, dErrors.New(dErrors.CodeUnauthorized, "invalid attestation token claims")
	}
	if claims.DonorID != donorID.String() {
		return models.Attestations{}, dErrors.New(dErrors.CodeUnauthorized, "attestation token is bound to a different donor")
	}

	return models.Attestations{
		Citizenship:   claims.Citizenship,
		OwnFunds:      claims.OwnFunds,
		NotCorporate:  claims.NotCorporate,
		NotContractor: claims.NotContractor,
		Age:           claims.Age,
	}, nil
}

// Issue mints a signed attestation token. Production tokens come from the KYC
// collaborator; this is used by tests and local tooling.
func (v *Verifier) Issue(donorID id.DonorID, attestations models.Attestations, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DonorID:       donorID.String(),
		Citizenship:   attestations.Citizenship,
		OwnFunds:      attestations.OwnFunds,
		NotCorporate:  attestations.NotCorporate,
		NotContractor: attestations.NotContractor,
		Age:           attestations.Age,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
		},
	})
	return token.SignedString(v.signingKey)
}
