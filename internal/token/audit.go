package token

import (
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/pagopa/interop-token-platform/internal/audit"
	"github.com/pagopa/interop-token-platform/internal/signer"
)

// buildAuditRecord arma el registro de auditoría desde el token recién
// firmado y la assertion presentada.
func buildAuditRecord(tok *GeneratedToken, claims jwtv5.MapClaims, a *ClientAssertion, correlationID string, sgn signer.Signer) audit.TokenAuditRecord {
	return audit.TokenAuditRecord{
		JWTID:            tok.JWTID,
		CorrelationID:    correlationID,
		IssuedAt:         tok.IssuedAt.Unix(),
		ClientID:         a.ClientID,
		OrganizationID:   claimString(claims, "organizationId"),
		AgreementID:      claimString(claims, "agreementId"),
		EServiceID:       claimString(claims, "eserviceId"),
		DescriptorID:     claimString(claims, "descriptorId"),
		PurposeID:        claimString(claims, "purposeId"),
		PurposeVersionID: claimString(claims, "purposeVersionId"),
		Algorithm:        sgn.Algorithm(),
		KeyID:            sgn.KID(),
		Audience:         audString(claims["aud"]),
		Subject:          claimString(claims, "sub"),
		NotBefore:        tok.IssuedAt.Unix(),
		ExpirationTime:   tok.ExpiresAt.Unix(),
		Issuer:           claimString(claims, "iss"),
		ClientAssertion: audit.ClientAssertionAudit{
			Algorithm:      a.Algorithm,
			Audience:       strings.Join(a.Audience, ","),
			ExpirationTime: a.ExpiresAt.Unix(),
			IssuedAt:       a.IssuedAt.Unix(),
			Issuer:         a.Issuer,
			JWTID:          a.JWTID,
			KeyID:          a.KID,
			Subject:        a.Subject,
		},
	}
}

func claimString(claims jwtv5.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func audString(aud any) string {
	switch v := aud.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	default:
		return ""
	}
}
