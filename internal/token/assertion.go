package token

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const (
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// tolerancia de reloj para exp/iat/nbf de la assertion
	assertionClockSkew = 30 * time.Second
)

// algoritmos admitidos para la client assertion
var allowedAssertionAlgs = []string{"RS256", "ES256", "EdDSA"}

// ClientAssertion es la assertion ya parseada y validada estructuralmente.
// La firma se verifica DESPUÉS, contra la clave pública guardada en el
// Token Generation Index (no contra lo que diga el token).
type ClientAssertion struct {
	Raw       string
	Algorithm string
	KID       string
	ClientID  string // sub
	PurposeID string // custom claim, opcional
	JWTID     string
	Issuer    string
	Subject   string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidateRequest chequea la forma de la request OAuth2 (paso 1 del flujo).
func ValidateRequest(grantType, assertionType string) error {
	if grantType != "client_credentials" {
		return newErr(CodeClientAssertionRequestValidationFailed, fmt.Sprintf("unsupported grant_type %q", grantType))
	}
	if assertionType != clientAssertionType {
		return newErr(CodeClientAssertionRequestValidationFailed, fmt.Sprintf("unsupported client_assertion_type %q", assertionType))
	}
	return nil
}

// ParseClientAssertion valida la estructura del JWT: claims requeridos,
// algoritmo admitido, kid, ventana de expiración y audience aceptada.
// clientIDParam es el client_id del form (si vino, debe coincidir con sub).
func ParseClientAssertion(raw, clientIDParam string, acceptedAudiences []string) (*ClientAssertion, error) {
	parser := jwtv5.NewParser(jwtv5.WithValidMethods(allowedAssertionAlgs))

	claims := jwtv5.MapClaims{}
	tok, _, err := parser.ParseUnverified(raw, claims)
	if err != nil {
		return nil, newErr(CodeClientAssertionValidationFailed, fmt.Sprintf("malformed assertion: %v", err))
	}

	alg, _ := tok.Header["alg"].(string)
	if !contains(allowedAssertionAlgs, alg) {
		return nil, newErr(CodeClientAssertionValidationFailed, fmt.Sprintf("algorithm %q not allowed", alg))
	}
	kid, _ := tok.Header["kid"].(string)
	if kid == "" {
		return nil, newErr(CodeClientAssertionValidationFailed, "missing kid header")
	}

	a := &ClientAssertion{Raw: raw, Algorithm: alg, KID: kid}

	a.Subject, _ = claims["sub"].(string)
	if a.Subject == "" {
		return nil, newErr(CodeClientAssertionValidationFailed, "missing sub claim")
	}
	a.ClientID = a.Subject
	if clientIDParam != "" && clientIDParam != a.Subject {
		return nil, newErr(CodeClientAssertionValidationFailed, "client_id does not match assertion sub")
	}

	a.Issuer, _ = claims["iss"].(string)
	if a.Issuer == "" {
		return nil, newErr(CodeClientAssertionValidationFailed, "missing iss claim")
	}
	a.JWTID, _ = claims["jti"].(string)
	if a.JWTID == "" {
		return nil, newErr(CodeClientAssertionValidationFailed, "missing jti claim")
	}
	a.PurposeID, _ = claims["purposeId"].(string)

	aud, err := claims.GetAudience()
	if err != nil || len(aud) == 0 {
		return nil, newErr(CodeClientAssertionValidationFailed, "missing aud claim")
	}
	a.Audience = aud
	if !audienceAccepted(aud, acceptedAudiences) {
		return nil, newErr(CodeClientAssertionValidationFailed, "audience not accepted")
	}

	now := time.Now()

	expf, ok := claims["exp"].(float64)
	if !ok {
		return nil, newErr(CodeClientAssertionValidationFailed, "missing exp claim")
	}
	a.ExpiresAt = time.Unix(int64(expf), 0)
	if a.ExpiresAt.Before(now.Add(-assertionClockSkew)) {
		return nil, newErr(CodeClientAssertionValidationFailed, "assertion expired")
	}

	iatf, ok := claims["iat"].(float64)
	if !ok {
		return nil, newErr(CodeClientAssertionValidationFailed, "missing iat claim")
	}
	a.IssuedAt = time.Unix(int64(iatf), 0)
	if a.IssuedAt.After(now.Add(assertionClockSkew)) {
		return nil, newErr(CodeClientAssertionValidationFailed, "assertion issued in the future")
	}

	return a, nil
}

// VerifySignature verifica la firma de la assertion con la clave pública
// PEM guardada en la entrada del índice.
func VerifySignature(a *ClientAssertion, publicKeyPEM string) error {
	key, err := parsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return newErr(CodeClientAssertionSignatureValidationFailed, fmt.Sprintf("stored public key: %v", err))
	}

	parser := jwtv5.NewParser(jwtv5.WithValidMethods(allowedAssertionAlgs))
	tok, err := parser.Parse(a.Raw, func(*jwtv5.Token) (any, error) { return key, nil })
	if err != nil || !tok.Valid {
		return newErr(CodeClientAssertionSignatureValidationFailed, "signature verification failed")
	}
	return nil
}

func parsePublicKeyPEM(pemStr string) (any, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	// PKIX primero (lo normal); PKCS#1 como fallback para claves RSA viejas
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		switch key.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
			return key, nil
		}
		return nil, fmt.Errorf("unsupported public key type %T", key)
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, errors.New("unparseable public key")
}

func audienceAccepted(got, accepted []string) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, g := range got {
		for _, a := range accepted {
			if g == a {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
