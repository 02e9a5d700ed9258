// Package token orquesta la emisión de tokens: validación de la client
// assertion, resolución en el Token Generation Index, evaluación de estado,
// rate limiting, firma y auditoría obligatoria. Máquina de estados por
// request, terminal en el primer fallo.
package token

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagopa/interop-token-platform/internal/audit"
	"github.com/pagopa/interop-token-platform/internal/authz"
	"github.com/pagopa/interop-token-platform/internal/kvstore"
	"github.com/pagopa/interop-token-platform/internal/model"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	"github.com/pagopa/interop-token-platform/internal/rate"
	"github.com/pagopa/interop-token-platform/internal/signer"
	"github.com/pagopa/interop-token-platform/internal/tokengenstate"
)

type Config struct {
	// Issuer del interop token ("iss").
	Issuer string

	// AcceptedAudiences: valores de aud admitidos en la client assertion.
	AcceptedAudiences []string

	// APITokenAudience / APITokenDuration: aud y TTL para tokens de clientes
	// API (sin descriptor del que copiar audience/voucherLifespan).
	APITokenAudience []string
	APITokenDuration time.Duration
}

type Service struct {
	states  *tokengenstate.Store
	limiter rate.Limiter
	auditor *audit.Writer
	signer  signer.Signer
	cfg     Config
	log     *zap.Logger
}

func NewService(states *tokengenstate.Store, limiter rate.Limiter, auditor *audit.Writer, sgn signer.Signer, cfg Config, log *zap.Logger) *Service {
	return &Service{states: states, limiter: limiter, auditor: auditor, signer: sgn, cfg: cfg, log: log}
}

// Request es la request del token endpoint (OAuth2 client credentials).
type Request struct {
	ClientID            string
	ClientAssertion     string
	ClientAssertionType string
	GrantType           string
	CorrelationID       string
}

// GeneratedToken es el interop token ya firmado.
type GeneratedToken struct {
	Serialized string
	JWTID      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Result: o un token con el estado del limiter, o limitReached (que NO es
// un error: no se firmó ni auditó nada).
type Result struct {
	LimitReached        bool
	RateLimitedTenantID string
	Token               *GeneratedToken
	RateLimiterStatus   rate.Status
}

// GenerateToken ejecuta el flujo completo. El orden importa: el limiter se
// consulta antes de las dos I/O caras (firma y auditoría); la auditoría va
// después de firmar y su fallo descarta el token ya firmado.
func (s *Service) GenerateToken(ctx context.Context, req Request) (Result, error) {
	// 1. forma de la request
	if err := ValidateRequest(req.GrantType, req.ClientAssertionType); err != nil {
		return Result{}, err
	}

	// 2. assertion: estructura
	assertion, err := ParseClientAssertion(req.ClientAssertion, req.ClientID, s.cfg.AcceptedAudiences)
	if err != nil {
		return Result{}, err
	}

	// 3-5. resolver entrada y chequear coherencia de forma/kind
	entry, err := s.resolveEntry(ctx, assertion)
	if err != nil {
		return Result{}, err
	}

	// 6. firma de la assertion contra la clave guardada
	if err := VerifySignature(assertion, entry.EntryPublicKey()); err != nil {
		return Result{}, err
	}

	// 7. estado de plataforma
	if err := authz.Evaluate(entry, req.GrantType); err != nil {
		if verr, ok := err.(*authz.ValidationError); ok {
			return Result{}, &Error{Code: CodePlatformStateValidationFailed, Reasons: verr.Reasons}
		}
		return Result{}, err
	}

	organizationID := organizationOf(entry)

	// 8. rate limit: corta ANTES de firmar y auditar
	status, err := s.limiter.Consume(ctx, organizationID)
	if err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}
	if status.LimitReached {
		s.log.Info("token request rate limited",
			logger.OrganizationID(organizationID),
			logger.ClientID(assertion.ClientID))
		return Result{
			LimitReached:        true,
			RateLimitedTenantID: organizationID,
			RateLimiterStatus:   status,
		}, nil
	}

	// 9. firmar el interop token
	generated, claims, err := s.mint(ctx, entry, assertion)
	if err != nil {
		return Result{}, err
	}

	// 10. auditoría obligatoria, sincrónica, antes de devolver nada
	rec := buildAuditRecord(generated, claims, assertion, req.CorrelationID, s.signer)
	if err := s.auditor.Record(ctx, rec); err != nil {
		if _, ok := err.(*audit.FallbackError); ok {
			return Result{}, newErr(CodeFallbackAuditFailed, err.Error())
		}
		return Result{}, err
	}

	// 11.
	return Result{Token: generated, RateLimiterStatus: status}, nil
}

// resolveEntry: client-purpose si la assertion trae purposeId, client si no.
// Después valida linkage y coherencia kind/forma.
func (s *Service) resolveEntry(ctx context.Context, a *ClientAssertion) (model.TokenGenStatesEntry, error) {
	if a.PurposeID != "" {
		e, err := s.states.GetClientPurposeEntry(ctx, a.ClientID, a.KID, a.PurposeID)
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, newErr(CodeTokenGenerationStatesEntryNotFound,
				fmt.Sprintf("no entry for client %s kid %s purpose %s", a.ClientID, a.KID, a.PurposeID))
		}
		if err != nil {
			return nil, err
		}
		// 4. una entrada client-purpose sin agreement no puede emitir
		if e.AgreementID == "" || e.GSIPKEServiceIDDescriptorID == "" {
			return nil, newErr(CodeInvalidTokenClientKidPurposeEntry,
				fmt.Sprintf("entry %s is missing agreement linkage", e.PK))
		}
		// 5. forma purpose-bound exige kind consumer
		if e.ClientKind != model.ClientKindConsumer {
			return nil, newErr(CodeKeyTypeMismatch,
				fmt.Sprintf("client-purpose entry %s has kind %s", e.PK, e.ClientKind))
		}
		return e, nil
	}

	e, err := s.states.GetClientEntry(ctx, a.ClientID, a.KID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, newErr(CodeTokenGenerationStatesEntryNotFound,
			fmt.Sprintf("no entry for client %s kid %s", a.ClientID, a.KID))
	}
	if err != nil {
		return nil, err
	}
	// 5. forma client exige kind api
	if e.ClientKind != model.ClientKindAPI {
		return nil, newErr(CodeKeyTypeMismatch,
			fmt.Sprintf("client entry %s has kind %s", e.PK, e.ClientKind))
	}
	return e, nil
}

// mint arma los claims desde la entrada, pide la firma al signer remoto y
// ensambla el JWS. Una firma vacía es un error fatal de firma.
func (s *Service) mint(ctx context.Context, entry model.TokenGenStatesEntry, a *ClientAssertion) (*GeneratedToken, jwtv5.MapClaims, error) {
	now := time.Now().UTC()
	jwtID := uuid.NewString()

	claims := jwtv5.MapClaims{
		"iss": s.cfg.Issuer,
		"sub": a.ClientID,
		"jti": jwtID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}

	var expiresAt time.Time
	switch e := entry.(type) {
	case *model.TokenGenStatesClientPurposeEntry:
		eserviceID, descriptorID, ok := model.SplitEServiceDescriptorKey(e.GSIPKEServiceIDDescriptorID)
		if !ok {
			return nil, nil, newErr(CodeInvalidTokenClientKidPurposeEntry,
				fmt.Sprintf("entry %s has malformed eservice-descriptor key", e.PK))
		}
		expiresAt = now.Add(time.Duration(e.DescriptorVoucherLifespan) * time.Second)
		claims["aud"] = audClaim(e.DescriptorAudience)
		claims["organizationId"] = e.ConsumerID
		claims["agreementId"] = e.AgreementID
		claims["eserviceId"] = eserviceID
		claims["descriptorId"] = descriptorID
		claims["purposeId"] = e.GSIPKPurposeID
		claims["purposeVersionId"] = e.PurposeVersionID

	case *model.TokenGenStatesClientEntry:
		expiresAt = now.Add(s.cfg.APITokenDuration)
		claims["aud"] = audClaim(s.cfg.APITokenAudience)
		claims["organizationId"] = e.ConsumerID

	default:
		return nil, nil, fmt.Errorf("unknown entry type %T", entry)
	}
	claims["exp"] = expiresAt.Unix()

	method := jwtv5.GetSigningMethod(s.signer.Algorithm())
	if method == nil {
		return nil, nil, newErr(CodeTokenSigningFailed, fmt.Sprintf("unknown signing algorithm %q", s.signer.Algorithm()))
	}
	tok := jwtv5.NewWithClaims(method, claims)
	tok.Header["kid"] = s.signer.KID()
	tok.Header["typ"] = "at+jwt"

	signingInput, err := tok.SigningString()
	if err != nil {
		return nil, nil, newErr(CodeTokenSigningFailed, err.Error())
	}
	sig, err := s.signer.Sign(ctx, []byte(signingInput))
	if err != nil {
		return nil, nil, newErr(CodeTokenSigningFailed, err.Error())
	}
	if len(sig) == 0 {
		return nil, nil, newErr(CodeTokenSigningFailed, "signer returned empty signature")
	}

	serialized := signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
	return &GeneratedToken{
		Serialized: serialized,
		JWTID:      jwtID,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
	}, claims, nil
}

func organizationOf(entry model.TokenGenStatesEntry) string {
	switch e := entry.(type) {
	case *model.TokenGenStatesClientPurposeEntry:
		return e.ConsumerID
	case *model.TokenGenStatesClientEntry:
		return e.ConsumerID
	default:
		return ""
	}
}

func audClaim(aud []string) any {
	if len(aud) == 1 {
		return aud[0]
	}
	return aud
}
