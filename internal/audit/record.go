package audit

// TokenAuditRecord es el registro de auditoría de cada token firmado. Se
// publica tal cual al message bus; si eso falla, va como JSON al object
// storage. El formato es contrato con los consumidores del stream: no
// renombrar campos.
type TokenAuditRecord struct {
	JWTID            string `json:"jwtId"`
	CorrelationID    string `json:"correlationId"`
	IssuedAt         int64  `json:"issuedAt"`
	ClientID         string `json:"clientId"`
	OrganizationID   string `json:"organizationId"`
	AgreementID      string `json:"agreementId"`
	EServiceID       string `json:"eserviceId"`
	DescriptorID     string `json:"descriptorId"`
	PurposeID        string `json:"purposeId"`
	PurposeVersionID string `json:"purposeVersionId"`
	Algorithm        string `json:"algorithm"`
	KeyID            string `json:"keyId"`
	Audience         string `json:"audience"`
	Subject          string `json:"subject"`
	NotBefore        int64  `json:"notBefore"`
	ExpirationTime   int64  `json:"expirationTime"`
	Issuer           string `json:"issuer"`

	ClientAssertion ClientAssertionAudit `json:"clientAssertion"`
}

// ClientAssertionAudit es la foto de la assertion que presentó el cliente.
type ClientAssertionAudit struct {
	Algorithm      string `json:"algorithm"`
	Audience       string `json:"audience"`
	ExpirationTime int64  `json:"expirationTime"`
	IssuedAt       int64  `json:"issuedAt"`
	Issuer         string `json:"issuer"`
	JWTID          string `json:"jwtId"`
	KeyID          string `json:"keyId"`
	Subject        string `json:"subject"`
}
