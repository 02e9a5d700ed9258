package model

import "time"

// Las entradas del Token Generation Index comparten una tabla pero tienen dos
// formas. El discriminante es el prefijo de la PK (CLIENTKID# vs
// CLIENTKIDPURPOSE#), nunca la presencia/ausencia de campos.

// TokenGenStatesEntry es la unión de las dos formas.
type TokenGenStatesEntry interface {
	EntryPK() string
	EntryClientKind() ClientKind
	EntryPublicKey() string
}

// TokenGenStatesClientEntry: clave de un cliente API, sin purpose.
// PK = CLIENTKID#{clientId}#{kid}.
type TokenGenStatesClientEntry struct {
	PK            string     `json:"PK"`
	ClientKind    ClientKind `json:"clientKind"`
	PublicKey     string     `json:"publicKey"`
	ConsumerID    string     `json:"consumerId"`
	GSIPKClientID string     `json:"GSIPK_clientId"`
	GSIPKKid      string     `json:"GSIPK_kid"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (e *TokenGenStatesClientEntry) EntryPK() string             { return e.PK }
func (e *TokenGenStatesClientEntry) EntryClientKind() ClientKind { return e.ClientKind }
func (e *TokenGenStatesClientEntry) EntryPublicKey() string      { return e.PublicKey }

// TokenGenStatesClientPurposeEntry: binding cliente+kid+purpose con los
// campos denormalizados desde el Platform State Store.
// PK = CLIENTKIDPURPOSE#{clientId}#{kid}#{purposeId}.
type TokenGenStatesClientPurposeEntry struct {
	PK         string     `json:"PK"`
	ClientKind ClientKind `json:"clientKind"`
	PublicKey  string     `json:"publicKey"`
	ConsumerID string     `json:"consumerId"`

	// agreement (denormalizado)
	AgreementID               string    `json:"agreementId,omitempty"`
	AgreementState            ItemState `json:"agreementState,omitempty"`
	GSIPKConsumerIDEServiceID string    `json:"GSIPK_consumerId_eserviceId,omitempty"`

	// descriptor (denormalizado)
	GSIPKEServiceIDDescriptorID string    `json:"GSIPK_eserviceId_descriptorId,omitempty"`
	DescriptorState             ItemState `json:"descriptorState,omitempty"`
	DescriptorAudience          []string  `json:"descriptorAudience,omitempty"`
	DescriptorVoucherLifespan   int64     `json:"descriptorVoucherLifespan,omitempty"`

	// purpose (denormalizado)
	GSIPKPurposeID   string    `json:"GSIPK_purposeId"`
	PurposeState     ItemState `json:"purposeState,omitempty"`
	PurposeVersionID string    `json:"purposeVersionId,omitempty"`

	// índices auxiliares
	GSIPKKid               string `json:"GSIPK_kid"`
	GSIPKClientID          string `json:"GSIPK_clientId"`
	GSIPKClientIDPurposeID string `json:"GSIPK_clientId_purposeId"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *TokenGenStatesClientPurposeEntry) EntryPK() string             { return e.PK }
func (e *TokenGenStatesClientPurposeEntry) EntryClientKind() ClientKind { return e.ClientKind }
func (e *TokenGenStatesClientPurposeEntry) EntryPublicKey() string      { return e.PublicKey }
