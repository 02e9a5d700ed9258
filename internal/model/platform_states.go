package model

import "time"

// PlatformStatesAgreementEntry: snapshot canónico de un agreement.
// PK = AGREEMENT#{agreementId}. Version espeja la versión del stream de
// eventos que lo originó; una escritura con versión <= a la almacenada se
// rechaza de forma idempotente.
type PlatformStatesAgreementEntry struct {
	PK                        string    `json:"PK"`
	State                     ItemState `json:"state"`
	Version                   int64     `json:"version"`
	UpdatedAt                 time.Time `json:"updatedAt"`
	GSIPKConsumerIDEServiceID string    `json:"GSIPK_consumerId_eserviceId"`
	AgreementTimestamp        time.Time `json:"agreementTimestamp"`
	AgreementDescriptorID     string    `json:"agreementDescriptorId"`
}

// PlatformStatesCatalogEntry: snapshot canónico de un descriptor publicado.
// PK = ESERVICEDESCRIPTOR#{eserviceId}#{descriptorId}.
type PlatformStatesCatalogEntry struct {
	PK                        string    `json:"PK"`
	State                     ItemState `json:"state"`
	DescriptorAudience        []string  `json:"descriptorAudience"`
	DescriptorVoucherLifespan int64     `json:"descriptorVoucherLifespan"`
	Version                   int64     `json:"version"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

// PlatformStatesPurposeEntry: snapshot canónico de un purpose.
// PK = PURPOSE#{purposeId}. State deriva de las versiones del purpose.
type PlatformStatesPurposeEntry struct {
	PK                string    `json:"PK"`
	State             ItemState `json:"state"`
	PurposeVersionID  string    `json:"purposeVersionId"`
	PurposeEServiceID string    `json:"purposeEserviceId"`
	PurposeConsumerID string    `json:"purposeConsumerId"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
