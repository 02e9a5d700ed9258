package model

import (
	"encoding/json"
	"time"
)

// EventEnvelope es el sobre que llega desde el bus de eventos de dominio.
// Type selecciona el handler; Payload es el evento versionado (JSON).
// Version es la versión del stream: el guard de idempotencia de los stores.
type EventEnvelope struct {
	StreamID     string          `json:"stream_id"`
	SequenceNum  int64           `json:"sequence_num"`
	Version      int64           `json:"version"`
	Type         string          `json:"type"`
	EventVersion int             `json:"event_version"`
	Payload      json.RawMessage `json:"payload"`
	LogDate      time.Time       `json:"log_date"`
}

// Tipos de evento consumidos por los writers. Lo que no está acá se ignora
// (ack sin efecto): esos eventos no tocan el índice de autorización.
const (
	// catálogo
	EventDescriptorPublished     = "EServiceDescriptorPublished"
	EventDescriptorActivated     = "EServiceDescriptorActivated"
	EventDescriptorSuspended     = "EServiceDescriptorSuspended"
	EventDescriptorArchived      = "EServiceDescriptorArchived"
	EventDescriptorQuotasUpdated = "EServiceDescriptorQuotasUpdated"

	// agreement
	EventAgreementAdded       = "AgreementAdded"
	EventAgreementActivated   = "AgreementActivated"
	EventAgreementSuspended   = "AgreementSuspended"
	EventAgreementUnsuspended = "AgreementUnsuspended"
	EventAgreementUpgraded    = "AgreementUpgraded"
	EventAgreementArchived    = "AgreementArchived"

	// purpose
	EventPurposeVersionActivated   = "PurposeVersionActivated"
	EventPurposeVersionSuspended   = "PurposeVersionSuspended"
	EventPurposeVersionUnsuspended = "PurposeVersionUnsuspended"
	EventPurposeVersionArchived    = "PurposeVersionArchived"
)

// EServiceDescriptorEvent: payload de los eventos de catálogo. Lleva el
// descriptor completo tal como quedó después de la transición.
type EServiceDescriptorEvent struct {
	EServiceID string     `json:"eserviceId"`
	Descriptor Descriptor `json:"descriptor"`
}

type Descriptor struct {
	ID              string   `json:"id"`
	State           string   `json:"state"`
	Audience        []string `json:"audience"`
	VoucherLifespan int64    `json:"voucherLifespan"`
}

// AgreementEvent: payload de los eventos de agreement. El agreement viaja
// entero; el writer proyecta solo lo relevante para autorización.
type AgreementEvent struct {
	Agreement Agreement `json:"agreement"`
}

type Agreement struct {
	ID           string              `json:"id"`
	ConsumerID   string              `json:"consumerId"`
	EServiceID   string              `json:"eserviceId"`
	DescriptorID string              `json:"descriptorId"`
	State        string              `json:"state"`
	Timestamps   AgreementTimestamps `json:"timestamps"`
}

type AgreementTimestamps struct {
	CreatedAt   time.Time  `json:"createdAt"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
}

// PurposeEvent: payload de los eventos de purpose. Incluye todas las
// versiones para que el writer recompute el ItemState derivado.
type PurposeEvent struct {
	Purpose Purpose `json:"purpose"`
}

type Purpose struct {
	ID         string           `json:"id"`
	EServiceID string           `json:"eserviceId"`
	ConsumerID string           `json:"consumerId"`
	Versions   []PurposeVersion `json:"versions"`
}

type PurposeVersion struct {
	ID    string `json:"id"`
	State string `json:"state"`
}
