package model

// ItemState es la proyección binaria del estado de dominio usada por la
// autorización. Nunca se persiste el estado "rico" (suspended, draft, ...):
// todo lo que no habilita emisión de tokens es inactive.
type ItemState string

const (
	ItemStateActive   ItemState = "ACTIVE"
	ItemStateInactive ItemState = "INACTIVE"
)

// ClientKind distingue clientes API (sin purpose) de clientes consumer
// (atados a un purpose y a la cadena agreement/descriptor).
type ClientKind string

const (
	ClientKindAPI      ClientKind = "API"
	ClientKindConsumer ClientKind = "CONSUMER"
)

// AgreementStateToItemState: un agreement habilita tokens solo si está activo.
func AgreementStateToItemState(state string) ItemState {
	if state == AgreementStateActive {
		return ItemStateActive
	}
	return ItemStateInactive
}

// DescriptorStateToItemState: solo published habilita. Deprecated/archived/draft → inactive.
func DescriptorStateToItemState(state string) ItemState {
	if state == DescriptorStatePublished {
		return ItemStateActive
	}
	return ItemStateInactive
}

// PurposeStateToItemState deriva el estado del purpose a partir de sus
// versiones: activo si al menos una versión está en estado active.
func PurposeStateToItemState(versions []PurposeVersion) ItemState {
	for _, v := range versions {
		if v.State == PurposeVersionStateActive {
			return ItemStateActive
		}
	}
	return ItemStateInactive
}

// ActivePurposeVersionID retorna el id de la primera versión activa, o "" si
// no hay ninguna.
func ActivePurposeVersionID(versions []PurposeVersion) string {
	for _, v := range versions {
		if v.State == PurposeVersionStateActive {
			return v.ID
		}
	}
	return ""
}

// Estados de dominio crudos (tal como llegan en los eventos).
const (
	AgreementStateActive    = "ACTIVE"
	AgreementStateSuspended = "SUSPENDED"
	AgreementStateArchived  = "ARCHIVED"

	DescriptorStatePublished  = "PUBLISHED"
	DescriptorStateSuspended  = "SUSPENDED"
	DescriptorStateDeprecated = "DEPRECATED"
	DescriptorStateArchived   = "ARCHIVED"

	PurposeVersionStateActive    = "ACTIVE"
	PurposeVersionStateSuspended = "SUSPENDED"
	PurposeVersionStateArchived  = "ARCHIVED"
)
