package model

import (
	"fmt"
	"strings"
)

// Claves del key-value store. El formato es bit-exact: writers y auth server
// deben generar claves idénticas o la denormalización se corta.
const (
	agreementKeyPrefix        = "AGREEMENT#"
	eserviceDescriptorKeyPfx  = "ESERVICEDESCRIPTOR#"
	purposeKeyPrefix          = "PURPOSE#"
	ClientKidKeyPrefix        = "CLIENTKID#"
	ClientKidPurposeKeyPrefix = "CLIENTKIDPURPOSE#"
)

func AgreementPK(agreementID string) string {
	return agreementKeyPrefix + agreementID
}

func EServiceDescriptorPK(eserviceID, descriptorID string) string {
	return fmt.Sprintf("%s%s#%s", eserviceDescriptorKeyPfx, eserviceID, descriptorID)
}

func PurposePK(purposeID string) string {
	return purposeKeyPrefix + purposeID
}

func ClientKidPK(clientID, kid string) string {
	return fmt.Sprintf("%s%s#%s", ClientKidKeyPrefix, clientID, kid)
}

func ClientKidPurposePK(clientID, kid, purposeID string) string {
	return fmt.Sprintf("%s%s#%s#%s", ClientKidPurposeKeyPrefix, clientID, kid, purposeID)
}

// Claves de índice secundario.

func ConsumerEServiceKey(consumerID, eserviceID string) string {
	return consumerID + "#" + eserviceID
}

func EServiceDescriptorKey(eserviceID, descriptorID string) string {
	return eserviceID + "#" + descriptorID
}

func ClientPurposeKey(clientID, purposeID string) string {
	return clientID + "#" + purposeID
}

// AgreementIDFromPK recupera el agreementId de una PK AGREEMENT#{id}.
func AgreementIDFromPK(pk string) string {
	return strings.TrimPrefix(pk, agreementKeyPrefix)
}

// SplitEServiceDescriptorKey descompone "{eserviceId}#{descriptorId}".
// Retorna ok=false si el formato no es el esperado.
func SplitEServiceDescriptorKey(key string) (eserviceID, descriptorID string, ok bool) {
	parts := strings.Split(key, "#")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
